package store

import "fmt"

// schemaSQL returns the DDL for all tables. signatureDim controls the
// vec0 virtual table dimension.
func schemaSQL(signatureDim int) string {
	return fmt.Sprintf(`
-- One row per pipeline invocation
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY,
    input_path TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    pages INTEGER DEFAULT 0,
    modes JSON,
    compositor TEXT,
    status TEXT DEFAULT 'running',
    merged_pairs INTEGER DEFAULT 0,
    composites INTEGER DEFAULT 0,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

-- Admitted rows of the image list, as parsed
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    object_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    page INTEGER,
    width INTEGER,
    height INTEGER,
    color TEXT,
    encoding TEXT,
    class TEXT NOT NULL,
    line TEXT
);

-- Files written by the pairing step
CREATE TABLE IF NOT EXISTS outputs (
    id INTEGER PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    object_id INTEGER NOT NULL,
    sequence INTEGER NOT NULL,
    mode TEXT,
    source TEXT,
    path TEXT NOT NULL
);

-- Thumbnail signatures via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_images USING vec0(
    output_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE INDEX IF NOT EXISTS idx_records_run_object ON records(run_id, object_id);
`, signatureDim)
}
