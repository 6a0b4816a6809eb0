// Package store keeps a SQLite manifest of pipeline runs: the parsed
// image list, every file written, and thumbnail signatures for spotting
// duplicate images.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Run represents a row in the runs table.
type Run struct {
	ID          int64    `json:"id"`
	InputPath   string   `json:"input_path"`
	OutputDir   string   `json:"output_dir"`
	Pages       int      `json:"pages"`
	Modes       []string `json:"modes"`
	Compositor  string   `json:"compositor"`
	Status      string   `json:"status"`
	MergedPairs int      `json:"merged_pairs"`
	Composites  int      `json:"composites"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at,omitempty"`
}

// Record represents a row in the records table.
type Record struct {
	ID       int64  `json:"id"`
	RunID    int64  `json:"run_id"`
	ObjectID int    `json:"object_id"`
	Kind     string `json:"kind"`
	Sequence int    `json:"sequence"`
	Page     *int   `json:"page,omitempty"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Color    string `json:"color,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Class    string `json:"class"`
	Line     string `json:"line,omitempty"`
}

// Output represents a row in the outputs table.
type Output struct {
	ID       int64  `json:"id"`
	RunID    int64  `json:"run_id"`
	Kind     string `json:"kind"`
	ObjectID int    `json:"object_id"`
	Sequence int    `json:"sequence"`
	Mode     string `json:"mode,omitempty"`
	Source   string `json:"source,omitempty"`
	Path     string `json:"path"`
}

// Neighbor is an output found by signature search.
type Neighbor struct {
	OutputID int64   `json:"output_id"`
	Path     string  `json:"path"`
	Sequence int     `json:"sequence"`
	Distance float64 `json:"distance"`
}

// Store wraps the SQLite database of the manifest.
type Store struct {
	db           *sql.DB
	signatureDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec signature table.
func New(dbPath string, signatureDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(signatureDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// The pipeline is single-threaded; one connection keeps WAL simple.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, signatureDim: signatureDim}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SignatureDim returns the configured signature dimension.
func (s *Store) SignatureDim() int {
	return s.signatureDim
}

// --- Run operations ---

// BeginRun inserts a run in status "running" and returns its ID.
func (s *Store) BeginRun(ctx context.Context, r Run) (int64, error) {
	modes, err := json.Marshal(r.Modes)
	if err != nil {
		return 0, fmt.Errorf("encoding modes: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (input_path, output_dir, pages, modes, compositor, status)
		VALUES (?, ?, ?, ?, ?, 'running')
	`, r.InputPath, r.OutputDir, r.Pages, string(modes), r.Compositor)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun stores the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, id int64, status string, mergedPairs, composites int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, merged_pairs = ?, composites = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, mergedPairs, composites, id)
	return err
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	r := &Run{}
	var modes, compositor, finished sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, input_path, output_dir, pages, modes, compositor, status,
			merged_pairs, composites, started_at, finished_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.InputPath, &r.OutputDir, &r.Pages, &modes, &compositor,
		&r.Status, &r.MergedPairs, &r.Composites, &r.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if modes.Valid && modes.String != "" {
		if err := json.Unmarshal([]byte(modes.String), &r.Modes); err != nil {
			return nil, fmt.Errorf("decoding modes: %w", err)
		}
	}
	r.Compositor = compositor.String
	r.FinishedAt = finished.String
	return r, nil
}

// --- Record operations ---

// InsertRecords stores the parsed image list of a run in one transaction.
func (s *Store) InsertRecords(ctx context.Context, runID int64, recs []Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (run_id, object_id, kind, sequence, page, width, height,
				color, encoding, class, line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, runID, r.ObjectID, r.Kind, r.Sequence,
				r.Page, r.Width, r.Height, r.Color, r.Encoding, r.Class, r.Line); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRecords returns the records of a run in insertion order.
func (s *Store) ListRecords(ctx context.Context, runID int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, object_id, kind, sequence, page, width, height,
			color, encoding, class, line
		FROM records WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var page, width, height sql.NullInt64
		var color, enc, line sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.ObjectID, &r.Kind, &r.Sequence,
			&page, &width, &height, &color, &enc, &r.Class, &line); err != nil {
			return nil, err
		}
		r.Page, r.Width, r.Height = nullInt(page), nullInt(width), nullInt(height)
		r.Color, r.Encoding, r.Line = color.String, enc.String, line.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// --- Output operations ---

// InsertOutput stores one written file and returns its ID.
func (s *Store) InsertOutput(ctx context.Context, o Output) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outputs (run_id, kind, object_id, sequence, mode, source, path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.Kind, o.ObjectID, o.Sequence, o.Mode, o.Source, o.Path)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListOutputs returns the outputs of a run, optionally filtered by kind.
func (s *Store) ListOutputs(ctx context.Context, runID int64, kind string) ([]Output, error) {
	query := `SELECT id, run_id, kind, object_id, sequence, mode, source, path
		FROM outputs WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outs []Output
	for rows.Next() {
		var o Output
		var mode, source sql.NullString
		if err := rows.Scan(&o.ID, &o.RunID, &o.Kind, &o.ObjectID, &o.Sequence,
			&mode, &source, &o.Path); err != nil {
			return nil, err
		}
		o.Mode, o.Source = mode.String, source.String
		outs = append(outs, o)
	}
	return outs, rows.Err()
}

// --- Signature operations ---

// InsertSignature stores the thumbnail signature of an output.
func (s *Store) InsertSignature(ctx context.Context, outputID int64, sig []float32) error {
	if len(sig) != s.signatureDim {
		return fmt.Errorf("signature has %d dimensions, want %d", len(sig), s.signatureDim)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_images (output_id, embedding) VALUES (?, ?)",
		outputID, serializeFloat32(sig))
	return err
}

// NearestImages performs a KNN search returning the k outputs whose
// signatures are closest to sig.
func (s *Store) NearestImages(ctx context.Context, sig []float32, k int) ([]Neighbor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.output_id, v.distance, o.path, o.sequence
		FROM vec_images v
		JOIN outputs o ON o.id = v.output_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(sig), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.OutputID, &n.Distance, &n.Path, &n.Sequence); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Stats ---

// RunStats holds row counts for one run.
type RunStats struct {
	Records    int `json:"records"`
	Outputs    int `json:"outputs"`
	Signatures int `json:"signatures"`
}

// Stats returns row counts for a run.
func (s *Store) Stats(ctx context.Context, runID int64) (*RunStats, error) {
	stats := &RunStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM records WHERE run_id = ?", &stats.Records},
		{"SELECT COUNT(*) FROM outputs WHERE run_id = ?", &stats.Outputs},
		{"SELECT COUNT(*) FROM vec_images WHERE output_id IN (SELECT id FROM outputs WHERE run_id = ?)", &stats.Signatures},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, runID).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
