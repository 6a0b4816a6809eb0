package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds that drive pairing. A record is admitted when its kind contains
// either string, but only these exact spellings take part in pairing.
const (
	KindImage = "image"
	KindSMask = "smask"
)

// ErrDuplicateKind is returned under DuplicateReject when an object lists
// the same kind twice.
var ErrDuplicateKind = errors.New("metadata: duplicate kind for object")

// DuplicatePolicy decides what happens when a report lists a second record
// of the same kind for the same object.
type DuplicatePolicy int

const (
	// DuplicateOverwrite keeps the later record.
	DuplicateOverwrite DuplicatePolicy = iota
	// DuplicateKeepFirst keeps the earlier record and drops the later one.
	DuplicateKeepFirst
	// DuplicateReject fails the parse with ErrDuplicateKind.
	DuplicateReject
)

// ParseDuplicatePolicy maps a configuration string onto a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return DuplicateOverwrite, nil
	case "keep-first", "keep_first", "first":
		return DuplicateKeepFirst, nil
	case "reject", "error":
		return DuplicateReject, nil
	}
	return DuplicateOverwrite, fmt.Errorf("unknown duplicate policy: %q", s)
}

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateKeepFirst:
		return "keep-first"
	case DuplicateReject:
		return "reject"
	default:
		return "overwrite"
	}
}

// Class describes what the pairing step does with a group.
type Class int

const (
	ClassOther Class = iota
	ClassMaskedPair
	ClassStandalone
	ClassMaskOnly
)

func (c Class) String() string {
	switch c {
	case ClassMaskedPair:
		return "masked"
	case ClassStandalone:
		return "standalone"
	case ClassMaskOnly:
		return "mask-only"
	default:
		return "other"
	}
}

// Group holds the records of one PDF object, keyed by their raw kind.
type Group struct {
	ObjectID int

	records map[string]ImageRecord
	kinds   []string
}

// Record returns the record stored under kind.
func (g *Group) Record(kind string) (ImageRecord, bool) {
	r, ok := g.records[kind]
	return r, ok
}

// Image returns the record of kind "image".
func (g *Group) Image() (ImageRecord, bool) { return g.Record(KindImage) }

// Mask returns the record of kind "smask".
func (g *Group) Mask() (ImageRecord, bool) { return g.Record(KindSMask) }

// Kinds lists the kinds present in first-seen order.
func (g *Group) Kinds() []string {
	out := make([]string, len(g.kinds))
	copy(out, g.kinds)
	return out
}

// Records lists the records in first-seen kind order.
func (g *Group) Records() []ImageRecord {
	out := make([]ImageRecord, 0, len(g.kinds))
	for _, k := range g.kinds {
		out = append(out, g.records[k])
	}
	return out
}

// Class classifies the group for pairing.
func (g *Group) Class() Class {
	_, hasImage := g.Image()
	_, hasMask := g.Mask()
	switch {
	case hasImage && hasMask:
		return ClassMaskedPair
	case hasImage:
		return ClassStandalone
	case hasMask:
		return ClassMaskOnly
	default:
		return ClassOther
	}
}

// Groups maps object ids to their records and remembers the order in which
// object ids were first seen.
type Groups struct {
	order  []int
	groups map[int]*Group
}

// NewGroups returns an empty Groups.
func NewGroups() *Groups {
	return &Groups{groups: make(map[int]*Group)}
}

// Add files rec under its object id and kind according to policy.
func (gs *Groups) Add(rec ImageRecord, policy DuplicatePolicy) error {
	g, ok := gs.groups[rec.ObjectID]
	if !ok {
		g = &Group{ObjectID: rec.ObjectID, records: make(map[string]ImageRecord)}
		gs.groups[rec.ObjectID] = g
		gs.order = append(gs.order, rec.ObjectID)
	}

	if _, dup := g.records[rec.Kind]; dup {
		switch policy {
		case DuplicateKeepFirst:
			return nil
		case DuplicateReject:
			return fmt.Errorf("%w: object %d kind %q", ErrDuplicateKind, rec.ObjectID, rec.Kind)
		}
	} else {
		g.kinds = append(g.kinds, rec.Kind)
	}
	g.records[rec.Kind] = rec
	return nil
}

// Get returns the group for objectID.
func (gs *Groups) Get(objectID int) (*Group, bool) {
	g, ok := gs.groups[objectID]
	return g, ok
}

// Len returns the number of distinct object ids.
func (gs *Groups) Len() int { return len(gs.order) }

// All returns the groups in first-seen order.
func (gs *Groups) All() []*Group {
	out := make([]*Group, 0, len(gs.order))
	for _, id := range gs.order {
		out = append(out, gs.groups[id])
	}
	return out
}

// Count returns how many groups fall into class c.
func (gs *Groups) Count(c Class) int {
	n := 0
	for _, g := range gs.groups {
		if g.Class() == c {
			n++
		}
	}
	return n
}

// Records returns every admitted record, grouped by object in first-seen order.
func (gs *Groups) Records() []ImageRecord {
	var out []ImageRecord
	for _, g := range gs.All() {
		out = append(out, g.Records()...)
	}
	return out
}

// Option configures ParseReport.
type Option func(*parseOptions)

type parseOptions struct {
	policy DuplicatePolicy
}

// WithDuplicatePolicy sets how repeated kinds on one object are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *parseOptions) { o.policy = p }
}

// headerLines is the number of leading report lines (column titles and
// the dashed rule) skipped regardless of their content.
const headerLines = 2

// ParseReport parses the full lister report into Groups. Malformed lines
// never cause an error; only DuplicateReject can make it fail.
func ParseReport(report string, opts ...Option) (*Groups, error) {
	o := &parseOptions{}
	for _, fn := range opts {
		fn(o)
	}

	gs := NewGroups()
	lines := strings.Split(report, "\n")
	for i, line := range lines {
		if i < headerLines {
			continue
		}
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := ParseLine(line)
		if !rec.Admitted() {
			continue
		}
		if err := gs.Add(rec, o.policy); err != nil {
			return nil, err
		}
	}
	return gs, nil
}
