// Package datasource stores the metadata of bibliographic entities, keyed
// by prefixed identifier, and the set of citations already in the index.
//
// Finders read entity records to resolve dates, ISSN and ORCID; the
// operator uses SetIfAbsent on the OCI of each new citation, which is the
// single point deciding whether a citation is new.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownBackend = errors.New("unknown datasource backend")
	ErrClosed         = errors.New("datasource closed")
)

// Record is the metadata of a single entity. Date is a partial date, ISSN
// and ORCID are sets kept sorted.
type Record struct {
	Valid bool     `json:"valid"`
	Date  string   `json:"date"`
	ISSN  []string `json:"issn"`
	ORCID []string `json:"orcid"`
	OMID  string   `json:"omid,omitempty"`
}

// union returns the sorted set union of a and b.
func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	var result []string
	for _, vs := range [][]string{a, b} {
		for _, v := range vs {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Strings(result)
	return result
}

// Merge accumulates o into r: validity is or-ed, date and OMID are set once,
// ISSN and ORCID are unioned.
func (r *Record) Merge(o Record) {
	r.Valid = r.Valid || o.Valid
	if r.Date == "" {
		r.Date = o.Date
	}
	if r.OMID == "" {
		r.OMID = o.OMID
	}
	r.ISSN = union(r.ISSN, o.ISSN)
	r.ORCID = union(r.ORCID, o.ORCID)
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	c.ISSN = append([]string(nil), r.ISSN...)
	c.ORCID = append([]string(nil), r.ORCID...)
	return c
}

func contains(s []string, v string) bool {
	for _, w := range s {
		if w == v {
			return true
		}
	}
	return false
}

// DataSource is a key value store for entity records plus a set of seen
// citations. Get returns nil for unknown keys, MGet omits them.
// Implementations are safe for concurrent use.
type DataSource interface {
	Get(ctx context.Context, key string) (*Record, error)
	MGet(ctx context.Context, keys []string) (map[string]Record, error)
	Set(ctx context.Context, key string, r Record) error
	MSet(ctx context.Context, records map[string]Record) error
	// SetIfAbsent adds oci to the set of seen citations and reports whether
	// it was not there before. Of two concurrent calls with the same oci,
	// exactly one returns true.
	SetIfAbsent(ctx context.Context, oci string) (bool, error)
	// Scan calls fn for every record, in no particular order. fn must not
	// call back into the datasource.
	Scan(ctx context.Context, fn func(key string, r Record) error) error
	// ScanSeen calls fn for every seen citation, in no particular order.
	ScanSeen(ctx context.Context, fn func(oci string) error) error
	Close() error
}

// Backends are the names accepted by Open.
var Backends = []string{"memory", "csv", "sqlite", "postgres"}

// Open returns a datasource. For "csv", dsn is a directory; for "sqlite", a
// file path or sqlite DSN; for "postgres", a connection string.
func Open(backend, dsn string) (DataSource, error) {
	switch strings.ToLower(backend) {
	case "memory", "":
		return NewMemory(), nil
	case "csv":
		return OpenCSV(dsn)
	case "sqlite", "postgres":
		return OpenSQL(strings.ToLower(backend), dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
