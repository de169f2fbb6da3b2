// Package finder resolves publication dates, ISSN, ORCID and OMID of
// bibliographic entities, first from a datasource, then, if permitted, from
// upstream APIs (Crossref, DataCite, ORCID, PubMed). Results from APIs are
// cached in the datasource.
package finder

import (
	"context"
	"sync"

	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/identifier"
)

// Finder answers questions about a single entity, given as prefixed
// identifier, e.g. "doi:10.1/a". Identifiers of a scheme a finder does not
// handle yield empty results.
type Finder interface {
	Date(ctx context.Context, id string) (string, error)
	ISSN(ctx context.Context, id string) ([]string, error)
	ORCID(ctx context.Context, id string) ([]string, error)
	OMID(ctx context.Context, id string) (string, error)
	IsValid(ctx context.Context, id string) (bool, error)
	// Normalize returns the prefixed normal form of id, or the empty
	// string.
	Normalize(id string) string
}

// fetchFunc retrieves a record for a normalized identifier value, without
// prefix. A nil record means no data.
type fetchFunc func(ctx context.Context, value string) (*datasource.Record, error)

// field is a set of record fields.
type field int

const (
	dateField field = 1 << iota
	issnField
	orcidField

	allFields = dateField | issnField | orcidField
)

// has reports whether r has a value for f.
func (f field) has(r datasource.Record) bool {
	switch f {
	case dateField:
		return r.Date != ""
	case issnField:
		return len(r.ISSN) > 0
	case orcidField:
		return len(r.ORCID) > 0
	}
	return false
}

// maxFetched bounds the memory used for remembering API lookups.
const maxFetched = 1 << 20

// base implements Finder on top of a datasource and an optional fetch
// function. A stored field is returned as is; a missing field is fetched at
// most once per identifier and process, and the result is merged into the
// stored record.
type base struct {
	schemes  []identifier.Scheme
	ds       datasource.DataSource
	api      bool
	fetch    fetchFunc
	provides field
	resolver identifier.Resolver

	mu      sync.Mutex
	fetched map[string]struct{}
}

func (b *base) manager(id string) (identifier.Manager, string) {
	parsed, err := identifier.Parse(id)
	if err != nil {
		return nil, ""
	}
	for _, s := range b.schemes {
		if parsed.Scheme() == s {
			m, _ := identifier.ForScheme(s)
			return m, parsed.Value()
		}
	}
	return nil, ""
}

func (b *base) Normalize(id string) string {
	m, v := b.manager(id)
	if m == nil {
		return ""
	}
	return m.Normalize(v, true)
}

// markFetched reports whether key has not been fetched before and marks it.
func (b *base) markFetched(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetched == nil || len(b.fetched) >= maxFetched {
		b.fetched = make(map[string]struct{})
	}
	if _, ok := b.fetched[key]; ok {
		return false
	}
	b.fetched[key] = struct{}{}
	return true
}

// lookup returns the record of id, fetching it, if the wanted field is
// missing and the upstream API provides it.
func (b *base) lookup(ctx context.Context, id string, f field) (*datasource.Record, error) {
	m, v := b.manager(id)
	if m == nil {
		return nil, nil
	}
	key := m.Normalize(v, true)
	if key == "" {
		return nil, nil
	}
	r, err := b.ds.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if r != nil && f.has(*r) {
		return r, nil
	}
	if !b.api || b.fetch == nil || b.provides&f == 0 || !m.IsValid(v) || !b.markFetched(key) {
		return r, nil
	}
	fr, err := b.fetch(ctx, m.Normalize(v, false))
	if err != nil || fr == nil {
		return r, err
	}
	if r == nil {
		// Only syntactically valid identifiers are fetched.
		r = &datasource.Record{Valid: true}
	}
	r.Merge(*fr)
	if err := b.ds.Set(ctx, key, *r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *base) Date(ctx context.Context, id string) (string, error) {
	r, err := b.lookup(ctx, id, dateField)
	if err != nil || r == nil {
		return "", err
	}
	return r.Date, nil
}

func (b *base) ISSN(ctx context.Context, id string) ([]string, error) {
	r, err := b.lookup(ctx, id, issnField)
	if err != nil || r == nil {
		return nil, err
	}
	return r.ISSN, nil
}

func (b *base) ORCID(ctx context.Context, id string) ([]string, error) {
	r, err := b.lookup(ctx, id, orcidField)
	if err != nil || r == nil {
		return nil, err
	}
	return r.ORCID, nil
}

// OMID is answered from the datasource only.
func (b *base) OMID(ctx context.Context, id string) (string, error) {
	key := b.Normalize(id)
	if key == "" {
		return "", nil
	}
	r, err := b.ds.Get(ctx, key)
	if err != nil || r == nil {
		return "", err
	}
	return r.OMID, nil
}

// IsValid uses the stored validity. Unknown identifiers are checked
// syntactically and, with API access and a resolver, upstream; upstream
// answers are stored.
func (b *base) IsValid(ctx context.Context, id string) (bool, error) {
	m, v := b.manager(id)
	if m == nil {
		return false, nil
	}
	key := m.Normalize(v, true)
	if key == "" || !m.IsValid(v) {
		return false, nil
	}
	r, err := b.ds.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if r != nil {
		return r.Valid, nil
	}
	if !b.api || b.resolver == nil {
		return true, nil
	}
	ok, err := b.resolver.Exists(ctx, v)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Unknown upstream state, keep the syntactic answer, but do not
		// store it.
		return true, nil
	}
	if err := b.ds.Set(ctx, key, datasource.Record{Valid: ok}); err != nil {
		return false, err
	}
	return ok, nil
}

// normalizeAll normalizes values with a manager and drops invalid ones.
func normalizeAll(m identifier.Manager, values []string) []string {
	var result []string
	for _, v := range values {
		if n := m.Normalize(v, false); n != "" {
			result = append(result, n)
		}
	}
	return result
}
