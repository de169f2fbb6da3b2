package finder

import (
	"context"
	"sort"

	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/identifier"
)

// Meta answers from OpenCitations Meta data loaded into the datasource. It
// has no upstream API.
type Meta struct {
	base
}

// NewMeta returns a finder for the given schemes, by default OMID, DOI and
// PMID.
func NewMeta(ds datasource.DataSource, schemes ...identifier.Scheme) *Meta {
	if len(schemes) == 0 {
		schemes = []identifier.Scheme{identifier.OMID, identifier.DOI, identifier.PMID}
	}
	f := &Meta{}
	f.schemes = schemes
	f.ds = ds
	return f
}

// AuthorIdentityVerifier confirms that an ORCID iD belongs to one of the
// authors of an entity.
type AuthorIdentityVerifier interface {
	Verify(ctx context.Context, orcid, id string) (bool, error)
}

// Handler combines finders. Finders are asked in order.
type Handler struct {
	Finders []Finder
	// Verifier, if set, must confirm every shared ORCID iD for both
	// entities.
	Verifier AuthorIdentityVerifier
}

func NewHandler(finders ...Finder) *Handler {
	return &Handler{Finders: finders}
}

// Date returns the first date found.
func (h *Handler) Date(ctx context.Context, id string) (string, error) {
	for _, f := range h.Finders {
		d, err := f.Date(ctx, id)
		if err != nil {
			return "", err
		}
		if d != "" {
			return d, nil
		}
	}
	return "", nil
}

// OMID returns the first OMID found.
func (h *Handler) OMID(ctx context.Context, id string) (string, error) {
	for _, f := range h.Finders {
		v, err := f.OMID(ctx, id)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

// IsValid asks the first finder handling the scheme of id.
func (h *Handler) IsValid(ctx context.Context, id string) (bool, error) {
	for _, f := range h.Finders {
		if f.Normalize(id) == "" {
			continue
		}
		return f.IsValid(ctx, id)
	}
	return false, nil
}

// Normalize returns the prefixed normal form of id, according to the first
// finder handling its scheme.
func (h *Handler) Normalize(id string) string {
	for _, f := range h.Finders {
		if v := f.Normalize(id); v != "" {
			return v
		}
	}
	return ""
}

// ShareISSN reports whether a and b have an ISSN in common.
func (h *Handler) ShareISSN(ctx context.Context, a, b string) (bool, error) {
	shared, err := h.share(ctx, a, b, Finder.ISSN)
	return len(shared) > 0, err
}

// ShareORCID reports whether a and b have an author in common.
func (h *Handler) ShareORCID(ctx context.Context, a, b string) (bool, error) {
	shared, err := h.share(ctx, a, b, Finder.ORCID)
	if err != nil || len(shared) == 0 || h.Verifier == nil {
		return len(shared) > 0, err
	}
	for _, orcid := range shared {
		ok, err := h.verifyBoth(ctx, orcid, a, b)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (h *Handler) verifyBoth(ctx context.Context, orcid, a, b string) (bool, error) {
	for _, id := range []string{a, b} {
		ok, err := h.Verifier.Verify(ctx, orcid, id)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// share collects values from finders until the sets of a and b intersect
// and returns the intersection.
func (h *Handler) share(ctx context.Context, a, b string, get func(Finder, context.Context, string) ([]string, error)) ([]string, error) {
	setA := make(map[string]struct{})
	setB := make(map[string]struct{})
	for _, f := range h.Finders {
		for _, x := range []struct {
			id  string
			set map[string]struct{}
		}{{a, setA}, {b, setB}} {
			vs, err := get(f, ctx, x.id)
			if err != nil {
				return nil, err
			}
			for _, v := range vs {
				x.set[v] = struct{}{}
			}
		}
		if shared := intersect(setA, setB); len(shared) > 0 {
			return shared, nil
		}
	}
	return nil, nil
}

func intersect(a, b map[string]struct{}) []string {
	var result []string
	for v := range a {
		if _, ok := b[v]; ok {
			result = append(result, v)
		}
	}
	sort.Strings(result)
	return result
}

var (
	_ Finder = (*Crossref)(nil)
	_ Finder = (*DataCite)(nil)
	_ Finder = (*ORCID)(nil)
	_ Finder = (*NIH)(nil)
	_ Finder = (*Meta)(nil)
)
