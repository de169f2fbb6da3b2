// Package identifier normalizes and validates the identifier schemes used by
// the citation indexes: DOI, ISSN, ORCID, PMID and OMID.
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Scheme names an identifier scheme, e.g. "doi".
type Scheme string

const (
	DOI   Scheme = "doi"
	ISSN  Scheme = "issn"
	ORCID Scheme = "orcid"
	PMID  Scheme = "pmid"
	OMID  Scheme = "omid"
)

var (
	ErrUnknownScheme = errors.New("unknown identifier scheme")
	ErrInvalid       = errors.New("invalid identifier")
)

// Prefix returns the token used in prefixed identifiers, e.g. "doi:".
func (s Scheme) Prefix() string {
	return string(s) + ":"
}

// Manager normalizes and syntactically validates identifiers of a single
// scheme. Normalize returns the empty string, if the raw value cannot be
// brought into a valid shape.
type Manager interface {
	Scheme() Scheme
	Normalize(raw string, includePrefix bool) string
	IsValid(id string) bool
}

var managers = map[Scheme]Manager{
	DOI:   DOIManager{},
	ISSN:  ISSNManager{},
	ORCID: ORCIDManager{},
	PMID:  PMIDManager{},
	OMID:  OMIDManager{},
}

// ForScheme returns the manager for a scheme.
func ForScheme(s Scheme) (Manager, error) {
	m, ok := managers[Scheme(strings.ToLower(string(s)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
	return m, nil
}

// Identifier is a normalized identifier value. The zero value is not a valid
// identifier.
type Identifier struct {
	scheme Scheme
	value  string
}

// New normalizes raw with the manager of the given scheme.
func New(s Scheme, raw string) (Identifier, error) {
	m, err := ForScheme(s)
	if err != nil {
		return Identifier{}, err
	}
	v := m.Normalize(raw, false)
	if v == "" {
		return Identifier{}, fmt.Errorf("%w: %s %q", ErrInvalid, s, raw)
	}
	return Identifier{scheme: m.Scheme(), value: v}, nil
}

// Parse reads a prefixed identifier, like "doi:10.1/2" or "omid:br/0601".
func Parse(prefixed string) (Identifier, error) {
	prefixed = strings.TrimSpace(prefixed)
	i := strings.Index(prefixed, ":")
	if i < 1 {
		return Identifier{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalid, prefixed)
	}
	return New(Scheme(prefixed[:i]), prefixed[i+1:])
}

// MustParse is like Parse, but panics on error.
func MustParse(prefixed string) Identifier {
	id, err := Parse(prefixed)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identifier) Scheme() Scheme { return id.scheme }

// Value returns the normalized identifier without scheme prefix.
func (id Identifier) Value() string { return id.value }

// IsZero reports whether id is the zero value.
func (id Identifier) IsZero() bool { return id.value == "" }

// String returns the prefixed form, e.g. "doi:10.1/2".
func (id Identifier) String() string {
	if id.IsZero() {
		return ""
	}
	return id.scheme.Prefix() + id.value
}

// StripPrefix removes a scheme prefix from a prefixed identifier string, if
// present.
func StripPrefix(s Scheme, v string) string {
	return strings.TrimPrefix(v, s.Prefix())
}
