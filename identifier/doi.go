package identifier

import (
	"regexp"
	"strings"

	"github.com/opencitations/index-sub000/normal"
)

var (
	doiPattern  = regexp.MustCompile(`^10\.[0-9]+(\.[0-9]+)*/\S+$`)
	doiPipeline = normal.New(
		&normal.UnquoteNormalizer{},
		&normal.RemoveWSNormalizer{},
		&normal.RemoveNULNormalizer{},
		&normal.SimpleNormalizer{},
	)
)

// DOIManager handles DOI. Everything before the first "10." is discarded,
// so URL forms like https://doi.org/10.1/2 are accepted.
type DOIManager struct{}

func (DOIManager) Scheme() Scheme { return DOI }

func (DOIManager) Normalize(raw string, includePrefix bool) string {
	i := strings.Index(raw, "10.")
	if i < 0 {
		return ""
	}
	v := raw[i:]
	// Removing whitespace can join the parts of an escape.
	for n := 0; n < 4; n++ {
		w := doiPipeline.Normalize(v)
		if w == v {
			break
		}
		v = w
	}
	if !doiPattern.MatchString(v) {
		return ""
	}
	if includePrefix {
		return DOI.Prefix() + v
	}
	return v
}

// IsValid only checks the syntax, use a DOIResolver to check registration.
func (m DOIManager) IsValid(id string) bool {
	return m.Normalize(id, false) != ""
}
