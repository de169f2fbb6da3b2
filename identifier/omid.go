package identifier

import (
	"regexp"
	"strings"
)

// MetaBaseURL is the IRI namespace of OpenCitations Meta entities.
const MetaBaseURL = "https://w3id.org/oc/meta/"

var omidPattern = regexp.MustCompile(`^(br|ra)/[0-9]+$`)

// OMIDManager handles OpenCitations Meta identifiers, "omid:br/<digits>" for
// bibliographic resources and "omid:ra/<digits>" for responsible agents.
type OMIDManager struct{}

func (OMIDManager) Scheme() Scheme { return OMID }

func (OMIDManager) Normalize(raw string, includePrefix bool) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, MetaBaseURL)
	v = strings.TrimPrefix(v, OMID.Prefix())
	if !omidPattern.MatchString(v) {
		return ""
	}
	if includePrefix {
		return OMID.Prefix() + v
	}
	return v
}

func (m OMIDManager) IsValid(id string) bool {
	return m.Normalize(id, false) != ""
}

// OMIDDigits returns the numeric part of an OMID, e.g. "0601" for
// "omid:br/0601", or the empty string.
func OMIDDigits(id string) string {
	v := OMIDManager{}.Normalize(id, false)
	if v == "" {
		return ""
	}
	return v[3:]
}
