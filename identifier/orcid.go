package identifier

import (
	"regexp"
	"strings"

	"github.com/opencitations/index-sub000/normal"
)

var (
	orcidPattern  = regexp.MustCompile(`^([0-9]{4}-){3}[0-9]{3}[0-9X]$`)
	orcidPipeline = normal.New(
		&normal.FoldNormalizer{},
		&normal.UpperNormalizer{},
		&normal.KeepNormalizer{Keep: normal.DigitsAndX},
	)
)

// ORCIDManager handles ORCID iDs, normalized to XXXX-XXXX-XXXX-XXXC.
type ORCIDManager struct{}

func (ORCIDManager) Scheme() Scheme { return ORCID }

func (ORCIDManager) Normalize(raw string, includePrefix bool) string {
	v := orcidPipeline.Normalize(raw)
	if len(v) != 16 {
		return ""
	}
	v = strings.Join([]string{v[0:4], v[4:8], v[8:12], v[12:16]}, "-")
	if includePrefix {
		return ORCID.Prefix() + v
	}
	return v
}

// IsValid checks format and the ISO 7064 mod 11-2 check digit.
func (m ORCIDManager) IsValid(id string) bool {
	v := m.Normalize(id, false)
	if !orcidPattern.MatchString(v) {
		return false
	}
	digits := strings.ReplaceAll(v, "-", "")
	var total int
	for _, c := range digits[:15] {
		total = (total + int(c-'0')) * 2
	}
	r := (12 - total%11) % 11
	last := digits[15]
	if r == 10 {
		return last == 'X'
	}
	return last == byte('0'+r)
}
