package identifier

import (
	"regexp"
	"strconv"

	"github.com/opencitations/index-sub000/normal"
)

var (
	issnPattern  = regexp.MustCompile(`^[0-9]{4}-[0-9]{3}[0-9X]$`)
	issnPipeline = normal.New(
		&normal.FoldNormalizer{},
		&normal.UpperNormalizer{},
		&normal.KeepNormalizer{Keep: normal.DigitsAndX},
	)
)

// ISSNManager handles ISSN, normalized to NNNN-NNNC.
type ISSNManager struct{}

func (ISSNManager) Scheme() Scheme { return ISSN }

func (ISSNManager) Normalize(raw string, includePrefix bool) string {
	v := issnPipeline.Normalize(raw)
	if len(v) != 8 {
		return ""
	}
	v = v[:4] + "-" + v[4:]
	if includePrefix {
		return ISSN.Prefix() + v
	}
	return v
}

// IsValid checks format and the mod 11 check digit.
func (m ISSNManager) IsValid(id string) bool {
	v := m.Normalize(id, false)
	return issnPattern.MatchString(v) && issnCheckDigit(v[:4]+v[5:8]) == v[8]
}

// issnCheckDigit computes the check character for the first seven digits.
func issnCheckDigit(digits string) byte {
	var sum int
	for i := 0; i < 7; i++ {
		sum += int(digits[i]-'0') * (8 - i)
	}
	c := (11 - sum%11) % 11
	if c == 10 {
		return 'X'
	}
	return strconv.Itoa(c)[0]
}
