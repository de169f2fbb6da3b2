package identifier

import (
	"regexp"

	"github.com/opencitations/index-sub000/normal"
)

var (
	pmidPattern  = regexp.MustCompile(`^[1-9][0-9]*$`)
	pmidPipeline = normal.New(
		&normal.FoldNormalizer{},
		&normal.KeepNormalizer{Keep: normal.Digits},
		&normal.TrimLeftNormalizer{Cutset: "0"},
	)
)

// PMIDManager handles PubMed identifiers.
type PMIDManager struct{}

func (PMIDManager) Scheme() Scheme { return PMID }

func (PMIDManager) Normalize(raw string, includePrefix bool) string {
	v := pmidPipeline.Normalize(raw)
	if v == "" {
		return ""
	}
	if includePrefix {
		return PMID.Prefix() + v
	}
	return v
}

func (m PMIDManager) IsValid(id string) bool {
	return pmidPattern.MatchString(m.Normalize(id, false))
}
