// Package normal provides composable string normalizers, used to bring raw
// identifier strings found in dumps into a canonical shape.
package normal

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Pipeline applies a list of normalizers in order.
type Pipeline struct {
	Normalizer []Normalizer
}

// New returns a pipeline of the given normalizers.
func New(ns ...Normalizer) *Pipeline {
	return &Pipeline{Normalizer: ns}
}

// Normalize runs all normalizers on s.
func (p *Pipeline) Normalize(s string) string {
	for _, n := range p.Normalizer {
		s = n.Normalize(s)
	}
	return s
}

type Normalizer interface {
	Normalize(string) string
}

// Func adapts a plain function to a Normalizer.
type Func func(string) string

func (f Func) Normalize(s string) string { return f(s) }

type SimpleNormalizer struct{}

func (s *SimpleNormalizer) Normalize(v string) string {
	return strings.ToLower(v)
}

type UpperNormalizer struct{}

func (s *UpperNormalizer) Normalize(v string) string {
	return strings.ToUpper(v)
}

// FoldNormalizer applies compatibility composition (NFKC), so fullwidth
// digits and letters become ASCII.
type FoldNormalizer struct{}

func (s *FoldNormalizer) Normalize(v string) string {
	return norm.NFKC.String(v)
}

// RemoveWSNormalizer drops all unicode whitespace.
type RemoveWSNormalizer struct{}

func (s *RemoveWSNormalizer) Normalize(v string) string {
	var b strings.Builder
	for _, c := range v {
		if unicode.IsSpace(c) {
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// RemoveNULNormalizer drops NUL bytes, which appear in some dumps.
type RemoveNULNormalizer struct{}

func (s *RemoveNULNormalizer) Normalize(v string) string {
	return strings.ReplaceAll(v, "\x00", "")
}

// UnquoteNormalizer undoes percent-encoding, repeatedly, so that values
// encoded more than once end up decoded. Malformed escapes stop decoding.
type UnquoteNormalizer struct{}

func (s *UnquoteNormalizer) Normalize(v string) string {
	for strings.Contains(v, "%") {
		u, err := url.PathUnescape(v)
		if err != nil || u == v {
			break
		}
		v = u
	}
	return v
}

// KeepNormalizer keeps only the runes accepted by Keep.
type KeepNormalizer struct {
	Keep func(rune) bool
}

func (s *KeepNormalizer) Normalize(v string) string {
	var b strings.Builder
	for _, c := range v {
		if s.Keep(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// TrimLeftNormalizer removes a leading run of characters in Cutset.
type TrimLeftNormalizer struct {
	Cutset string
}

func (s *TrimLeftNormalizer) Normalize(v string) string {
	return strings.TrimLeft(v, s.Cutset)
}

// DigitsAndX is a Keep function for check-digit identifiers (ISSN, ORCID).
func DigitsAndX(r rune) bool {
	return (r >= '0' && r <= '9') || r == 'X'
}

// Digits is a Keep function for purely numeric identifiers.
func Digits(r rune) bool {
	return r >= '0' && r <= '9'
}
