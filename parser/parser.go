// Package parser reads citation tuples from the input formats of the
// citation indexes: Crossref data files, DataCite dumps, NIH iCite CSV,
// Scholix link files, crowdsourced CSV and the CSV output of the index
// itself.
//
// A parser works on a single file at a time. Parse opens the file, Next
// returns the rows containing at least one citation, in file order, and
// io.EOF at the end of the file.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencitations/index-sub000/identifier"
)

// Skip marks a malformed record. Parsers log and drop skipped records, they
// never abort a file because of one.
type Skip struct {
	err error
}

func (s Skip) Error() string {
	return s.err.Error()
}

var (
	ErrSkipMalformed = Skip{err: errors.New("malformed record")}
	ErrSkipNoID      = Skip{err: errors.New("no valid identifier")}

	ErrNotParsed     = errors.New("no file parsed")
	ErrUnknownParser = errors.New("unknown parser")
)

// Tuple is a single citation as found in the input. Citing and Cited are
// prefixed identifiers, e.g. "doi:10.1/2". Dates are partial dates as
// found, they are checked when the citation is built. Nil self-citation
// flags mean unknown.
type Tuple struct {
	Citing     string
	Cited      string
	CitingDate string
	CitedDate  string
	JournalSC  *bool
	AuthorSC   *bool
	// Creation and Timespan are only known when re-reading index output.
	Creation string
	Timespan string
}

// Row is a record of the input file together with the citations it
// contains. Index counts all records of the file, starting at zero,
// including the ones that did not yield a citation.
type Row struct {
	Index  int
	Tuples []Tuple
}

// Parser reads one input file at a time.
type Parser interface {
	// Name of the parser, as used in configuration.
	Name() string
	// IsValid reports whether the parser can handle the file.
	IsValid(filename string) bool
	// Parse opens a file, closing the previous one, if any.
	Parse(filename string) error
	// Next returns the next row with citations, or io.EOF.
	Next() (Row, error)
	// Close releases the current file.
	Close() error
}

// Factory creates a fresh parser.
type Factory func() Parser

var registry = map[string]Factory{
	"crossref":     func() Parser { return NewCrossref() },
	"datacite":     func() Parser { return NewDataCite() },
	"nih":          func() Parser { return NewNIH() },
	"scholix":      func() Parser { return NewScholix() },
	"crowdsourced": func() Parser { return NewCrowdsourced() },
	"index":        func() Parser { return NewIndexCSV() },
}

// New returns a parser by name.
func New(name string) (Parser, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
	}
	return f(), nil
}

// Names returns the names of all parsers, sorted.
func Names() []string {
	var names []string
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flag returns a pointer to b, for tuples with known self-citation flags.
func Flag(b bool) *bool {
	return &b
}

// normalizeID returns the prefixed normalized form of raw, which may carry
// its own scheme prefix. Without prefix, scheme s is assumed. It returns the
// empty string for anything invalid.
func normalizeID(s identifier.Scheme, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if i := strings.Index(raw, ":"); i > 0 {
		if _, err := identifier.ForScheme(identifier.Scheme(raw[:i])); err == nil {
			id, err := identifier.Parse(raw)
			if err != nil {
				return ""
			}
			return id.String()
		}
	}
	id, err := identifier.New(s, raw)
	if err != nil {
		return ""
	}
	return id.String()
}

// hasExt reports whether filename, after removing a compression suffix,
// ends with one of the given extensions.
func hasExt(filename string, exts ...string) bool {
	name := strings.ToLower(filepath.Base(StripCompression(filename)))
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
