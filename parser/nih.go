package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
)

// csvRows reads a CSV file with header into maps. Column names are
// lowercased and trimmed.
type csvRows struct {
	r      *csv.Reader
	header []string
}

func newCSVRows(r io.Reader) (*csvRows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err == io.EOF {
		return &csvRows{r: cr}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return &csvRows{r: cr, header: header}, nil
}

// next returns the next row, io.EOF or a Skip error for a malformed line.
func (c *csvRows) next() (map[string]string, error) {
	if c.header == nil {
		return nil, io.EOF
	}
	record, err := c.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, Skip{err: err}
		}
		return nil, err
	}
	row := make(map[string]string, len(c.header))
	for i, h := range c.header {
		if i < len(record) {
			row[h] = record[i]
		}
	}
	return row, nil
}

// csvParser drives a csvRows with a per row extraction function.
type csvParser struct {
	file
	rows    *csvRows
	extract func(map[string]string) []Tuple
}

func (p *csvParser) Parse(filename string) error {
	r, err := p.open(filename)
	if err != nil {
		return err
	}
	p.rows, err = newCSVRows(r)
	return err
}

func (p *csvParser) Next() (Row, error) {
	if p.rows == nil {
		return Row{}, ErrNotParsed
	}
	for {
		row, err := p.rows.next()
		if err != nil {
			var skip Skip
			if errors.As(err, &skip) {
				p.skip(p.index, err)
				p.index++
				continue
			}
			return Row{}, err
		}
		index := p.index
		p.index++
		if tuples := p.extract(row); len(tuples) > 0 {
			return Row{Index: index, Tuples: tuples}, nil
		}
	}
}

// NIH reads iCite metadata CSV files with the columns pmid, doi, title,
// authors, year, journal, cited_by and references. References and cited_by
// are whitespace separated PMID lists.
type NIH struct {
	csvParser
}

func NewNIH() *NIH {
	p := &NIH{}
	p.extract = NIHTuples
	return p
}

func (p *NIH) Name() string { return "nih" }

func (p *NIH) IsValid(filename string) bool {
	if !hasExt(filename, ".csv") {
		return false
	}
	// Dumps come with citation and source tables next to the metadata.
	lower := strings.ToLower(filepath.Base(StripCompression(filename)))
	return !strings.Contains(lower, "citations") && !strings.Contains(lower, "source")
}

// NIHTuples extracts the citations of a single iCite row. The year of the
// row is the citing date of its references and the cited date of its
// incoming citations.
func NIHTuples(row map[string]string) []Tuple {
	self := normalizeID(identifier.PMID, row["pmid"])
	if self == "" {
		return nil
	}
	var (
		date   = dateutil.CheckDate(dateutil.Year(row["year"]))
		tuples []Tuple
		seen   = make(map[string]bool)
	)
	for _, ref := range strings.Fields(row["references"]) {
		cited := normalizeID(identifier.PMID, ref)
		if cited == "" || cited == self || seen["r"+cited] {
			continue
		}
		seen["r"+cited] = true
		tuples = append(tuples, Tuple{Citing: self, Cited: cited, CitingDate: date})
	}
	for _, by := range strings.Fields(row["cited_by"]) {
		citing := normalizeID(identifier.PMID, by)
		if citing == "" || citing == self || seen["c"+citing] {
			continue
		}
		seen["c"+citing] = true
		tuples = append(tuples, Tuple{Citing: citing, Cited: self, CitedDate: date})
	}
	return tuples
}

var _ Parser = (*NIH)(nil)
