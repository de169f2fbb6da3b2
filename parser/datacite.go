package parser

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/schema/datacite"
	"github.com/segmentio/encoding/json"
)

// DataCite reads DataCite records, either as NDJSON with one record per
// line (".ndjson", ".jsonl") or as a JSON document with a "data" array
// (".json"). A line may hold a bare record or a record wrapped in "data".
//
// Related identifiers of type DOI with relation "References" or "Cites"
// yield a citation from the record to the related DOI; "IsReferencedBy" and
// "IsCitedBy" yield the inverse citation.
type DataCite struct {
	file
	scanner *bufio.Scanner
	stream  *arrayStream
}

func NewDataCite() *DataCite { return &DataCite{} }

func (p *DataCite) Name() string { return "datacite" }

func (p *DataCite) IsValid(filename string) bool {
	return hasExt(filename, ".json", ".ndjson", ".jsonl")
}

func (p *DataCite) Parse(filename string) error {
	r, err := p.open(filename)
	if err != nil {
		return err
	}
	p.scanner, p.stream = nil, nil
	if hasExt(filename, ".json") {
		p.stream, err = newArrayStream(r, "data", filename)
		return err
	}
	p.scanner = newScanner(r)
	return nil
}

func (p *DataCite) read() ([]byte, error) {
	switch {
	case p.stream != nil:
		return p.stream.next()
	case p.scanner != nil:
		for p.scanner.Scan() {
			line := bytes.TrimSpace(p.scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			return line, nil
		}
		if err := p.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	default:
		return nil, ErrNotParsed
	}
}

func (p *DataCite) Next() (Row, error) {
	for {
		raw, err := p.read()
		if err != nil {
			return Row{}, err
		}
		index := p.index
		p.index++
		doc, err := decodeDataCite(raw)
		if err != nil {
			p.skip(index, err)
			continue
		}
		if tuples := DataCiteTuples(&doc.Attributes); len(tuples) > 0 {
			return Row{Index: index, Tuples: tuples}, nil
		}
	}
}

// decodeDataCite accepts a bare record as well as a record wrapped in
// "data", as returned by the API.
func decodeDataCite(raw []byte) (datacite.Document, error) {
	var wrapped struct {
		Data *datacite.Document `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return *wrapped.Data, nil
	}
	var doc datacite.Document
	err := json.Unmarshal(raw, &doc)
	return doc, err
}

// DataCiteTuples extracts the citations of a single record.
func DataCiteTuples(attr *datacite.Attributes) []Tuple {
	self := normalizeID(identifier.DOI, attr.DOI)
	if self == "" {
		return nil
	}
	date := dateutil.CheckDate(attr.IssuedDate())
	if date == "" {
		date = attr.Year()
	}
	var tuples []Tuple
	for _, rel := range attr.RelatedIdentifiers {
		if !strings.EqualFold(strings.TrimSpace(rel.RelatedIdentifierType), "doi") {
			continue
		}
		other := normalizeID(identifier.DOI, rel.RelatedIdentifier)
		if other == "" || other == self {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(rel.RelationType)) {
		case "references", "cites":
			tuples = append(tuples, Tuple{Citing: self, Cited: other, CitingDate: date})
		case "isreferencedby", "iscitedby":
			tuples = append(tuples, Tuple{Citing: other, Cited: self, CitedDate: date})
		}
	}
	return tuples
}

var _ Parser = (*DataCite)(nil)
