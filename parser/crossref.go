package parser

import (
	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/schema/crossref"
	"github.com/segmentio/encoding/json"
)

// Crossref reads files of the Crossref public data file, each a JSON object
// with an "items" array of works. Every work with a DOI yields one tuple per
// reference with a valid DOI. The citing date is taken from "issued".
type Crossref struct {
	file
	stream *arrayStream
}

func NewCrossref() *Crossref { return &Crossref{} }

func (p *Crossref) Name() string { return "crossref" }

func (p *Crossref) IsValid(filename string) bool {
	return hasExt(filename, ".json")
}

func (p *Crossref) Parse(filename string) error {
	r, err := p.open(filename)
	if err != nil {
		return err
	}
	p.stream, err = newArrayStream(r, "items", filename)
	return err
}

func (p *Crossref) Next() (Row, error) {
	if p.stream == nil {
		return Row{}, ErrNotParsed
	}
	for {
		raw, err := p.stream.next()
		if err != nil {
			return Row{}, err
		}
		index := p.index
		p.index++
		var work crossref.Work
		if err := json.Unmarshal(raw, &work); err != nil {
			p.skip(index, err)
			continue
		}
		if tuples := CrossrefTuples(&work); len(tuples) > 0 {
			return Row{Index: index, Tuples: tuples}, nil
		}
	}
}

// CrossrefTuples extracts the citations of a single work.
func CrossrefTuples(work *crossref.Work) []Tuple {
	citing := normalizeID(identifier.DOI, work.DOI)
	if citing == "" {
		return nil
	}
	var (
		date   = dateutil.FromParts(work.Issued.First())
		tuples []Tuple
	)
	for _, ref := range work.Reference {
		cited := normalizeID(identifier.DOI, ref.DOI)
		if cited == "" {
			continue
		}
		tuples = append(tuples, Tuple{Citing: citing, Cited: cited, CitingDate: date})
	}
	return tuples
}

var _ Parser = (*Crossref)(nil)
