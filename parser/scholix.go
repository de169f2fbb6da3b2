package parser

import (
	"strings"

	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/schema/scholix"
	"github.com/segmentio/encoding/json"
)

// Scholix reads ".scholix" files holding a single JSON array of links. Each
// link yields a citation from its source to its target.
type Scholix struct {
	file
	stream *arrayStream
}

func NewScholix() *Scholix { return &Scholix{} }

func (p *Scholix) Name() string { return "scholix" }

func (p *Scholix) IsValid(filename string) bool {
	return hasExt(filename, ".scholix")
}

func (p *Scholix) Parse(filename string) error {
	r, err := p.open(filename)
	if err != nil {
		return err
	}
	p.stream, err = newArrayStream(r, "", filename)
	return err
}

func (p *Scholix) Next() (Row, error) {
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
		var link scholix.Link
		if err := json.Unmarshal(raw, &link); err != nil {
			p.skip(index, err)
			continue
		}
		if t, ok := ScholixTuple(&link); ok {
			return Row{Index: index, Tuples: []Tuple{t}}, nil
		}
	}
}

func scholixID(id scholix.Identifier) string {
	s := identifier.Scheme(strings.ToLower(strings.TrimSpace(id.IDScheme)))
	if _, err := identifier.ForScheme(s); err != nil {
		s = identifier.DOI
	}
	return normalizeID(s, id.ID)
}

// ScholixTuple extracts the citation of a single link. Links with an
// unusable source or target are dropped.
func ScholixTuple(link *scholix.Link) (Tuple, bool) {
	citing := scholixID(link.Source.Identifier)
	cited := scholixID(link.Target.Identifier)
	if citing == "" || cited == "" {
		return Tuple{}, false
	}
	t := Tuple{
		Citing:     citing,
		Cited:      cited,
		CitingDate: dateutil.Lenient(link.Source.PublicationDate),
		CitedDate:  dateutil.Lenient(link.Target.PublicationDate),
	}
	return t, true
}

var _ Parser = (*Scholix)(nil)
