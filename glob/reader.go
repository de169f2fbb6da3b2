package glob

import (
	"fmt"
	"strings"

	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/finder"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/parser"
	"github.com/opencitations/index-sub000/schema/crossref"
	"github.com/opencitations/index-sub000/schema/datacite"
)

// Entity is what a dump record tells about the entity it describes.
type Entity struct {
	ID     string
	Record datasource.Record
	// Journal, DOI and Authors are only used for ISSN and ORCID
	// enrichment of dumps lacking them.
	Journal string
	DOI     string
	Authors []finder.AuthorName
}

// Reference is an entity referred to by a record, with the date the
// record gives for it, if any.
type Reference struct {
	ID   string
	Date string
}

// Reader reads entities and their references from dump files.
type Reader interface {
	// Parser selects the files to read.
	Parser() parser.Parser
	Each(filename string, fn func(e Entity, refs []Reference) error) error
}

// NewReader returns the reader for a dump kind: crossref, datacite or nih.
func NewReader(name string) (Reader, error) {
	switch strings.ToLower(name) {
	case "crossref":
		return crossrefReader{}, nil
	case "datacite":
		return dataciteReader{}, nil
	case "nih":
		return nihReader{}, nil
	default:
		return nil, fmt.Errorf("%w: no glob reader for %q", parser.ErrUnknownParser, name)
	}
}

func prefixed(s identifier.Scheme, raw string) string {
	m, _ := identifier.ForScheme(s)
	return m.Normalize(raw, true)
}

type crossrefReader struct{}

func (crossrefReader) Parser() parser.Parser { return parser.NewCrossref() }

func (crossrefReader) Each(filename string, fn func(Entity, []Reference) error) error {
	return parser.EachCrossrefWork(filename, func(_ int, w *crossref.Work) error {
		id := prefixed(identifier.DOI, w.DOI)
		if id == "" {
			return nil
		}
		var refs []Reference
		for _, ref := range w.Reference {
			if cited := prefixed(identifier.DOI, ref.DOI); cited != "" {
				refs = append(refs, Reference{
					ID:   cited,
					Date: dateutil.CheckDate(dateutil.Year(ref.Year)),
				})
			}
		}
		return fn(Entity{ID: id, Record: *finder.CrossrefRecord(w)}, refs)
	})
}

type dataciteReader struct{}

func (dataciteReader) Parser() parser.Parser { return parser.NewDataCite() }

// Each yields every related DOI of a citation relation as reference,
// whatever the direction, since all of them take part in citations.
func (dataciteReader) Each(filename string, fn func(Entity, []Reference) error) error {
	return parser.EachDataCiteRecord(filename, func(_ int, a *datacite.Attributes) error {
		id := prefixed(identifier.DOI, a.DOI)
		if id == "" {
			return nil
		}
		var refs []Reference
		for _, t := range parser.DataCiteTuples(a) {
			other := t.Cited
			if other == id {
				other = t.Citing
			}
			refs = append(refs, Reference{ID: other})
		}
		return fn(Entity{ID: id, Record: *finder.DataCiteRecord(a)}, refs)
	})
}

type nihReader struct{}

func (nihReader) Parser() parser.Parser { return parser.NewNIH() }

func (nihReader) Each(filename string, fn func(Entity, []Reference) error) error {
	return parser.EachNIHRow(filename, func(_ int, row map[string]string) error {
		id := prefixed(identifier.PMID, row["pmid"])
		if id == "" {
			return nil
		}
		e := Entity{
			ID: id,
			Record: datasource.Record{
				Valid: true,
				Date:  dateutil.CheckDate(dateutil.Year(row["year"])),
			},
			Journal: strings.TrimSpace(row["journal"]),
			DOI:     identifier.DOIManager{}.Normalize(row["doi"], false),
			Authors: finder.ParseAuthors(row["authors"]),
		}
		var refs []Reference
		for _, t := range parser.NIHTuples(row) {
			other := t.Cited
			if other == id {
				other = t.Citing
			}
			refs = append(refs, Reference{ID: other})
		}
		return fn(e, refs)
	})
}
