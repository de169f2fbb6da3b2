package citation

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/knakk/rdf"
)

// Vocabulary used in the RDF serialization.
const (
	rdfType   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabel = "http://www.w3.org/2000/01/rdf-schema#label"
	xsdBase   = "http://www.w3.org/2001/XMLSchema#"
	xsdString = xsdBase + "string"

	citoBase                = "http://purl.org/spar/cito/"
	CitoCitation            = citoBase + "Citation"
	CitoAuthorSelfCitation  = citoBase + "AuthorSelfCitation"
	CitoJournalSelfCitation = citoBase + "JournalSelfCitation"
	CitoHasCitingEntity     = citoBase + "hasCitingEntity"
	CitoHasCitedEntity      = citoBase + "hasCitedEntity"
	CitoHasCreationDate     = citoBase + "hasCitationCreationDate"
	CitoHasTimeSpan         = citoBase + "hasCitationTimeSpan"

	dataciteBase                 = "http://purl.org/spar/datacite/"
	DataciteIdentifier           = dataciteBase + "Identifier"
	DataciteUsesIdentifierScheme = dataciteBase + "usesIdentifierScheme"
	DataciteOCI                  = dataciteBase + "oci"
	LiteralHasLiteralValue       = "http://www.essepuntato.it/2010/06/literalreification/hasLiteralValue"

	provBase              = "http://www.w3.org/ns/prov#"
	ProvEntity            = provBase + "Entity"
	ProvWasAttributedTo   = provBase + "wasAttributedTo"
	ProvHadPrimarySource  = provBase + "hadPrimarySource"
	ProvGeneratedAtTime   = provBase + "generatedAtTime"
	ProvInvalidatedAtTime = provBase + "invalidatedAtTime"
	ProvSpecializationOf  = provBase + "specializationOf"
	ProvWasDerivedFrom    = provBase + "wasDerivedFrom"

	OcoHasUpdateQuery  = "https://w3id.org/oc/ontology/hasUpdateQuery"
	DctermsDescription = "http://purl.org/dc/terms/description"

	XSDDate       = xsdBase + "date"
	XSDGYearMonth = xsdBase + "gYearMonth"
	XSDGYear      = xsdBase + "gYear"
	XSDDuration   = xsdBase + "duration"
	XSDDateTime   = xsdBase + "dateTime"
)

// TermKind distinguishes IRIs, blank nodes and literals.
type TermKind int

const (
	KindIRI TermKind = iota
	KindLiteral
	KindBlank
)

// Term is a node of an RDF statement.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

func IRI(v string) Term              { return Term{Kind: KindIRI, Value: v} }
func Literal(v string) Term          { return Term{Kind: KindLiteral, Value: v} }
func TypedLiteral(v, dt string) Term { return Term{Kind: KindLiteral, Value: v, Datatype: dt} }

func (t Term) node() (rdf.Term, error) {
	switch t.Kind {
	case KindIRI:
		return rdf.NewIRI(t.Value)
	case KindBlank:
		return rdf.NewBlank(t.Value)
	}
	switch {
	case t.Lang != "":
		return rdf.NewLangLiteral(t.Value, t.Lang)
	case t.Datatype != "":
		dt, err := rdf.NewIRI(t.Datatype)
		if err != nil {
			return nil, err
		}
		return rdf.NewTypedLiteral(t.Value, dt), nil
	}
	return rdf.NewLiteral(t.Value)
}

func termOf(node rdf.Term) Term {
	switch v := node.(type) {
	case rdf.IRI:
		return IRI(v.String())
	case rdf.Blank:
		return Term{Kind: KindBlank, Value: strings.TrimPrefix(v.String(), "_:")}
	case rdf.Literal:
		t := Term{Kind: KindLiteral, Value: v.String(), Lang: v.Lang()}
		if dt := v.DataType.String(); t.Lang == "" && dt != xsdString {
			t.Datatype = dt
		}
		return t
	}
	return Term{}
}

// Quad is a statement with an optional graph name. Without graph name it
// is a triple.
type Quad struct {
	S, P, O Term
	G       string
}

func (q Quad) statement() (rdf.Quad, error) {
	var (
		st    rdf.Quad
		nodes [3]rdf.Term
		err   error
	)
	for i, t := range []Term{q.S, q.P, q.O} {
		if nodes[i], err = t.node(); err != nil {
			return st, err
		}
	}
	subj, ok := nodes[0].(rdf.Subject)
	if !ok {
		return st, fmt.Errorf("invalid subject %q", q.S.Value)
	}
	pred, ok := nodes[1].(rdf.Predicate)
	if !ok {
		return st, fmt.Errorf("invalid predicate %q", q.P.Value)
	}
	obj, ok := nodes[2].(rdf.Object)
	if !ok {
		return st, fmt.Errorf("invalid object %q", q.O.Value)
	}
	st.Triple = rdf.Triple{Subj: subj, Pred: pred, Obj: obj}
	if q.G != "" {
		g, err := rdf.NewIRI(q.G)
		if err != nil {
			return st, err
		}
		st.Ctx = g
	}
	return st, nil
}

// RDFOptions control which parts of the citation graph are generated.
type RDFOptions struct {
	Label      bool // rdfs:label on citation and identifier
	Identifier bool // OCI identifier entity
	Prov       bool // provenance graphs
}

// CitationIRI returns the IRI of the citation entity.
func (c *Citation) CitationIRI(base string) string {
	return base + "ci/" + c.Body()
}

// IdentifierIRI returns the IRI of the OCI identifier entity.
func (c *Citation) IdentifierIRI(base string) string {
	return base + "id/ci-" + c.Body()
}

// creationDatatype picks the xsd type by granularity of the creation date.
func creationDatatype(date string) string {
	switch {
	case len(date) >= 10:
		return XSDDate
	case len(date) >= 7:
		return XSDGYearMonth
	default:
		return XSDGYear
	}
}

// Triples returns the data statements of the citation, and depending on
// opts the identifier statements and provenance quads.
func (c *Citation) Triples(base string, opts RDFOptions) []Quad {
	var (
		s      = IRI(c.CitationIRI(base))
		result []Quad
		add    = func(p string, o Term) { result = append(result, Quad{S: s, P: IRI(p), O: o}) }
	)
	if opts.Label {
		add(rdfsLabel, Literal(fmt.Sprintf("citation %s [ci/%s]", c.OCI, c.Body())))
	}
	add(rdfType, IRI(CitoCitation))
	if c.AuthorSC {
		add(rdfType, IRI(CitoAuthorSelfCitation))
	}
	if c.JournalSC {
		add(rdfType, IRI(CitoJournalSelfCitation))
	}
	if c.CitingURL != "" {
		add(CitoHasCitingEntity, IRI(c.CitingURL))
	}
	if c.CitedURL != "" {
		add(CitoHasCitedEntity, IRI(c.CitedURL))
	}
	if c.Creation != "" {
		add(CitoHasCreationDate, TypedLiteral(c.Creation, creationDatatype(c.Creation)))
		if c.Duration != "" {
			add(CitoHasTimeSpan, TypedLiteral(c.Duration, XSDDuration))
		}
	}
	if opts.Identifier {
		result = append(result, c.IdentifierTriples(base, opts.Label)...)
		if opts.Prov {
			result = append(result, c.IdentifierProvQuads(base)...)
		}
	}
	if opts.Prov {
		result = append(result, c.ProvQuads(base)...)
	}
	return result
}

// ProvQuads returns the provenance snapshot of the citation, in the named
// graph "<citation>/prov/".
func (c *Citation) ProvQuads(base string) []Quad {
	var (
		citation = c.CitationIRI(base)
		graph    = citation + "/prov/"
		se       = graph + "se/" + strconv.Itoa(c.ProvEntity)
		s        = IRI(se)
		result   []Quad
		add      = func(p string, o Term) { result = append(result, Quad{S: s, P: IRI(p), O: o, G: graph}) }
	)
	add(rdfType, IRI(ProvEntity))
	add(ProvSpecializationOf, IRI(citation))
	add(ProvWasAttributedTo, IRI(c.ProvAgent))
	add(ProvHadPrimarySource, IRI(c.Source))
	add(ProvGeneratedAtTime, TypedLiteral(c.ProvDate, XSDDateTime))
	if c.ProvInvalidated != "" {
		add(ProvInvalidatedAtTime, TypedLiteral(c.ProvInvalidated, XSDDateTime))
	}
	if c.ProvDescription != "" {
		add(DctermsDescription, Literal(c.ProvDescription))
	}
	if c.ProvUpdate != "" {
		add(OcoHasUpdateQuery, Literal(c.ProvUpdate))
		add(ProvWasDerivedFrom, IRI(graph+"se/"+strconv.Itoa(c.ProvEntity-1)))
	}
	return result
}

// IdentifierTriples describe the OCI as a datacite identifier.
func (c *Citation) IdentifierTriples(base string, label bool) []Quad {
	var (
		s      = IRI(c.IdentifierIRI(base))
		result []Quad
		add    = func(p string, o Term) { result = append(result, Quad{S: s, P: IRI(p), O: o}) }
	)
	if label {
		local := "ci-" + c.Body()
		add(rdfsLabel, Literal(fmt.Sprintf("identifier %s [id/%s]", local, local)))
	}
	add(rdfType, IRI(DataciteIdentifier))
	add(DataciteUsesIdentifierScheme, IRI(DataciteOCI))
	add(LiteralHasLiteralValue, Literal(c.OCI))
	return result
}

// IdentifierProvQuads returns the first provenance snapshot of the
// identifier entity.
func (c *Citation) IdentifierProvQuads(base string) []Quad {
	var (
		id     = c.IdentifierIRI(base)
		graph  = id + "/prov/"
		s      = IRI(graph + "se/1")
		result []Quad
		add    = func(p string, o Term) { result = append(result, Quad{S: s, P: IRI(p), O: o, G: graph}) }
	)
	add(rdfType, IRI(ProvEntity))
	add(ProvSpecializationOf, IRI(id))
	add(ProvWasAttributedTo, IRI(c.ProvAgent))
	add(ProvHadPrimarySource, IRI(c.Source))
	add(ProvGeneratedAtTime, TypedLiteral(c.ProvDate, XSDDateTime))
	return result
}

// WriteQuads writes statements without graph name as N-Triples and the
// others as N-Quads, one per line.
func WriteQuads(w io.Writer, quads []Quad) error {
	bw := bufio.NewWriter(w)
	for _, q := range quads {
		st, err := q.statement()
		if err != nil {
			return err
		}
		var line string
		if q.G == "" {
			line = st.Triple.Serialize(rdf.NTriples)
		} else {
			line = st.Serialize(rdf.NQuads)
		}
		if _, err := bw.WriteString(strings.TrimRight(line, "\n") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTriples decodes N-Triples.
func ReadTriples(r io.Reader) ([]Quad, error) {
	var (
		dec    = rdf.NewTripleDecoder(r, rdf.NTriples)
		result []Quad
	)
	for {
		t, err := dec.Decode()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result = append(result, Quad{S: termOf(t.Subj), P: termOf(t.Pred), O: termOf(t.Obj)})
	}
}

// ReadQuads decodes N-Quads.
func ReadQuads(r io.Reader) ([]Quad, error) {
	var (
		dec    = rdf.NewQuadDecoder(r, rdf.NQuads)
		result []Quad
	)
	for {
		q, err := dec.Decode()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		v := Quad{S: termOf(q.Subj), P: termOf(q.Pred), O: termOf(q.Obj)}
		if q.Ctx != nil {
			v.G = termOf(q.Ctx).Value
		}
		result = append(result, v)
	}
}
