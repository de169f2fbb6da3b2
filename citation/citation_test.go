package citation

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	testBase  = "https://w3id.org/oc/index/"
	testOCI   = "oci:02001000007362801010109026300010863020908086335-02005020801363514232413243703030404080908"
	testShape = "https://doi.org/([[XXX__decode]])"
)

func testParams() Params {
	return Params{
		OCI:             testOCI,
		CitingURL:       "https://doi.org/10.1007/s11192-018-2988-z",
		CitingDate:      "2019-01-02",
		CitedURL:        "https://doi.org/10.5281/zenodo.3344898",
		CitedDate:       "2019-07-29",
		AuthorSC:        true,
		ProvEntity:      1,
		ProvAgent:       "https://w3id.org/oc/index/prov/pa/1",
		Source:          "https://api.crossref.org/works/[[citing]]",
		ProvDate:        "2023-01-04T10:00:00",
		ServiceName:     "OpenCitations Index: COCI",
		IDType:          "doi",
		IDShape:         testShape,
		Type:            Reference,
		ProvDescription: DefaultDescription,
	}
}

func testOptions() LoadOptions {
	return LoadOptions{
		BaseURL:     "https://doi.org/",
		ServiceName: "OpenCitations Index: COCI",
		IDType:      "doi",
		IDShape:     testShape,
		Type:        Reference,
		OCI:         testOCI,
		Agent:       "https://w3id.org/oc/index/prov/pa/1",
		Source:      "https://api.crossref.org/works/[[citing]]",
	}
}

// golden compares got with the content of a file under testdata, creating
// the file if it does not exist yet.
func golden(t *testing.T, name string, got []byte) {
	t.Helper()
	goldenfile := filepath.Join("testdata", name)
	want, err := os.ReadFile(goldenfile)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.WriteFile(goldenfile, got, 0644); err != nil {
				t.Fatal(err)
			}
			t.Logf("created golden file: %s", goldenfile)
			return
		}
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
	}
}

func TestNew(t *testing.T) {
	var cases = []struct {
		about      string
		params     Params
		citingDate string
		citedDate  string
		creation   string
		duration   string
	}{
		{
			about:      "both dates, cited after citing",
			params:     Params{CitingDate: "2019-01-02", CitedDate: "2019-07-29"},
			citingDate: "2019-01-02",
			citedDate:  "2019-07-29",
			creation:   "2019-01-02",
			duration:   "-P0Y6M27D",
		},
		{
			about:      "cited date with month precision",
			params:     Params{CitingDate: "2003-10-24", CitedDate: "2001-01"},
			citingDate: "2003-10-24",
			citedDate:  "2001-01",
			creation:   "2003-10-24",
			duration:   "P2Y9M",
		},
		{
			about:      "leap day",
			params:     Params{CitingDate: "2001-08-15", CitedDate: "1996-02-29"},
			citingDate: "2001-08-15",
			citedDate:  "1996-02-29",
			creation:   "2001-08-15",
			duration:   "P5Y5M17D",
		},
		{
			about:      "leap day in non-leap year is repaired",
			params:     Params{CitingDate: "2019-02-29", CitedDate: "2018-02-28"},
			citingDate: "2019-02-28",
			citedDate:  "2018-02-28",
			creation:   "2019-02-28",
			duration:   "P1Y0M0D",
		},
		{
			about:      "citing date from creation, cited date from timespan",
			params:     Params{Creation: "2019-01-02", Timespan: "-P0Y6M27D"},
			citingDate: "2019-01-02",
			citedDate:  "2019-07-29",
			creation:   "2019-01-02",
			duration:   "-P0Y6M27D",
		},
		{
			about:      "timespan without cited date is dropped",
			params:     Params{CitingDate: "2019", Timespan: "P2Y"},
			citingDate: "2019",
			creation:   "2019",
		},
		{
			about:      "creation is overridden by citing date",
			params:     Params{Creation: "2010", CitingDate: "2012-05", CitedDate: "2010"},
			citingDate: "2012-05",
			citedDate:  "2010",
			creation:   "2012-05",
			duration:   "P2Y",
		},
		{
			about:  "invalid dates are dropped",
			params: Params{CitingDate: "2019-13-01", CitedDate: "yesterday", Timespan: "P1M"},
		},
		{
			about:      "year precision only",
			params:     Params{CitingDate: "2020", CitedDate: "2020-06-30"},
			citingDate: "2020",
			citedDate:  "2020-06-30",
			creation:   "2020",
			duration:   "P0Y",
		},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d %s", i, c.about), func(t *testing.T) {
			v := New(c.params)
			got := []string{v.CitingDate, v.CitedDate, v.Creation, v.Duration}
			want := []string{c.citingDate, c.citedDate, c.creation, c.duration}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("dates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewProvenance(t *testing.T) {
	p := testParams()
	p.OCI = " 0201-0202 "
	p.ProvDate = "2023-01-04T10:00:00.123Z"
	p.ProvInvalidated = "not a date"
	p.ProvUpdate = "  "
	p.Type = "unknown"
	c := New(p)
	if c.OCI != "oci:0201-0202" {
		t.Errorf("OCI: got %q", c.OCI)
	}
	if c.Body() != "0201-0202" {
		t.Errorf("Body: got %q", c.Body())
	}
	if c.ProvDate != "2023-01-04T10:00:00" {
		t.Errorf("ProvDate: got %q", c.ProvDate)
	}
	if c.ProvInvalidated != "" || c.ProvUpdate != "" {
		t.Errorf("expected empty invalidation and update, got %q %q", c.ProvInvalidated, c.ProvUpdate)
	}
	if c.Type != Reference {
		t.Errorf("Type: got %q", c.Type)
	}
	if want := "https://api.crossref.org/works/10.1007/s11192-018-2988-z"; c.Source != want {
		t.Errorf("Source: got %q, want %q", c.Source, want)
	}
}

func TestSourceCited(t *testing.T) {
	p := testParams()
	p.Source = "https://example.org/source/[[cited]]"
	c := New(p)
	if want := "https://example.org/source/10.5281/zenodo.3344898"; c.Source != want {
		t.Errorf("got %q, want %q", c.Source, want)
	}
}

func TestID(t *testing.T) {
	var cases = []struct {
		shape string
		url   string
		want  string
	}{
		{testShape, "https://doi.org/10.1007/s11192-018-2988-z", "10.1007/s11192-018-2988-z"},
		{testShape, "https://doi.org/10.1002/%28SICI%291097-4571", "10.1002/(SICI)1097-4571"},
		{"https://pubmed.ncbi.nlm.nih.gov/([[XXX__decode]])", "https://pubmed.ncbi.nlm.nih.gov/12345", "12345"},
		{"https://w3id.org/oc/meta/([[XXX]])", "https://w3id.org/oc/meta/br/0610%20", "br/0610%20"},
		{"", "https://doi.org/10.1/2", "https://doi.org/10.1/2"},
		{testShape, "", ""},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			v := &Citation{IDShape: c.shape}
			if got := v.ID(c.url); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestCSV(t *testing.T) {
	c := New(testParams())
	var data, prov bytes.Buffer
	if err := WriteCSV(&data, []*Citation{c}, true); err != nil {
		t.Fatal(err)
	}
	if err := WriteProvCSV(&prov, []*Citation{c}, true); err != nil {
		t.Fatal(err)
	}
	golden(t, "citation.csv", data.Bytes())
	golden(t, "citation.prov.csv", prov.Bytes())

	loaded, err := LoadCSV(&data, &prov, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("got %d citations, want 1", len(loaded))
	}
	if diff := cmp.Diff(c, loaded[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatCSVLine(t *testing.T) {
	got := FormatCSVLine([]string{"a", `b "c"`, ""})
	if want := `"a","b ""c""",""` + "\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadCSVMissingProvenance(t *testing.T) {
	data := strings.NewReader("oci,citing,cited,creation,timespan,journal_sc,author_sc\n\"0201-0202\",\"10.1/a\",\"10.1/b\",\"\",\"\",\"no\",\"no\"\n")
	prov := strings.NewReader("oci,snapshot,agent,source,created,invalidated,description,update\n")
	if _, err := LoadCSV(data, prov, testOptions()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRDF(t *testing.T) {
	c := New(testParams())
	var data, prov bytes.Buffer
	if err := WriteQuads(&data, c.Triples(testBase, RDFOptions{})); err != nil {
		t.Fatal(err)
	}
	if err := WriteQuads(&prov, c.ProvQuads(testBase)); err != nil {
		t.Fatal(err)
	}
	golden(t, "citation.nt", data.Bytes())
	golden(t, "citation.nq", prov.Bytes())

	loaded, err := LoadRDF(bytes.NewReader(data.Bytes()), bytes.NewReader(prov.Bytes()), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("got %d citations, want 1", len(loaded))
	}
	if diff := cmp.Diff(c, loaded[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	var again bytes.Buffer
	if err := WriteQuads(&again, loaded[0].Triples(testBase, RDFOptions{})); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(data.String(), again.String()); diff != "" {
		t.Errorf("triples changed (-want +got):\n%s", diff)
	}
}

func TestRDFLatestSnapshot(t *testing.T) {
	first := New(testParams())
	p := testParams()
	p.ProvEntity = 2
	p.ProvDate = "2024-02-01T00:00:00"
	p.ProvDescription = "Update of the citation"
	p.ProvUpdate = "DELETE DATA { }"
	second := New(p)

	var data, prov bytes.Buffer
	if err := WriteQuads(&data, first.Triples(testBase, RDFOptions{})); err != nil {
		t.Fatal(err)
	}
	quads := append(second.ProvQuads(testBase), first.ProvQuads(testBase)...)
	if err := WriteQuads(&prov, quads); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadRDF(&data, &prov, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("got %d citations, want 1", len(loaded))
	}
	got := loaded[0]
	if got.ProvEntity != 2 || got.ProvUpdate != "DELETE DATA { }" || got.ProvDate != "2024-02-01T00:00:00" {
		t.Errorf("expected second snapshot, got %d %q %q", got.ProvEntity, got.ProvDate, got.ProvUpdate)
	}
}

func TestTriplesOptions(t *testing.T) {
	c := New(testParams())
	all := c.Triples(testBase, RDFOptions{Label: true, Identifier: true, Prov: true})
	var (
		graphs   = make(map[string]int)
		literals []string
	)
	for _, q := range all {
		graphs[q.G]++
		if q.P.Value == LiteralHasLiteralValue {
			literals = append(literals, q.O.Value)
		}
	}
	if graphs[""] != 11 {
		t.Errorf("got %d default graph triples, want 11", graphs[""])
	}
	if n := graphs[c.IdentifierIRI(testBase)+"/prov/"]; n != 5 {
		t.Errorf("got %d identifier provenance quads, want 5", n)
	}
	if n := graphs[c.CitationIRI(testBase)+"/prov/"]; n != 6 {
		t.Errorf("got %d citation provenance quads, want 6", n)
	}
	if diff := cmp.Diff([]string{testOCI}, literals); diff != "" {
		t.Errorf("identifier literal mismatch (-want +got):\n%s", diff)
	}
}

func TestCreationDatatype(t *testing.T) {
	for _, c := range []struct{ date, want string }{
		{"2019", XSDGYear},
		{"2019-05", XSDGYearMonth},
		{"2019-05-01", XSDDate},
	} {
		if got := creationDatatype(c.date); got != c.want {
			t.Errorf("%s: got %s, want %s", c.date, got, c.want)
		}
	}
}

func TestReadRDF(t *testing.T) {
	var cases = []struct {
		about string
		read  func(io.Reader) ([]Quad, error)
		input string
		want  []Quad
		err   bool
	}{
		{
			about: "typed literal in graph",
			read:  ReadQuads,
			input: `<http://a> <http://b> "x \"y\"\n"^^<http://t> <http://g> .` + "\n",
			want:  []Quad{{S: IRI("http://a"), P: IRI("http://b"), O: TypedLiteral("x \"y\"\n", "http://t"), G: "http://g"}},
		},
		{
			about: "language tag",
			read:  ReadTriples,
			input: `<http://a> <http://b> "hallo"@de .` + "\n",
			want:  []Quad{{S: IRI("http://a"), P: IRI("http://b"), O: Term{Kind: KindLiteral, Value: "hallo", Lang: "de"}}},
		},
		{
			about: "blank node and comment",
			read:  ReadTriples,
			input: "# comment\n\n_:b0 <http://b> <http://c> .\n",
			want:  []Quad{{S: Term{Kind: KindBlank, Value: "b0"}, P: IRI("http://b"), O: IRI("http://c")}},
		},
		{about: "missing object", read: ReadTriples, input: "<http://a> <http://b> .\n", err: true},
		{about: "missing dot", read: ReadTriples, input: "<http://a> <http://b> <http://c>\n", err: true},
		{about: "open literal", read: ReadQuads, input: `<http://a> <http://b> "open .` + "\n", err: true},
	}
	for _, c := range cases {
		t.Run(c.about, func(t *testing.T) {
			got, err := c.read(strings.NewReader(c.input))
			if (err != nil) != c.err {
				t.Fatalf("got err %v, want error: %v", err, c.err)
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRDFEscaping(t *testing.T) {
	quads := []Quad{
		{S: IRI("http://a/b%20c"), P: IRI("http://p"), O: Literal("line\nbreak \\ \"quoted\""), G: "http://g"},
		{S: IRI("http://a/b%20c"), P: IRI("http://p"), O: Literal("tab\there"), G: "http://g"},
	}
	var buf bytes.Buffer
	if err := WriteQuads(&buf, quads); err != nil {
		t.Fatal(err)
	}
	got, err := ReadQuads(&buf)
	if err != nil {
		t.Fatalf("read %q: %v", buf.String(), err)
	}
	if diff := cmp.Diff(quads, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteQuadsInvalidIRI(t *testing.T) {
	q := Quad{S: IRI("http://a/b c"), P: IRI("http://p"), O: Literal("x")}
	if err := WriteQuads(io.Discard, []Quad{q}); err == nil {
		t.Fatal("expected error for IRI with space")
	}
}

func TestScholix(t *testing.T) {
	c := New(testParams())
	b, err := c.MarshalScholix()
	if err != nil {
		t.Fatal(err)
	}
	golden(t, "citation.scholix", b)

	f, err := os.Open(filepath.Join("testdata", "citations.scholix"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	loaded, err := LoadScholix(f, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("got %d citations, want 1", len(loaded))
	}
	if diff := cmp.Diff(c.Scholix(), loaded[0].Scholix()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if loaded[0].OCI != testOCI || loaded[0].Duration != "-P0Y6M27D" {
		t.Errorf("got %q %q", loaded[0].OCI, loaded[0].Duration)
	}
}

func TestScholixSupplement(t *testing.T) {
	p := testParams()
	p.Type = Supplement
	p.CitedDate = ""
	link := New(p).Scholix()
	if link.RelationshipType.Name != "IsSupplementedBy" {
		t.Errorf("got %q", link.RelationshipType.Name)
	}
	b, err := New(p).MarshalScholix()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(b), `"PublicationDate"`) != 1 {
		t.Errorf("expected a single publication date, got %s", b)
	}
}
