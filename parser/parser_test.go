package parser

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
)

// readAll parses a file and collects all rows.
func readAll(t *testing.T, p Parser, filename string) []Row {
	t.Helper()
	if err := p.Parse(filename); err != nil {
		t.Fatalf("parse %s: %v", filename, err)
	}
	defer p.Close()
	var rows []Row
	for {
		row, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestParsers(t *testing.T) {
	var cases = []struct {
		parser   Parser
		filename string
		want     []Row
	}{
		{
			parser:   NewCrossref(),
			filename: "crossref.json",
			want: []Row{
				{Index: 0, Tuples: []Tuple{{Citing: "doi:10.1/a", Cited: "doi:10.2/b", CitingDate: "2019-05-03"}}},
				{Index: 2, Tuples: []Tuple{{Citing: "doi:10.1/c", Cited: "doi:10.2/d", CitingDate: "2020"}}},
			},
		},
		{
			parser:   NewDataCite(),
			filename: "datacite.ndjson",
			want: []Row{
				{Index: 0, Tuples: []Tuple{
					{Citing: "doi:10.5/x", Cited: "doi:10.6/a", CitingDate: "2018"},
					{Citing: "doi:10.6/b", Cited: "doi:10.5/x", CitedDate: "2018"},
				}},
				{Index: 2, Tuples: []Tuple{{Citing: "doi:10.5/y", Cited: "doi:10.6/d", CitingDate: "2017-03-01"}}},
			},
		},
		{
			parser:   NewDataCite(),
			filename: "datacite.json",
			want: []Row{
				{Index: 0, Tuples: []Tuple{{Citing: "doi:10.6/e", Cited: "doi:10.5/z"}}},
			},
		},
		{
			parser:   NewNIH(),
			filename: "icite.csv",
			want: []Row{
				{Index: 0, Tuples: []Tuple{
					{Citing: "pmid:100", Cited: "pmid:50", CitingDate: "2015"},
					{Citing: "pmid:100", Cited: "pmid:60", CitingDate: "2015"},
					{Citing: "pmid:200", Cited: "pmid:100", CitedDate: "2015"},
					{Citing: "pmid:300", Cited: "pmid:100", CitedDate: "2015"},
				}},
				{Index: 2, Tuples: []Tuple{{Citing: "pmid:102", Cited: "pmid:100", CitingDate: "2016"}}},
			},
		},
		{
			parser:   NewScholix(),
			filename: "links.scholix",
			want: []Row{
				{Index: 0, Tuples: []Tuple{{Citing: "doi:10.7/a", Cited: "doi:10.7/b", CitingDate: "2019-01-02"}}},
				{Index: 2, Tuples: []Tuple{{Citing: "pmid:123", Cited: "pmid:456", CitingDate: "2001-03", CitedDate: "1999"}}},
			},
		},
		{
			parser:   NewCrowdsourced(),
			filename: "crowdsourced.csv",
			want: []Row{
				{Index: 0, Tuples: []Tuple{{Citing: "doi:10.8/a", Cited: "doi:10.8/b", CitingDate: "2019-01-02", CitedDate: "2019-07-29"}}},
				{Index: 2, Tuples: []Tuple{{Citing: "pmid:1234", Cited: "doi:10.8/c", CitingDate: "2020"}}},
			},
		},
		{
			parser:   NewIndexCSV(),
			filename: "index.csv",
			want: []Row{
				{Index: 0, Tuples: []Tuple{{
					Citing:    "omid:br/06101",
					Cited:     "omid:br/06102",
					Creation:  "2019-01-02",
					Timespan:  "-P0Y6M27D",
					JournalSC: Flag(false),
					AuthorSC:  Flag(true),
				}}},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.parser.Name()+"/"+c.filename, func(t *testing.T) {
			filename := filepath.Join("testdata", c.filename)
			if !c.parser.IsValid(filename) {
				t.Fatalf("expected %s to be valid", filename)
			}
			got := readAll(t, c.parser, filename)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompressed(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("testdata", "crossref.json"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	files := map[string][]byte{
		"crossref.json.gz":  gz.Bytes(),
		"crossref.json.zst": enc.EncodeAll(b, nil),
	}
	enc.Close()
	want := readAll(t, NewCrossref(), filepath.Join("testdata", "crossref.json"))
	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			filename := filepath.Join(dir, name)
			if err := os.WriteFile(filename, data, 0644); err != nil {
				t.Fatal(err)
			}
			p := NewCrossref()
			if !p.IsValid(filename) {
				t.Fatalf("expected %s to be valid", filename)
			}
			if diff := cmp.Diff(want, readAll(t, p, filename)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	var cases = []struct {
		parser   Parser
		filename string
		want     bool
	}{
		{NewCrossref(), "a/b/0.json", true},
		{NewCrossref(), "a/b/0.json.gz", true},
		{NewCrossref(), "a/b/0.csv", false},
		{NewCrossref(), "a/b/.dir_citation_source", false},
		{NewDataCite(), "part-1.ndjson.zst", true},
		{NewNIH(), "icite_metadata_1.csv", true},
		{NewNIH(), "open_citation_collection.csv", false},
		{NewNIH(), "sources/meta.csv", true},
		{NewScholix(), "x.scholix", true},
		{NewScholix(), "x.json", false},
		{NewCrowdsourced(), "2023-01.csv", true},
	}
	for _, c := range cases {
		if got := c.parser.IsValid(c.filename); got != c.want {
			t.Errorf("%s %s: got %v, want %v", c.parser.Name(), c.filename, got, c.want)
		}
	}
}

func TestNextWithoutParse(t *testing.T) {
	for _, name := range Names() {
		p, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Next(); !errors.Is(err, ErrNotParsed) {
			t.Errorf("%s: got %v, want ErrNotParsed", name, err)
		}
	}
	if _, err := New("openaire"); !errors.Is(err, ErrUnknownParser) {
		t.Errorf("got %v, want ErrUnknownParser", err)
	}
}

func TestParseMissingFile(t *testing.T) {
	if err := NewCrossref().Parse(filepath.Join(t.TempDir(), "missing.json")); !os.IsNotExist(err) {
		t.Errorf("got %v, want not exist error", err)
	}
}

func TestStreamMissingKey(t *testing.T) {
	p := NewCrossref()
	filename := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(filename, []byte(`{"status": "ok", "message": {"x": [1, 2]}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if rows := readAll(t, p, filename); len(rows) != 0 {
		t.Errorf("got %d rows, want none", len(rows))
	}
}

func TestStreamMalformed(t *testing.T) {
	var cases = []struct {
		about   string
		parser  Parser
		content string
		want    []Row
	}{
		{
			about:   "syntax error after first work",
			parser:  NewCrossref(),
			content: `{"items": [{"DOI": "10.1/a", "reference": [{"DOI": "10.2/b"}]}, {"DOI": "10.1/c",,}, {"DOI": "10.1/d", "reference": [{"DOI": "10.2/e"}]}]}`,
			want:    []Row{{Index: 0, Tuples: []Tuple{{Citing: "doi:10.1/a", Cited: "doi:10.2/b"}}}},
		},
		{
			about:   "truncated file",
			parser:  NewCrossref(),
			content: `{"items": [{"DOI": "10.1/a", "reference": [{"DOI": "10.2/b"}]}, {"DOI": "10.1/c", "refer`,
			want:    []Row{{Index: 0, Tuples: []Tuple{{Citing: "doi:10.1/a", Cited: "doi:10.2/b"}}}},
		},
		{
			about:   "broken before the array",
			parser:  NewCrossref(),
			content: `{"status": ok, "items": []}`,
		},
		{
			about:   "wrong shape",
			parser:  NewScholix(),
			content: `{"links": []}`,
		},
	}
	for _, c := range cases {
		t.Run(c.about, func(t *testing.T) {
			name := "in.json"
			if c.parser.Name() == "scholix" {
				name = "in.scholix"
			}
			filename := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(filename, []byte(c.content), 0644); err != nil {
				t.Fatal(err)
			}
			got := readAll(t, c.parser, filename)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
