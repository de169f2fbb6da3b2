package finder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/identifier"
)

func testClient() *Client {
	return NewClient(ClientOptions{
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		Backoff:    time.Millisecond,
	})
}

const crossrefWork = `{
  "status": "ok",
  "message": {
    "DOI": "10.1/a",
    "type": "journal-article",
    "ISSN": ["0138-9130", "1588-2861"],
    "issued": {"date-parts": [[2019, 5, 3]]},
    "author": [
      {"family": "Peroni", "ORCID": "http://orcid.org/0000-0003-0530-4305"},
      {"family": "Other"}
    ]
  }
}`

func TestCrossref(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/works/10.1/a" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "ResourceFinder") {
			t.Errorf("unexpected user agent: %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, crossrefWork)
	}))
	defer srv.Close()

	ctx := context.Background()
	ds := datasource.NewMemory()
	f := NewCrossref(ds, testClient())
	f.Endpoint = srv.URL + "/works/"

	date, err := f.Date(ctx, "doi:10.1/A")
	if err != nil {
		t.Fatal(err)
	}
	if date != "2019-05-03" {
		t.Errorf("got %q, want 2019-05-03", date)
	}
	issn, err := f.ISSN(ctx, "doi:10.1/a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0138-9130", "1588-2861"}, issn); diff != "" {
		t.Errorf("issn mismatch (-want +got):\n%s", diff)
	}
	orcid, err := f.ORCID(ctx, "doi:10.1/a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0000-0003-0530-4305"}, orcid); diff != "" {
		t.Errorf("orcid mismatch (-want +got):\n%s", diff)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("got %d requests, want 1", n)
	}
	r, err := ds.Get(ctx, "doi:10.1/a")
	if err != nil {
		t.Fatal(err)
	}
	want := &datasource.Record{
		Valid: true,
		Date:  "2019-05-03",
		ISSN:  []string{"0138-9130", "1588-2861"},
		ORCID: []string{"0000-0003-0530-4305"},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("cached record mismatch (-want +got):\n%s", diff)
	}

	// Unknown upstream, asked once.
	for i := 0; i < 2; i++ {
		date, err := f.Date(ctx, "doi:10.1/missing")
		if err != nil {
			t.Fatal(err)
		}
		if date != "" {
			t.Errorf("got %q, want no date", date)
		}
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("got %d requests, want 2", n)
	}
	// Other schemes are not handled.
	if date, _ := f.Date(ctx, "pmid:123"); date != "" {
		t.Errorf("got %q for pmid", date)
	}
}

func TestNoAPI(t *testing.T) {
	ctx := context.Background()
	ds := datasource.NewMemory()
	if err := ds.Set(ctx, "doi:10.1/a", datasource.Record{Valid: true, Date: "2001"}); err != nil {
		t.Fatal(err)
	}
	for _, f := range []Finder{NewCrossref(ds, nil), NewDataCite(ds, nil)} {
		date, err := f.Date(ctx, "doi:10.1/a")
		if err != nil {
			t.Fatal(err)
		}
		if date != "2001" {
			t.Errorf("got %q, want 2001", date)
		}
		date, err = f.Date(ctx, "doi:10.1/b")
		if err != nil {
			t.Fatal(err)
		}
		if date != "" {
			t.Errorf("got %q, want no date", date)
		}
		ok, err := f.IsValid(ctx, "doi:10.1/b")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("expected syntactically valid doi to be valid")
		}
		ok, _ = f.IsValid(ctx, "doi:11.1/b")
		if ok {
			t.Errorf("expected invalid doi")
		}
	}
	if ds.Len() != 1 {
		t.Errorf("got %d records, want 1", ds.Len())
	}
}

func TestIsValidResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/handles/10.1/registered":
			fmt.Fprint(w, `{"responseCode": 1, "handle": "10.1/registered"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"responseCode": 100}`)
		}
	}))
	defer srv.Close()
	ctx := context.Background()
	ds := datasource.NewMemory()
	client := testClient()
	f := NewCrossref(ds, client)
	f.resolver = &identifier.DOIResolver{Client: client, Endpoint: srv.URL + "/api/handles/"}
	var cases = []struct {
		id   string
		want bool
	}{
		{"doi:10.1/registered", true},
		{"doi:10.1/unregistered", false},
	}
	for _, c := range cases {
		got, err := f.IsValid(ctx, c.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.id, got, c.want)
		}
		r, err := ds.Get(ctx, c.id)
		if err != nil {
			t.Fatal(err)
		}
		if r == nil || r.Valid != c.want {
			t.Errorf("%s: expected validity to be stored, got %v", c.id, r)
		}
	}
}

func TestDataCite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"id": "10.5/x", "type": "dois", "attributes": {
			"doi": "10.5/x",
			"publicationYear": 2018,
			"dates": [{"date": "2018-02-01", "dateType": "Created"}],
			"types": {"citeproc": "article-journal"},
			"container": {"identifierType": "ISSN", "identifier": "2049-3630"},
			"creators": [{"name": "A", "nameIdentifiers": [{"nameIdentifier": "https://orcid.org/0000-0002-1825-0097", "nameIdentifierScheme": "ORCID"}]}]
		}}}`)
	}))
	defer srv.Close()
	ctx := context.Background()
	ds := datasource.NewMemory()
	f := NewDataCite(ds, testClient())
	f.Endpoint = srv.URL + "/dois/"
	if _, err := f.Date(ctx, "doi:10.5/x"); err != nil {
		t.Fatal(err)
	}
	r, err := ds.Get(ctx, "doi:10.5/x")
	if err != nil {
		t.Fatal(err)
	}
	want := &datasource.Record{
		Valid: true,
		Date:  "2018",
		ISSN:  []string{"2049-3630"},
		ORCID: []string{"0000-0002-1825-0097"},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestORCID(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("got authorization %q", got)
		}
		fmt.Fprint(w, `{"result": [{"orcid-identifier": {"uri": "https://orcid.org/0000-0003-0530-4305", "path": "0000-0003-0530-4305"}}], "num-found": 1}`)
	}))
	defer srv.Close()
	ctx := context.Background()
	ds := datasource.NewMemory()
	f := NewORCID(ds, testClient(), identifier.DOI, "secret")
	f.Endpoint = srv.URL + "/search?q="
	orcid, err := f.ORCID(ctx, "doi:10.1/ab")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0000-0003-0530-4305"}, orcid); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if want := `doi-self:"10.1/ab" OR doi-self:"10.1/AB"`; query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	// Dates are never asked from ORCID.
	query = ""
	if _, err := f.Date(ctx, "doi:10.1/cd"); err != nil {
		t.Fatal(err)
	}
	if query != "" {
		t.Errorf("unexpected request for date: %q", query)
	}
}

func TestMedlineRecord(t *testing.T) {
	var cases = []struct {
		text string
		want *datasource.Record
	}{
		{
			text: "PMID- 123\nIS  - 1234-5679 (Electronic)\nIS  - 0028-0836 (Linking)\nDP  - 2012 Mar 5\nTI  - x",
			want: &datasource.Record{Valid: true, Date: "2012-03-05", ISSN: []string{"0028-0836", "1234-5679"}},
		},
		{
			text: "DP  - 1999 Dec",
			want: &datasource.Record{Valid: true, Date: "1999-12"},
		},
		{
			text: "DP  - 2001 Spring",
			want: &datasource.Record{Valid: true, Date: "2001"},
		},
		{
			text: "TI  - no date",
			want: &datasource.Record{Valid: true},
		},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			if diff := cmp.Diff(c.want, MedlineRecord(c.text), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNIH(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "pubmed" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `<html><body><pre class="article-details" id="article-details">
PMID- 100
IS  - 0028-0836 (Print)
DP  - 2015 Jul 29
</pre></body></html>`)
	}))
	defer srv.Close()
	ds := datasource.NewMemory()
	f := NewNIH(ds, testClient())
	f.Endpoint = srv.URL + "/"
	date, err := f.Date(context.Background(), "pmid:100")
	if err != nil {
		t.Fatal(err)
	}
	if date != "2015-07-29" {
		t.Errorf("got %q, want 2015-07-29", date)
	}
}

func TestClientNoData(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	c := testClient()
	b, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil || b != nil {
		t.Errorf("got %q, %v, want no data", b, err)
	}
	srv.Close()
	b, err = c.Get(context.Background(), srv.URL, nil)
	if err != nil || b != nil {
		t.Errorf("got %q, %v, want no data after connection error", b, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, srv.URL, nil); err == nil {
		t.Errorf("expected error for cancelled context")
	}
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	ds := datasource.NewMemory()
	records := map[string]datasource.Record{
		"doi:10.1007/s11192-018-2988-z": {
			Valid: true,
			Date:  "2019-01-02",
			ISSN:  []string{"0138-9130"},
			ORCID: []string{"0000-0003-0530-4305"},
		},
		"doi:10.5281/zenodo.3344898": {
			Valid: true,
			Date:  "2019-07-29",
			ORCID: []string{"0000-0003-0530-4305"},
		},
		"pmid:42": {Valid: true, OMID: "omid:br/0612"},
	}
	if err := ds.MSet(ctx, records); err != nil {
		t.Fatal(err)
	}
	h := NewHandler(NewCrossref(ds, nil), NewDataCite(ds, nil), NewORCID(ds, nil, identifier.DOI, ""), NewNIH(ds, nil), NewMeta(ds))
	citing, cited := "doi:10.1007/s11192-018-2988-z", "doi:10.5281/zenodo.3344898"
	date, err := h.Date(ctx, cited)
	if err != nil {
		t.Fatal(err)
	}
	if date != "2019-07-29" {
		t.Errorf("got %q, want 2019-07-29", date)
	}
	journal, err := h.ShareISSN(ctx, citing, cited)
	if err != nil {
		t.Fatal(err)
	}
	if journal {
		t.Errorf("expected no shared issn")
	}
	author, err := h.ShareORCID(ctx, citing, cited)
	if err != nil {
		t.Fatal(err)
	}
	if !author {
		t.Errorf("expected shared orcid")
	}
	omid, err := h.OMID(ctx, "pmid:0042")
	if err != nil {
		t.Fatal(err)
	}
	if omid != "omid:br/0612" {
		t.Errorf("got %q, want omid:br/0612", omid)
	}
	if got := h.Normalize("DOI:10.5281/ZENODO.3344898"); got != "doi:10.5281/zenodo.3344898" {
		t.Errorf("got %q", got)
	}

	h.Verifier = verifierFunc(func(ctx context.Context, orcid, id string) (bool, error) {
		return id != cited, nil
	})
	author, err = h.ShareORCID(ctx, citing, cited)
	if err != nil {
		t.Fatal(err)
	}
	if author {
		t.Errorf("expected unverified orcid not to count")
	}
}

type verifierFunc func(ctx context.Context, orcid, id string) (bool, error)

func (f verifierFunc) Verify(ctx context.Context, orcid, id string) (bool, error) {
	return f(ctx, orcid, id)
}

func TestMatchPerson(t *testing.T) {
	authors := ParseAuthors("Peroni S, van der Berg K.J., Shotton D")
	want := []AuthorName{
		{Initials: []string{"s"}, Surnames: []string{"peroni"}},
		{Initials: []string{"k", "j"}, Surnames: []string{"van", "der", "berg"}},
		{Initials: []string{"d"}, Surnames: []string{"shotton"}},
	}
	if diff := cmp.Diff(want, authors); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	var cases = []struct {
		given, family string
		want          bool
	}{
		{"Silvio", "Peroni", true},
		{"Karl Johan", "Berg", true},
		{"David", "Peroni", false},
		{"Silvio", "Rossi", false},
	}
	for _, c := range cases {
		if got := MatchPerson(c.given, c.family, authors); got != c.want {
			t.Errorf("%s %s: got %v, want %v", c.given, c.family, got, c.want)
		}
	}
}

func TestPersonVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0000-0003-0530-4305/person" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"name": {"given-names": {"value": "Silvio"}, "family-name": {"value": "Peroni"}}}`)
	}))
	defer srv.Close()
	v := &PersonVerifier{
		Client:   testClient(),
		Endpoint: srv.URL + "/",
		Authors: func(ctx context.Context, id string) ([]AuthorName, error) {
			return ParseAuthors("Peroni S, Shotton D"), nil
		},
	}
	ok, err := v.Verify(context.Background(), "0000-0003-0530-4305", "pmid:1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("expected verified author")
	}
	ok, err = v.Verify(context.Background(), "0000-0002-1825-0097", "pmid:1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected unknown orcid not to verify")
	}
}
