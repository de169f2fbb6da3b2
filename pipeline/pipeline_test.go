package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/opencitations/index-sub000/cursor"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/finder"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/oci"
	"github.com/opencitations/index-sub000/operator"
	"github.com/opencitations/index-sub000/parser"
	"github.com/opencitations/index-sub000/storer"
)

var inputFiles = []string{"a.csv", "b.csv", "c.csv"}

// writeInput creates crowdsourced files with n rows each and returns the
// datasource knowing all their identifiers.
func writeInput(t *testing.T, dir string, n int) datasource.DataSource {
	t.Helper()
	ds := datasource.NewMemory()
	records := map[string]datasource.Record{
		"doi:10.2/x": {Valid: true},
	}
	for _, name := range inputFiles {
		var sb strings.Builder
		sb.WriteString("citing_id,cited_id,citing_publication_date,cited_publication_date\n")
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("10.1/%s-%d", strings.TrimSuffix(name, ".csv"), i)
			fmt.Fprintf(&sb, "%s,10.2/x,2020,2019\n", id)
			records["doi:"+id] = datasource.Record{Valid: true}
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ds.MSet(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	return ds
}

func newConfig(t *testing.T, input, output string, ds datasource.DataSource) Config {
	t.Helper()
	table, err := oci.OpenLookupTable("")
	if err != nil {
		t.Fatal(err)
	}
	op := operator.New(ds, finder.NewHandler(finder.NewCrossref(ds, nil)), oci.NewCodec(table), operator.Options{
		Prefix:      "020",
		Scheme:      identifier.DOI,
		Agent:       "https://w3id.org/oc/index/prov/pa/1",
		Source:      "https://api.crossref.org/works/[[citing]]",
		ServiceName: "OpenCitations Index: COCI",
		Now:         func() time.Time { return time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC) },
	})
	return Config{
		Input:    input,
		Parser:   func() parser.Parser { return parser.NewCrowdsourced() },
		Operator: op,
		Storer: storer.Options{
			Dir: output,
			Now: func() time.Time { return time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC) },
		},
	}
}

// storedOCIs reads the first column of all data csv files below dir.
func storedOCIs(t *testing.T, dir string) []string {
	t.Helper()
	var ocis []string
	err := filepath.Walk(filepath.Join(dir, "data", "csv"), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, `"oci"`) {
				continue
			}
			ocis = append(ocis, strings.Trim(strings.SplitN(line, ",", 2)[0], `"`))
		}
		return sc.Err()
	})
	if err != nil {
		t.Fatal(err)
	}
	return ocis
}

func checkUnique(t *testing.T, ocis []string, want int) {
	t.Helper()
	seen := make(map[string]bool)
	for _, v := range ocis {
		if seen[v] {
			t.Errorf("duplicate citation %s", v)
		}
		seen[v] = true
	}
	if len(seen) != want {
		t.Errorf("got %d stored citations, want %d", len(seen), want)
	}
}

func TestParseMode(t *testing.T) {
	var cases = []struct {
		s    string
		want Mode
		err  error
	}{
		{"sequential", Sequential, nil},
		{"Farm", Farm, nil},
		{"parallel", Parallel, nil},
		{"ray", "", ErrUnknownMode},
	}
	for _, c := range cases {
		got, err := ParseMode(c.s)
		if !errors.Is(err, c.err) {
			t.Errorf("ParseMode(%q): got err %v, want %v", c.s, err, c.err)
		}
		if got != c.want {
			t.Errorf("ParseMode(%q): got %v, want %v", c.s, got, c.want)
		}
	}
}

func TestModes(t *testing.T) {
	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			input, output := t.TempDir(), t.TempDir()
			ds := writeInput(t, input, 20)
			cfg := newConfig(t, input, output, ds)
			cfg.Workers = 3
			cfg.FlushEvery = 7
			result, err := Run(context.Background(), mode, cfg)
			if err != nil {
				t.Fatal(err)
			}
			want := Result{
				Counters: operator.Counters{New: 60},
				Rows:     60,
				Stored:   60,
			}
			if diff := cmp.Diff(want, result); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
			checkUnique(t, storedOCIs(t, output), 60)
			matches, _ := filepath.Glob(filepath.Join(input, cursor.SidecarPrefix+"*"))
			if len(matches) > 0 {
				t.Errorf("checkpoints left: %v", matches)
			}

			// The same input again yields nothing new.
			result, err = Run(context.Background(), mode, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(operator.Counters{AlreadyPresent: 60}, result.Counters); diff != "" {
				t.Errorf("counters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResumeSequential(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	ds := writeInput(t, input, 50)
	cfg := newConfig(t, input, output, ds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.OnRow = func(_ int, s cursor.State) {
		if s == (cursor.State{File: "b.csv", Row: 42}) {
			cancel()
		}
	}
	first, err := Run(ctx, Sequential, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Interrupted || first.Rows != 93 {
		t.Fatalf("got %+v, want interrupted after 93 rows", first)
	}

	var resumedAt []cursor.State
	cfg.OnRow = func(_ int, s cursor.State) {
		resumedAt = append(resumedAt, s)
	}
	second, err := Run(context.Background(), Sequential, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(resumedAt) == 0 || resumedAt[0] != (cursor.State{File: "b.csv", Row: 43}) {
		t.Fatalf("resumed at %v, want b.csv:43", resumedAt[:1])
	}
	if second.Counters.AlreadyPresent != 0 {
		t.Errorf("rows handled twice: %v", second.Counters)
	}
	if got := first.Counters.New + second.Counters.New; got != 150 {
		t.Errorf("got %d new citations, want 150", got)
	}
	checkUnique(t, storedOCIs(t, output), 150)
}

func TestResumeFarm(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	ds := writeInput(t, input, 50)
	cfg := newConfig(t, input, output, ds)
	cfg.Workers = 4
	cfg.FlushEvery = 5

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.OnRow = func(_ int, s cursor.State) {
		if s.File == "b.csv" && s.Row == 10 {
			cancel()
		}
	}
	first, err := Run(ctx, Farm, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Interrupted {
		t.Fatalf("got %+v, want interrupted", first)
	}
	cfg.OnRow = nil
	second, err := Run(context.Background(), Farm, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if second.Counters.AlreadyPresent != 0 {
		t.Errorf("rows handled twice: %v", second.Counters)
	}
	if got := first.Counters.New + second.Counters.New; got != 150 {
		t.Errorf("got %d new citations, want 150", got)
	}
	checkUnique(t, storedOCIs(t, output), 150)
}

func TestParallelWorkerField(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	ds := writeInput(t, input, 5)
	cfg := newConfig(t, input, output, ds)
	cfg.Workers = 2
	var (
		mu      sync.Mutex
		workers = make(map[int][]string)
	)
	cfg.OnRow = func(w int, s cursor.State) {
		mu.Lock()
		defer mu.Unlock()
		if n := len(workers[w]); n == 0 || workers[w][n-1] != s.File {
			workers[w] = append(workers[w], s.File)
		}
	}
	if _, err := Run(context.Background(), Parallel, cfg); err != nil {
		t.Fatal(err)
	}
	want := map[int][]string{0: {"a.csv", "c.csv"}, 1: {"b.csv"}}
	if diff := cmp.Diff(want, workers); diff != "" {
		t.Errorf("shards mismatch (-want +got):\n%s", diff)
	}
}

func TestShards(t *testing.T) {
	got := Shards([]string{"a", "b", "c", "d", "e"}, 2)
	want := [][]string{{"a", "c", "e"}, {"b", "d"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("shards mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedFile(t *testing.T) {
	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			input, output := t.TempDir(), t.TempDir()
			files := map[string]string{
				"a.json": `{"items": [{"DOI": "10.1/a", "reference": [{"DOI": "10.2/x"}]}, {"DOI": "10.1/b",,}]}`,
				"b.json": `{"items": [{"DOI": "10.1/c", "reference": [{"DOI": "10.2/x"}]}]}`,
			}
			for name, content := range files {
				if err := os.WriteFile(filepath.Join(input, name), []byte(content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			ds := datasource.NewMemory()
			records := map[string]datasource.Record{
				"doi:10.1/a": {Valid: true},
				"doi:10.1/b": {Valid: true},
				"doi:10.1/c": {Valid: true},
				"doi:10.2/x": {Valid: true},
			}
			if err := ds.MSet(context.Background(), records); err != nil {
				t.Fatal(err)
			}
			cfg := newConfig(t, input, output, ds)
			cfg.Parser = func() parser.Parser { return parser.NewCrossref() }
			cfg.Workers = 2
			result, err := Run(context.Background(), mode, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(operator.Counters{New: 2}, result.Counters); diff != "" {
				t.Errorf("counters mismatch (-want +got):\n%s", diff)
			}
			checkUnique(t, storedOCIs(t, output), 2)

			result, err = Run(context.Background(), mode, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(operator.Counters{AlreadyPresent: 2}, result.Counters); diff != "" {
				t.Errorf("counters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
