package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/oci"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Client() != nil {
		t.Error("expected no client without api access")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvORCIDKey, "secret")
	t.Setenv(EnvDataSourceBackend, "")
	t.Setenv(EnvDataSourceDSN, "")
	filename := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
parser: nih
id_type: pmid
prefix: "0160"
service: "OpenCitations Index: NOCI"
workers: 4
mode: farm
http:
  timeout: 10s
datasource:
  backend: sqlite
  dsn: /tmp/ocindex.db
services:
  - name: NOCI
    prefix: "0160"
    scheme: pmid
`
	if err := os.WriteFile(filename, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Parser != "nih" || cfg.IDType != identifier.PMID || cfg.Workers != 4 || cfg.Mode != "farm" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("got timeout %v", cfg.HTTP.Timeout)
	}
	// Untouched values keep their defaults.
	if cfg.HTTP.MaxRetries != Default().HTTP.MaxRetries || cfg.Agent != Default().Agent {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.ORCIDKey != "secret" {
		t.Errorf("got orcid key %q", cfg.ORCIDKey)
	}
	want := []oci.Service{{Name: "NOCI", Prefix: "0160", Scheme: identifier.PMID}}
	if diff := cmp.Diff(want, cfg.Services); diff != "" {
		t.Errorf("services mismatch (-want +got):\n%s", diff)
	}
	if _, err := cfg.Validator().Validate("oci:01601-01602"); err != nil {
		t.Error(err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv(EnvDataSourceBackend, "postgres")
	t.Setenv(EnvDataSourceDSN, "postgres://localhost/index")
	filename := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(filename, []byte("datasource:\n  backend: csv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DataSource{Backend: "postgres", DSN: "postgres://localhost/index"}, cfg.DataSource); diff != "" {
		t.Errorf("datasource mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
	filename := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(filename, []byte("no_such_key: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filename); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv(EnvORCIDKey, "")
	os.Unsetenv(EnvORCIDKey)
	filename := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(filename, []byte(EnvORCIDKey+"=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(filename); err != nil {
		t.Fatal(err)
	}
	if v := os.Getenv(EnvORCIDKey); v != "from-file" {
		t.Errorf("got %q", v)
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing env file: %v", err)
	}
}

func TestValidate(t *testing.T) {
	var cases = []struct {
		about  string
		modify func(*Config)
		want   string
	}{
		{"parser", func(c *Config) { c.Parser = "bibtex" }, "parser"},
		{"scheme", func(c *Config) { c.IDType = "isbn" }, "id_type"},
		{"prefix", func(c *Config) { c.Prefix = "20" }, "prefix"},
		{"base url", func(c *Config) { c.BaseURL = "" }, "base_url"},
		{"source", func(c *Config) { c.Source = "" }, "source"},
		{"service", func(c *Config) { c.Service = "" }, "service"},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"mode", func(c *Config) { c.Mode = "ray" }, "mode"},
		{"backend", func(c *Config) { c.DataSource.Backend = "redis" }, "backend"},
		{"services", func(c *Config) { c.Services = []oci.Service{{Name: "X", Prefix: "1"}} }, "service"},
	}
	for _, c := range cases {
		t.Run(c.about, func(t *testing.T) {
			cfg := Default()
			c.modify(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("got %v, want mention of %s", err, c.want)
			}
		})
	}
}

func TestOpenDataSource(t *testing.T) {
	cfg := Default()
	cfg.DataSource = DataSource{Backend: "csv", DSN: filepath.Join(t.TempDir(), "a", "b")}
	ds, err := cfg.OpenDataSource()
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.DataSource.DSN); err != nil {
		t.Error(err)
	}
}

func TestHandler(t *testing.T) {
	var cases = []struct {
		idType identifier.Scheme
		parser string
		n      int
	}{
		{identifier.DOI, "crossref", 3},
		{identifier.DOI, "datacite", 3},
		{identifier.PMID, "nih", 2},
		{identifier.OMID, "index", 1},
	}
	for _, c := range cases {
		cfg := Default()
		cfg.IDType, cfg.Parser = c.idType, c.parser
		h := cfg.Handler(datasource.NewMemory(), nil)
		if len(h.Finders) != c.n {
			t.Errorf("%s/%s: got %d finders, want %d", c.idType, c.parser, len(h.Finders), c.n)
		}
	}
}
