// Package config holds the settings shared by the ocindex tools. Values come
// from defaults, a YAML file, the environment (optionally read from a .env
// file) and finally from command line flags, each overriding the previous.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	index "github.com/opencitations/index-sub000"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/finder"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/oci"
	"github.com/opencitations/index-sub000/operator"
	"github.com/opencitations/index-sub000/parser"
	"github.com/opencitations/index-sub000/pipeline"
	"github.com/opencitations/index-sub000/storer"
	"gopkg.in/yaml.v3"
)

// Environment variables, read after the config file.
const (
	EnvORCIDKey          = "OC_ORCID_KEY"
	EnvDataSourceBackend = "OC_DATASOURCE_BACKEND"
	EnvDataSourceDSN     = "OC_DATASOURCE_DSN"
)

// ErrInvalid marks configuration values that cannot work; tools exit with
// status 2 on it.
var ErrInvalid = errors.New("invalid configuration")

var prefixPattern = regexp.MustCompile(`^0[1-9]+0$|^0[1-9]+$`)

// HTTP configures the client for upstream services.
type HTTP struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	Backoff           time.Duration `yaml:"backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`
}

// DataSource selects the backend holding metadata and seen citations.
type DataSource struct {
	// Backend is one of memory, csv, sqlite or postgres.
	Backend string `yaml:"backend"`
	// DSN is a directory for csv, a file or DSN for sqlite and a
	// connection string for postgres.
	DSN string `yaml:"dsn"`
}

// Config for the index tools.
type Config struct {
	// DataDir is the generic data dir for all ocindex tools.
	DataDir string `yaml:"data_dir"`
	// Lookup is the OCI lookup table, created if missing.
	Lookup string `yaml:"lookup"`
	// Parser is the name of the input parser, e.g. crossref.
	Parser string `yaml:"parser"`
	// IDType is the identifier scheme of the index.
	IDType identifier.Scheme `yaml:"id_type"`
	// Prefix is the supplier prefix written into OCI.
	Prefix string `yaml:"prefix"`
	// BaseURL is the namespace of citation entities in RDF.
	BaseURL string `yaml:"base_url"`
	// IDBaseURL is prepended to identifiers, defaults depend on IDType.
	IDBaseURL string `yaml:"id_base_url"`
	Agent     string `yaml:"agent"`
	Source    string `yaml:"source"`
	Service   string `yaml:"service"`
	// NoAPI disables all requests to upstream services; only the
	// datasource is consulted.
	NoAPI    bool   `yaml:"no_api"`
	ORCIDKey string `yaml:"orcid_key"`
	Workers  int    `yaml:"workers"`
	// Mode is the runtime topology: sequential, parallel or farm.
	Mode       string `yaml:"mode"`
	FlushEvery int    `yaml:"flush_every"`
	// Rotation thresholds, in citations per file.
	CSVLimit     int `yaml:"csv_limit"`
	RDFLimit     int `yaml:"rdf_limit"`
	ScholixLimit int `yaml:"scholix_limit"`
	// JournalCache maps journal names to ISSN, for NIH globs.
	JournalCache string        `yaml:"journal_cache"`
	HTTP         HTTP          `yaml:"http"`
	DataSource   DataSource    `yaml:"datasource"`
	Services     []oci.Service `yaml:"services"`
}

// Default returns a configuration for a DOI based index, without API
// access, writing below the XDG data directory.
func Default() Config {
	dataDir := filepath.Join(xdg.DataHome, index.AppName)
	return Config{
		DataDir:      dataDir,
		Lookup:       filepath.Join(dataDir, "lookup.csv"),
		Parser:       "crossref",
		IDType:       identifier.DOI,
		Prefix:       "020",
		BaseURL:      "https://w3id.org/oc/index/coci/",
		Agent:        "https://w3id.org/oc/index/prov/pa/1",
		Source:       "https://api.crossref.org/works/[[citing]]",
		Service:      "OpenCitations Index: COCI",
		NoAPI:        true,
		Workers:      1,
		Mode:         "sequential",
		FlushEvery:   1,
		CSVLimit:     storer.DefaultCSVLimit,
		RDFLimit:     storer.DefaultRDFLimit,
		ScholixLimit: storer.DefaultScholixLimit,
		JournalCache: filepath.Join(xdg.CacheHome, index.AppName, "journal_issn.json"),
		HTTP: HTTP{
			Timeout:    finder.DefaultTimeout,
			MaxRetries: finder.DefaultRetries,
			Backoff:    finder.DefaultBackoff,
			UserAgent:  index.UserAgent,
		},
		DataSource: DataSource{
			Backend: "csv",
			DSN:     filepath.Join(dataDir, "datasource"),
		},
		Services: append([]oci.Service(nil), oci.DefaultServices...),
	}
}

// DefaultPath is the location of the config file, when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, index.AppName, "config.yaml")
}

// Load reads the config file and the environment over the defaults. An
// empty filename means the default path, which may be missing; an explicit
// file must exist.
func Load(filename string) (Config, error) {
	cfg := Default()
	explicit := filename != ""
	if !explicit {
		filename = DefaultPath()
	}
	b, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := cfg.Decode(bytes.NewReader(b)); err != nil {
			return cfg, fmt.Errorf("%s: %w", filename, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return cfg, err
	}
	if err := LoadEnv(""); err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Decode overlays YAML on cfg. Unknown keys are an error.
func (cfg *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// LoadEnv reads a .env file into the environment, without overriding
// variables already set. A missing file is fine.
func LoadEnv(filename string) error {
	if filename == "" {
		filename = ".env"
	}
	if err := godotenv.Load(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}

// ApplyEnv copies secrets and datasource settings from the environment.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv(EnvORCIDKey); v != "" {
		cfg.ORCIDKey = v
	}
	if v := os.Getenv(EnvDataSourceBackend); v != "" {
		cfg.DataSource.Backend = v
	}
	if v := os.Getenv(EnvDataSourceDSN); v != "" {
		cfg.DataSource.DSN = v
	}
}

// Validate checks the values needed to create citations.
func (cfg *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
	}
	if _, err := parser.New(cfg.Parser); err != nil {
		return invalid("parser: %v", err)
	}
	if _, err := identifier.ForScheme(cfg.IDType); err != nil {
		return invalid("id_type: %v", err)
	}
	if !prefixPattern.MatchString(cfg.Prefix) {
		return invalid("prefix %q", cfg.Prefix)
	}
	if cfg.BaseURL == "" {
		return invalid("base_url required")
	}
	if cfg.Source == "" {
		return invalid("source required")
	}
	if cfg.Service == "" {
		return invalid("service required")
	}
	if cfg.Workers < 1 {
		return invalid("workers must be positive, got %d", cfg.Workers)
	}
	if _, err := pipeline.ParseMode(cfg.Mode); err != nil {
		return invalid("mode: %v", err)
	}
	if !contains(datasource.Backends, cfg.DataSource.Backend) {
		return invalid("datasource backend %q", cfg.DataSource.Backend)
	}
	for _, s := range cfg.Services {
		if s.Name == "" || !prefixPattern.MatchString(s.Prefix) {
			return invalid("service %+v", s)
		}
		if _, err := identifier.ForScheme(s.Scheme); err != nil {
			return invalid("service %s: %v", s.Name, err)
		}
	}
	return nil
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// Validator checks OCI against the configured services.
func (cfg *Config) Validator() *oci.Validator {
	return oci.NewValidator(cfg.Services...)
}

// ClientOptions returns the settings for finder.NewClient.
func (cfg *Config) ClientOptions() finder.ClientOptions {
	return finder.ClientOptions{
		Timeout:           cfg.HTTP.Timeout,
		MaxRetries:        cfg.HTTP.MaxRetries,
		Backoff:           cfg.HTTP.Backoff,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		UserAgent:         cfg.HTTP.UserAgent,
	}
}

// Client returns an HTTP client for upstream services, or nil if API
// access is disabled.
func (cfg *Config) Client() *finder.Client {
	if cfg.NoAPI {
		return nil
	}
	return finder.NewClient(cfg.ClientOptions())
}

// OperatorOptions returns the settings for operator.New.
func (cfg *Config) OperatorOptions() operator.Options {
	return operator.Options{
		Prefix:      cfg.Prefix,
		Scheme:      cfg.IDType,
		BaseURL:     cfg.IDBaseURL,
		Agent:       cfg.Agent,
		Source:      cfg.Source,
		ServiceName: cfg.Service,
	}
}

// StorerOptions returns the settings for storer.New, writing into dir.
func (cfg *Config) StorerOptions(dir string) storer.Options {
	return storer.Options{
		Dir:          dir,
		BaseURL:      cfg.BaseURL,
		CSVLimit:     cfg.CSVLimit,
		RDFLimit:     cfg.RDFLimit,
		ScholixLimit: cfg.ScholixLimit,
	}
}

// OpenDataSource opens the configured backend, creating the directory of
// file based backends.
func (cfg *Config) OpenDataSource() (datasource.DataSource, error) {
	switch cfg.DataSource.Backend {
	case "csv":
		if err := os.MkdirAll(cfg.DataSource.DSN, 0755); err != nil {
			return nil, err
		}
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.DataSource.DSN), 0755); err != nil {
			return nil, err
		}
	}
	return datasource.Open(cfg.DataSource.Backend, cfg.DataSource.DSN)
}

// OpenLookupTable opens the configured lookup table, in memory if none is
// configured.
func (cfg *Config) OpenLookupTable() (*oci.LookupTable, error) {
	return oci.OpenLookupTable(cfg.Lookup)
}

// Handler returns the resource finders for the configured identifier
// scheme. The finder matching the parser is asked first.
func (cfg *Config) Handler(ds datasource.DataSource, client *finder.Client) *finder.Handler {
	switch cfg.IDType {
	case identifier.PMID:
		return finder.NewHandler(
			finder.NewNIH(ds, client),
			finder.NewORCID(ds, client, identifier.PMID, cfg.ORCIDKey),
		)
	case identifier.OMID:
		return finder.NewHandler(finder.NewMeta(ds))
	}
	var (
		crossref = finder.NewCrossref(ds, client)
		datacite = finder.NewDataCite(ds, client)
		orcid    = finder.NewORCID(ds, client, identifier.DOI, cfg.ORCIDKey)
	)
	if cfg.Parser == "datacite" {
		return finder.NewHandler(datacite, crossref, orcid)
	}
	return finder.NewHandler(crossref, datacite, orcid)
}
