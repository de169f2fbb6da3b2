// oc-cnc creates new citations from raw dumps: rows are parsed, identifiers
// validated, OCI minted and deduplicated, and the citations written as CSV,
// RDF and Scholix files.
//
// $ oc-cnc -i crossref/ -o out/ -p crossref -mode farm -w 8
// new_citations_added=1024 citations_already_present=12 error_in_ids_existence=3
//
// An interrupted run (SIGINT, SIGTERM) stops reading input, stores what it
// has, and resumes at the next row when started again.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	index "github.com/opencitations/index-sub000"
	"github.com/opencitations/index-sub000/config"
	"github.com/opencitations/index-sub000/cursor"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/logging"
	"github.com/opencitations/index-sub000/oci"
	"github.com/opencitations/index-sub000/operator"
	"github.com/opencitations/index-sub000/parser"
	"github.com/opencitations/index-sub000/pipeline"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# oc-cnc - create new citations

Reads an input directory (or file) with a parser, validates the identifiers
through the datasource and, unless disabled, upstream APIs, and writes new
citations below the output directory:

	data/{csv,rdf,slx}/YYYY/MM/  citations
	prov/{csv,rdf}/YYYY/MM/      provenance

Settings are read from the config file, then the environment (OC_ORCID_KEY,
OC_DATASOURCE_BACKEND, OC_DATASOURCE_DSN, also from .env), then flags.

Modes:

	sequential  one loop over all files
	parallel    files split into -w shards, one loop each
	farm        one reader, -w operator workers, one writer

The final counters are written to stdout.

## flags

`, "\n")

var (
	configFile  = flag.String("c", "", "config file (default "+config.DefaultPath()+")")
	input       = flag.String("i", "", "input directory or file")
	output      = flag.String("o", "", "output directory")
	parserName  = flag.String("p", "", "parser, one of: "+strings.Join(parser.Names(), ", "))
	idType      = flag.String("id-type", "", "identifier type of the index: doi, pmid or omid")
	prefix      = flag.String("prefix", "", "supplier prefix, e.g. 020")
	baseURL     = flag.String("base-url", "", "namespace of citation entities")
	idBaseURL   = flag.String("id-base-url", "", "prepended to identifiers")
	agent       = flag.String("agent", "", "provenance agent")
	source      = flag.String("source", "", "provenance source, [[citing]] is replaced")
	service     = flag.String("service", "", "service name")
	lookup      = flag.String("lookup", "", "OCI lookup table")
	mode        = flag.String("mode", "", "runtime: sequential, parallel or farm")
	workers     = flag.Int("w", 0, "number of workers")
	flushEvery  = flag.Int("flush-every", 0, "rows between checkpoints")
	localName   = flag.String("n", "", "local name of this run, used in checkpoint and file names")
	noAPI       = flag.Bool("no-api", true, "do not query upstream services")
	orcidKey    = flag.String("orcid-key", "", "ORCID API key")
	backend     = flag.String("ds", "", "datasource backend: memory, csv, sqlite or postgres")
	dsn         = flag.String("dsn", "", "datasource location")
	verbose     = flag.Bool("v", false, "verbose output")
	logFile     = flag.String("log", "", `duplicate log into file, "auto" for the default location`)
	showVersion = flag.Bool("version", false, "show version")
)

// applyFlags overrides config values with flags given on the command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Parser = *parserName
		case "id-type":
			cfg.IDType = identifier.Scheme(strings.ToLower(*idType))
		case "prefix":
			cfg.Prefix = *prefix
		case "base-url":
			cfg.BaseURL = *baseURL
		case "id-base-url":
			cfg.IDBaseURL = *idBaseURL
		case "agent":
			cfg.Agent = *agent
		case "source":
			cfg.Source = *source
		case "service":
			cfg.Service = *service
		case "lookup":
			cfg.Lookup = *lookup
		case "mode":
			cfg.Mode = *mode
		case "w":
			cfg.Workers = *workers
		case "flush-every":
			cfg.FlushEvery = *flushEvery
		case "no-api":
			cfg.NoAPI = *noAPI
		case "orcid-key":
			cfg.ORCIDKey = *orcidKey
		case "ds":
			cfg.DataSource.Backend = *backend
		case "dsn":
			cfg.DataSource.DSN = *dsn
		}
	})
}

func main() {
	flag.Usage = func() {
		io.WriteString(os.Stderr, docs)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(index.Version)
		os.Exit(exitOK)
	}
	os.Exit(run())
}

func run() int {
	logger, closeLog, err := logging.Setup(logging.Options{Tool: "oc-cnc", Verbose: *verbose, File: *logFile})
	if err != nil {
		log.Error(err)
		return exitFatal
	}
	defer closeLog()
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithField("err", err).Error("cannot load config")
		return exitFatal
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error(err)
		return exitInvalid
	}
	if *input == "" || *output == "" {
		logger.Error("input (-i) and output (-o) required")
		return exitInvalid
	}
	if _, err := os.Stat(*input); err != nil {
		logger.WithField("err", err).Error("cannot read input")
		return exitFatal
	}
	runMode, _ := pipeline.ParseMode(cfg.Mode)

	ds, err := cfg.OpenDataSource()
	if err != nil {
		logger.WithField("err", err).Error("cannot open datasource")
		return exitFatal
	}
	defer ds.Close()
	table, err := cfg.OpenLookupTable()
	if err != nil {
		logger.WithField("err", err).Error("cannot open lookup table")
		return exitFatal
	}
	defer table.Close()

	op := operator.New(ds, cfg.Handler(ds, cfg.Client()), oci.NewCodec(table), cfg.OperatorOptions())
	storerOptions := cfg.StorerOptions(*output)
	storerOptions.Suffix = *localName
	pc := pipeline.Config{
		Input: *input,
		Parser: func() parser.Parser {
			p, _ := parser.New(cfg.Parser)
			return p
		},
		Operator:   op,
		Storer:     storerOptions,
		Workers:    cfg.Workers,
		LocalName:  *localName,
		FlushEvery: cfg.FlushEvery,
		Log:        logger,
	}
	if *verbose {
		pc.OnRow = func(w int, s cursor.State) {
			logger.WithFields(log.Fields{"worker": w, "file": s.File, "row": s.Row}).Debug("row done")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.WithFields(log.Fields{
		"input":   *input,
		"output":  *output,
		"parser":  cfg.Parser,
		"mode":    runMode,
		"workers": cfg.Workers,
	}).Info("starting")
	started := time.Now()
	result, err := pipeline.Run(ctx, runMode, pc)
	fmt.Println(result.Counters)
	logger.WithFields(log.Fields{
		"rows":    result.Rows,
		"stored":  result.Stored,
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info("done")
	switch {
	case errors.Is(err, pipeline.ErrUnknownMode), errors.Is(err, parser.ErrUnknownParser):
		logger.Error(err)
		return exitInvalid
	case err != nil:
		logger.WithField("err", err).Error("run failed")
		return exitFatal
	case result.Interrupted:
		logger.Warn("interrupted, run again to resume")
		return exitFatal
	}
	return exitOK
}
