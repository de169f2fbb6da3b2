// oc-glob fills a datasource from metadata dumps, so that later runs of
// oc-cnc find validity, dates, ISSN and ORCID without upstream requests.
//
// $ oc-glob -i crossref/ -p crossref -ds sqlite -dsn index.db
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
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/finder"
	"github.com/opencitations/index-sub000/glob"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/logging"
	"github.com/opencitations/index-sub000/parser"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# oc-glob - aggregate metadata dumps

Two passes over all files of the input directory: the first stores what
each record says about itself, the second records the entities it cites.
Supported dumps: crossref, datacite, nih.

For nih dumps with -no-api=false, ISSN are looked up at Crossref by DOI
(cached by journal name in -journals) and ORCID iDs found by PMID, which
are kept only if the ORCID record names one of the authors.

## flags

`, "\n")

var (
	configFile  = flag.String("c", "", "config file (default "+config.DefaultPath()+")")
	input       = flag.String("i", "", "input directory")
	parserName  = flag.String("p", "", "dump type: crossref, datacite or nih")
	workers     = flag.Int("w", 0, "number of files processed in parallel")
	journals    = flag.String("journals", "", "journal ISSN cache file")
	noAPI       = flag.Bool("no-api", true, "do not query upstream services")
	orcidKey    = flag.String("orcid-key", "", "ORCID API key")
	backend     = flag.String("ds", "", "datasource backend: memory, csv, sqlite or postgres")
	dsn         = flag.String("dsn", "", "datasource location")
	verbose     = flag.Bool("v", false, "verbose output")
	logFile     = flag.String("log", "", `duplicate log into file, "auto" for the default location`)
	showVersion = flag.Bool("version", false, "show version")
)

func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Parser = *parserName
		case "w":
			cfg.Workers = *workers
		case "journals":
			cfg.JournalCache = *journals
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
	logger, closeLog, err := logging.Setup(logging.Options{Tool: "oc-glob", Verbose: *verbose, File: *logFile})
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
	if *input == "" {
		logger.Error("input (-i) required")
		return exitInvalid
	}
	reader, err := glob.NewReader(cfg.Parser)
	if err != nil {
		logger.Error(err)
		return exitInvalid
	}
	if err := cfg.Validate(); err != nil {
		logger.Error(err)
		return exitInvalid
	}
	if fi, err := os.Stat(*input); err != nil || !fi.IsDir() {
		logger.WithField("input", *input).Error("input must be a readable directory")
		return exitFatal
	}
	ds, err := cfg.OpenDataSource()
	if err != nil {
		logger.WithField("err", err).Error("cannot open datasource")
		return exitFatal
	}
	defer ds.Close()
	cache, err := glob.LoadJournalCache(cfg.JournalCache)
	if err != nil {
		logger.WithField("err", err).Error("cannot load journal cache")
		return exitFatal
	}
	g := &glob.Glob{
		DS:       ds,
		Reader:   reader,
		Journals: cache,
		Workers:  cfg.Workers,
	}
	if client := cfg.Client(); client != nil && reader.Parser().Name() == "nih" {
		// Upstream answers must not end up in the globbed datasource, so
		// the finders get their own.
		scratch := datasource.NewMemory()
		g.ISSNFinder = finder.NewCrossref(scratch, client)
		g.ORCIDFinder = finder.NewORCID(scratch, client, identifier.PMID, cfg.ORCIDKey)
		g.Verifier = &finder.PersonVerifier{Client: client, Key: cfg.ORCIDKey, Authors: g.Authors}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	started := time.Now()
	stats, err := g.Run(ctx, *input)
	logger.WithFields(log.Fields{
		"files":    stats.Files,
		"citing":   stats.Citing,
		"cited":    stats.Cited,
		"dated":    stats.Dated,
		"journals": cache.Len(),
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("done")
	switch {
	case errors.Is(err, parser.ErrUnknownParser):
		logger.Error(err)
		return exitInvalid
	case err != nil:
		logger.WithField("err", err).Error("glob failed")
		return exitFatal
	}
	return exitOK
}
