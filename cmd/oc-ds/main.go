// oc-ds moves datasource contents between backends, as JSON lines.
//
// $ oc-ds -ds csv -dsn glob/ export > ds.jsonl
// $ oc-ds -ds sqlite -dsn index.db import ds.jsonl.zst
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	index "github.com/opencitations/index-sub000"
	"github.com/opencitations/index-sub000/config"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/logging"
	"github.com/opencitations/index-sub000/parser"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# oc-ds - export and import datasources

Usage:

	oc-ds [flags] export [FILE]
	oc-ds [flags] import [FILE]

Export writes one JSON object per line, records as {"key": ..., "value": ...}
and seen citations as {"oci": ...}, to FILE or stdout. Import reads such
lines from FILE or stdin. Files ending in .gz or .zst are compressed.

## flags

`, "\n")

var (
	configFile  = flag.String("c", "", "config file (default "+config.DefaultPath()+")")
	backend     = flag.String("ds", "", "datasource backend: memory, csv, sqlite or postgres")
	dsn         = flag.String("dsn", "", "datasource location")
	batchSize   = flag.Int("b", 10000, "import batch size")
	verbose     = flag.Bool("v", false, "verbose output")
	logFile     = flag.String("log", "", `duplicate log into file, "auto" for the default location`)
	showVersion = flag.Bool("version", false, "show version")
)

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
	os.Exit(run(flag.Args()))
}

func run(args []string) int {
	logger, closeLog, err := logging.Setup(logging.Options{Tool: "oc-ds", Verbose: *verbose, File: *logFile})
	if err != nil {
		log.Error(err)
		return exitFatal
	}
	defer closeLog()
	if len(args) < 1 || len(args) > 2 || (args[0] != "export" && args[0] != "import") {
		flag.Usage()
		return exitInvalid
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithField("err", err).Error("cannot load config")
		return exitFatal
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ds":
			cfg.DataSource.Backend = *backend
		case "dsn":
			cfg.DataSource.DSN = *dsn
		}
	})
	ds, err := cfg.OpenDataSource()
	if err != nil {
		logger.WithField("err", err).Error("cannot open datasource")
		return exitInvalid
	}
	defer ds.Close()
	var filename string
	if len(args) == 2 {
		filename = args[1]
	}
	var (
		ctx     = context.Background()
		started = time.Now()
		stats   datasource.Stats
	)
	if args[0] == "export" {
		stats, err = export(ctx, ds, filename)
	} else {
		stats, err = load(ctx, ds, filename)
	}
	if err != nil {
		logger.WithField("err", err).Errorf("%s failed", args[0])
		return exitFatal
	}
	logger.WithFields(log.Fields{
		"records": stats.Records,
		"seen":    stats.Seen,
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info(args[0] + " done")
	return exitOK
}

func export(ctx context.Context, ds datasource.DataSource, filename string) (datasource.Stats, error) {
	if filename == "" {
		return datasource.Export(ctx, ds, os.Stdout)
	}
	f, err := os.Create(filename)
	if err != nil {
		return datasource.Stats{}, err
	}
	defer f.Close()
	var w io.WriteCloser
	switch {
	case strings.HasSuffix(filename, ".gz"):
		w = pgzip.NewWriter(f)
	case strings.HasSuffix(filename, ".zst"):
		if w, err = zstd.NewWriter(f); err != nil {
			return datasource.Stats{}, err
		}
	}
	if w == nil {
		stats, err := datasource.Export(ctx, ds, f)
		if err != nil {
			return stats, err
		}
		return stats, f.Close()
	}
	stats, err := datasource.Export(ctx, ds, w)
	if err != nil {
		return stats, err
	}
	if err := w.Close(); err != nil {
		return stats, err
	}
	return stats, f.Close()
}

func load(ctx context.Context, ds datasource.DataSource, filename string) (datasource.Stats, error) {
	if filename == "" {
		return datasource.Import(ctx, ds, os.Stdin, *batchSize)
	}
	r, err := parser.Open(filename)
	if err != nil {
		return datasource.Stats{}, err
	}
	defer r.Close()
	return datasource.Import(ctx, ds, r, *batchSize)
}
