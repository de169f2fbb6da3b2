// Package logging sets up the logger of the ocindex tools: text output on
// stderr, optionally duplicated into a log file, with a run identifier on
// every entry.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	index "github.com/opencitations/index-sub000"
	log "github.com/sirupsen/logrus"
)

// DefaultFile returns a new log file name below the XDG state directory,
// e.g. ~/.local/state/ocindex/logs/oc-cnc-2023-04-01T090507.log.
func DefaultFile(tool string, t time.Time) (string, error) {
	return xdg.StateFile(filepath.Join(index.AppName, "logs",
		fmt.Sprintf("%s-%s.log", tool, t.Format("2006-01-02T150405"))))
}

// Options for Setup.
type Options struct {
	// Tool is the name of the executable.
	Tool    string
	Verbose bool
	// File duplicates the log; "auto" picks DefaultFile.
	File string
}

// Setup configures the standard logger and returns an entry carrying the
// run identifier. The returned function closes the log file.
func Setup(opts Options) (*log.Entry, func() error, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if opts.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	var (
		closer   = func() error { return nil }
		filename = opts.File
		err      error
	)
	if filename == "auto" {
		if filename, err = DefaultFile(opts.Tool, time.Now()); err != nil {
			return nil, closer, err
		}
	}
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, closer, err
		}
		log.SetOutput(io.MultiWriter(os.Stderr, f))
		closer = f.Close
	}
	entry := log.WithFields(log.Fields{
		"run":  uuid.New().String(),
		"tool": opts.Tool,
	})
	if filename != "" {
		entry.WithField("file", filename).Debug("logging to file")
	}
	return entry, closer, nil
}
