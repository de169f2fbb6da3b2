// Package pipeline runs parsers, the operator and storers over an input
// directory, in one of three modes: a single sequential loop, parallel
// shards of input files, or a farm of operator workers between a single
// reader and a single writer.
//
// All modes stop reading input when the context is cancelled, handle the
// rows already read, flush the storers and persist the checkpoints, so a
// new run resumes after the last handled row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencitations/index-sub000/cursor"
	"github.com/opencitations/index-sub000/operator"
	"github.com/opencitations/index-sub000/parser"
	"github.com/opencitations/index-sub000/storer"
	log "github.com/sirupsen/logrus"
)

// Mode selects the runtime topology.
type Mode string

const (
	Sequential Mode = "sequential"
	Parallel   Mode = "parallel"
	Farm       Mode = "farm"
)

var ErrUnknownMode = errors.New("unknown mode")

// Modes lists all modes.
var Modes = []Mode{Sequential, Parallel, Farm}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Config is shared by all modes.
type Config struct {
	// Input is a directory or, in sequential mode, a single file.
	Input string
	// Parser returns a fresh parser; every worker gets its own.
	Parser   parser.Factory
	Operator *operator.Operator
	// Storer is the template for the storers; in parallel mode every
	// shard appends its number to the suffix.
	Storer storer.Options
	// Workers is the number of shards or farm workers, default 1.
	Workers int
	// LocalName distinguishes the checkpoints of runs sharing an input
	// directory.
	LocalName string
	// FlushEvery is the number of rows between checkpoints, default 1. A
	// crash loses the citations of up to that many rows, since they are
	// already marked as seen.
	FlushEvery int
	// OnRow, if set, is called after each handled row, with the worker
	// number and the position of the row.
	OnRow func(worker int, s cursor.State)
	// Log carries run wide fields, like the run identifier.
	Log *log.Entry
}

func (cfg *Config) defaults() {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FlushEvery < 1 {
		cfg.FlushEvery = 1
	}
	if cfg.Log == nil {
		cfg.Log = log.NewEntry(log.StandardLogger())
	}
}

// Result summarizes a run.
type Result struct {
	Counters operator.Counters
	Rows     int
	Stored   int
	// Interrupted is true, if the run stopped before the end of the
	// input because the context was cancelled.
	Interrupted bool
}

// Run executes the pipeline in the given mode.
func Run(ctx context.Context, mode Mode, cfg Config) (Result, error) {
	if cfg.Parser == nil || cfg.Operator == nil {
		return Result{}, errors.New("pipeline: parser and operator required")
	}
	cfg.defaults()
	before := cfg.Operator.Counters()
	var (
		result Result
		err    error
	)
	switch mode {
	case Sequential:
		result, err = runSequential(ctx, cfg)
	case Parallel:
		result, err = runParallel(ctx, cfg)
	case Farm:
		result, err = NewFarm(cfg).Run(ctx)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	result.Counters = cfg.Operator.Counters().Sub(before)
	return result, err
}

func runSequential(ctx context.Context, cfg Config) (Result, error) {
	cur, err := cursor.Open(cfg.Input, cfg.Parser(), cfg.LocalName)
	if err != nil {
		return Result{}, err
	}
	st, err := storer.New(cfg.Storer)
	if err != nil {
		cur.Close()
		return Result{}, err
	}
	w := &worker{cfg: cfg, cur: cur, st: st, log: cfg.Log}
	return w.run(ctx)
}

// worker is the sequential loop: rows from a cursor go through the
// operator into a storer.
type worker struct {
	cfg Config
	id  int
	cur *cursor.Cursor
	st  *storer.Storer
	log *log.Entry

	rows    int
	pending int
}

func (w *worker) run(ctx context.Context) (result Result, err error) {
	defer func() {
		if cerr := w.st.Close(); err == nil {
			err = cerr
		}
		if cerr := w.cur.Close(); err == nil {
			err = cerr
		}
		result.Rows, result.Stored = w.rows, w.st.Stored()
	}()
	// Citations are handled to the end once started, the context only
	// stops the reading of rows.
	opctx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			w.log.WithField("at", w.cur.Current()).Info("interrupted")
			return Result{Interrupted: true}, w.checkpoint()
		}
		row, err := w.cur.Next()
		if err == io.EOF {
			return Result{}, w.st.Flush()
		}
		if err != nil {
			return Result{}, err
		}
		for _, t := range row.Tuples {
			c, err := w.cfg.Operator.Process(opctx, t)
			if err != nil {
				w.log.WithFields(log.Fields{"at": w.cur.Current(), "err": err}).Error("operator failed")
				// Keep what was stored, the row is read again on resume.
				w.st.Flush()
				return Result{}, err
			}
			if c == nil {
				continue
			}
			if err := w.st.Store(c); err != nil {
				return Result{}, err
			}
		}
		w.rows++
		w.pending++
		if w.pending >= w.cfg.FlushEvery {
			if err := w.checkpoint(); err != nil {
				return Result{}, err
			}
		}
		if w.cfg.OnRow != nil {
			w.cfg.OnRow(w.id, w.cur.Current())
		}
	}
}

// checkpoint flushes the storer and commits the cursor, in that order.
func (w *worker) checkpoint() error {
	if w.pending == 0 {
		return nil
	}
	if err := w.st.Flush(); err != nil {
		return err
	}
	if err := w.cur.Commit(); err != nil {
		return err
	}
	w.pending = 0
	return nil
}
