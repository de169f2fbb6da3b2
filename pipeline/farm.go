package pipeline

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/opencitations/index-sub000/citation"
	"github.com/opencitations/index-sub000/cursor"
	"github.com/opencitations/index-sub000/parser"
	"github.com/opencitations/index-sub000/storer"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultQueueFactor     = 4
	defaultMonitorInterval = 30 * time.Second
)

// FarmOption configures a farm.
type FarmOption func(*FarmRunner)

// WithQueueSize sets the capacity of the queues between the stages.
func WithQueueSize(n int) FarmOption {
	return func(f *FarmRunner) {
		if n > 0 {
			f.queueSize = n
		}
	}
}

// WithMonitorInterval sets how often queue lengths are logged.
func WithMonitorInterval(d time.Duration) FarmOption {
	return func(f *FarmRunner) {
		if d > 0 {
			f.monitorInterval = d
		}
	}
}

// FarmRunner reads rows with a single cursor, lets Workers goroutines run
// the operator on them, and collects the citations into a single storer,
// in input order. Full queues slow down the stages before them.
type FarmRunner struct {
	cfg             Config
	queueSize       int
	monitorInterval time.Duration
}

func NewFarm(cfg Config, opts ...FarmOption) *FarmRunner {
	cfg.defaults()
	f := &FarmRunner{
		cfg:             cfg,
		queueSize:       cfg.Workers * defaultQueueFactor,
		monitorInterval: defaultMonitorInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type item struct {
	seq    int
	state  cursor.State
	tuples []parser.Tuple
}

type done struct {
	seq       int
	state     cursor.State
	citations []*citation.Citation
}

// Run processes the input. The checkpoint is written by the collector and
// only covers rows whose citations, and those of all rows before, are on
// disk.
func (f *FarmRunner) Run(ctx context.Context) (Result, error) {
	cfg := f.cfg
	cur, err := cursor.Open(cfg.Input, cfg.Parser(), cfg.LocalName)
	if err != nil {
		return Result{}, err
	}
	cur.Manual = true
	st, err := storer.New(cfg.Storer)
	if err != nil {
		cur.Close()
		return Result{}, err
	}
	var (
		// Failures cancel gctx; cancelling ctx only stops the emitter.
		g, gctx = errgroup.WithContext(context.WithoutCancel(ctx))
		work    = make(chan item, f.queueSize)
		results = make(chan done, f.queueSize)
		wg      sync.WaitGroup
		eof     bool
		result  Result
	)
	// Emitter.
	g.Go(func() error {
		defer close(work)
		for seq := 0; ; seq++ {
			if ctx.Err() != nil || gctx.Err() != nil {
				return nil
			}
			row, err := cur.Next()
			if err == io.EOF {
				eof = true
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case work <- item{seq: seq, state: cur.Current(), tuples: row.Tuples}:
			case <-ctx.Done():
				return nil
			case <-gctx.Done():
				return nil
			}
		}
	})
	// Workers.
	opctx := context.WithoutCancel(ctx)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for it := range work {
				// After a failure nothing is stored any more.
				if gctx.Err() != nil {
					return nil
				}
				d := done{seq: it.seq, state: it.state}
				for _, t := range it.tuples {
					c, err := cfg.Operator.Process(opctx, t)
					if err != nil {
						return err
					}
					if c != nil {
						d.citations = append(d.citations, c)
					}
				}
				select {
				case results <- d:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	stop := make(chan struct{})
	go f.monitor(work, results, stop)
	// Collector.
	g.Go(func() error {
		defer close(stop)
		var (
			pending = make(map[int]done)
			next    int
			last    cursor.State
			since   int
			failed  error
		)
		checkpoint := func() error {
			if since == 0 {
				return nil
			}
			if err := st.Flush(); err != nil {
				return err
			}
			since = 0
			return cursor.WriteState(cur.Sidecar(), last)
		}
		for d := range results {
			if failed != nil {
				continue
			}
			pending[d.seq] = d
			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				for _, c := range p.citations {
					if err := st.Store(c); err != nil {
						failed = err
						break
					}
				}
				if failed != nil {
					break
				}
				last = p.state
				result.Rows++
				since++
				if since >= cfg.FlushEvery {
					if failed = checkpoint(); failed != nil {
						break
					}
				}
				if cfg.OnRow != nil {
					cfg.OnRow(0, p.state)
				}
			}
		}
		if failed != nil {
			return failed
		}
		return checkpoint()
	})
	err = g.Wait()
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	if cerr := cur.Close(); err == nil {
		err = cerr
	}
	result.Stored = st.Stored()
	if err != nil {
		return result, err
	}
	if eof {
		if rerr := os.Remove(cur.Sidecar()); rerr != nil && !os.IsNotExist(rerr) {
			return result, rerr
		}
	} else {
		result.Interrupted = true
		cfg.Log.WithField("at", cur.Current()).Info("interrupted")
	}
	return result, nil
}

// monitor logs the queue lengths until stop is closed.
func (f *FarmRunner) monitor(work chan item, results chan done, stop chan struct{}) {
	ticker := time.NewTicker(f.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			f.cfg.Log.WithFields(log.Fields{
				"work":    len(work),
				"results": len(results),
				"cap":     f.queueSize,
			}).Debug("farm queues")
		}
	}
}
