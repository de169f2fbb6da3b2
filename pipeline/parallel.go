package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/opencitations/index-sub000/cursor"
	"github.com/opencitations/index-sub000/storer"
	"golang.org/x/sync/errgroup"
)

// Shards distributes files round-robin over n shards. The assignment only
// depends on the sorted file list, so a resumed run with the same number of
// workers finds its checkpoints again.
func Shards(files []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	shards := make([][]string, n)
	for i, f := range files {
		shards[i%n] = append(shards[i%n], f)
	}
	return shards
}

func shardSuffix(suffix string, i int) string {
	if suffix == "" {
		return strconv.Itoa(i)
	}
	return suffix + "_" + strconv.Itoa(i)
}

// runParallel runs one sequential loop per shard. Every shard has its own
// checkpoint and storer, all share the operator. The first failing shard
// stops the others.
func runParallel(ctx context.Context, cfg Config) (Result, error) {
	fi, err := os.Stat(cfg.Input)
	if err != nil {
		return Result{}, err
	}
	if !fi.IsDir() {
		return runSequential(ctx, cfg)
	}
	files, err := cursor.List(cfg.Input, cfg.Parser())
	if err != nil {
		return Result{}, err
	}
	var (
		g, gctx = errgroup.WithContext(ctx)
		mu      sync.Mutex
		total   Result
	)
	for i, shard := range Shards(files, cfg.Workers) {
		if len(shard) == 0 {
			continue
		}
		i, shard := i, shard
		g.Go(func() error {
			cur, err := cursor.OpenFiles(cfg.Input, shard, cfg.Parser(), cfg.LocalName+"_"+strconv.Itoa(i))
			if err != nil {
				return err
			}
			opts := cfg.Storer
			opts.Suffix = shardSuffix(cfg.Storer.Suffix, i)
			st, err := storer.New(opts)
			if err != nil {
				cur.Close()
				return err
			}
			w := &worker{
				cfg: cfg,
				id:  i,
				cur: cur,
				st:  st,
				log: cfg.Log.WithField("worker", opts.Suffix),
			}
			w.log.WithField("files", len(shard)).Info("shard started")
			r, err := w.run(gctx)
			mu.Lock()
			total.Rows += r.Rows
			total.Stored += r.Stored
			total.Interrupted = total.Interrupted || r.Interrupted
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			return nil
		})
	}
	err = g.Wait()
	// Shards stopped by a failing sibling are not interrupted by the user.
	if err != nil {
		total.Interrupted = false
	}
	return total, err
}
