// Package glob builds the datasource content for an index from metadata
// dumps, in two passes over the input files.
//
// The first pass stores what every record says about itself: validity,
// publication date, ISSN and ORCID. The second pass looks at the entities
// records refer to. Unknown entities are stored with their syntactic
// validity; valid entities without date get the date most records agree
// on, the oldest one on ties.
package glob

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/opencitations/index-sub000/cursor"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/finder"
	"github.com/opencitations/index-sub000/identifier"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Stats summarizes a run.
type Stats struct {
	Files  int
	Citing int
	Cited  int
	Dated  int
}

// Glob holds the configuration of a run. Only DS and Reader are required.
type Glob struct {
	DS     datasource.DataSource
	Reader Reader
	// Journals caches journal ISSN by name, for readers giving journal
	// names only.
	Journals *JournalCache
	// ISSNFinder, if set, looks up the ISSN of an entity by its DOI, when
	// the journal is not yet cached.
	ISSNFinder finder.Finder
	// ORCIDFinder, if set, looks up ORCID iDs of entities without them.
	ORCIDFinder finder.Finder
	// Verifier, if set, must confirm ORCID iDs found by ORCIDFinder.
	Verifier finder.AuthorIdentityVerifier
	// Workers is the number of files processed in parallel, default 1.
	Workers int

	writeMu sync.Mutex // serializes read-merge-write cycles
	mu      sync.Mutex
	authors map[string][]finder.AuthorName
	dates   map[string]map[string]int
}

// Authors returns the authors of an entity currently being processed. It
// serves as author source for a finder.PersonVerifier.
func (g *Glob) Authors(ctx context.Context, id string) ([]finder.AuthorName, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authors[id], nil
}

// Run processes all files the reader accepts below dir.
func (g *Glob) Run(ctx context.Context, dir string) (Stats, error) {
	files, err := listFiles(dir, g.Reader)
	if err != nil {
		return Stats{}, err
	}
	g.authors = make(map[string][]finder.AuthorName)
	g.dates = make(map[string]map[string]int)
	stats := Stats{Files: len(files)}
	log.WithFields(log.Fields{"dir": dir, "files": len(files)}).Info("glob: first pass")
	citing, err := g.each(ctx, files, g.citing)
	if err != nil {
		return stats, err
	}
	stats.Citing = citing
	if g.Journals != nil {
		if err := g.Journals.Save(); err != nil {
			return stats, err
		}
	}
	log.Info("glob: second pass")
	cited, err := g.each(ctx, files, g.cited)
	if err != nil {
		return stats, err
	}
	stats.Cited = cited
	if stats.Dated, err = g.storeDates(ctx); err != nil {
		return stats, err
	}
	log.WithFields(log.Fields{
		"files":  stats.Files,
		"citing": stats.Citing,
		"cited":  stats.Cited,
		"dated":  stats.Dated,
	}).Info("glob: done")
	return stats, nil
}

func listFiles(dir string, r Reader) ([]string, error) {
	rel, err := cursor.List(dir, r.Parser())
	if err != nil {
		return nil, err
	}
	files := make([]string, len(rel))
	for i, f := range rel {
		files[i] = filepath.Join(dir, filepath.FromSlash(f))
	}
	return files, nil
}

// each runs fn on every file, with at most Workers files at a time, and
// sums up the counts.
func (g *Glob) each(ctx context.Context, files []string, fn func(context.Context, string) (int, error)) (int, error) {
	workers := g.Workers
	if workers < 1 {
		workers = 1
	}
	var (
		eg, ectx = errgroup.WithContext(ctx)
		mu       sync.Mutex
		total    int
	)
	eg.SetLimit(workers)
	for _, f := range files {
		f := f
		eg.Go(func() error {
			n, err := fn(ectx, f)
			if err != nil {
				return err
			}
			mu.Lock()
			total += n
			mu.Unlock()
			log.WithFields(log.Fields{"file": f, "n": n}).Debug("glob: file done")
			return nil
		})
	}
	err := eg.Wait()
	return total, err
}

// citing stores the records of a file, merged with what is already known.
func (g *Glob) citing(ctx context.Context, filename string) (int, error) {
	records := make(map[string]*datasource.Record)
	var keys []string
	err := g.Reader.Each(filename, func(e Entity, _ []Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.enrich(ctx, &e); err != nil {
			return err
		}
		if r, ok := records[e.ID]; ok {
			r.Merge(e.Record)
			return nil
		}
		r := e.Record.Clone()
		records[e.ID] = &r
		keys = append(keys, e.ID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	stored, err := g.DS.MGet(ctx, keys)
	if err != nil {
		return 0, err
	}
	batch := make(map[string]datasource.Record, len(keys))
	for _, k := range keys {
		r := *records[k]
		if s, ok := stored[k]; ok {
			s.Merge(r)
			r = s
		}
		batch[k] = r
	}
	return len(batch), g.DS.MSet(ctx, batch)
}

// enrich adds ISSN and ORCID to entities read without them.
func (g *Glob) enrich(ctx context.Context, e *Entity) error {
	if len(e.Record.ISSN) == 0 && e.Journal != "" && g.Journals != nil {
		issn, ok := g.Journals.Get(e.Journal)
		if !ok && e.DOI != "" && g.ISSNFinder != nil {
			var err error
			if issn, err = g.ISSNFinder.ISSN(ctx, identifier.DOI.Prefix()+e.DOI); err != nil {
				return err
			}
			// Journals without ISSN upstream are not cached, another
			// record of the journal may do better.
			if len(issn) > 0 {
				g.Journals.Set(e.Journal, issn)
			}
		}
		e.Record.ISSN = append(e.Record.ISSN, issn...)
	}
	if len(e.Record.ORCID) == 0 && g.ORCIDFinder != nil {
		orcids, err := g.ORCIDFinder.ORCID(ctx, e.ID)
		if err != nil {
			return err
		}
		if g.Verifier != nil && len(orcids) > 0 {
			if orcids, err = g.verified(ctx, e, orcids); err != nil {
				return err
			}
		}
		e.Record.ORCID = append(e.Record.ORCID, orcids...)
	}
	return nil
}

func (g *Glob) verified(ctx context.Context, e *Entity, orcids []string) ([]string, error) {
	g.mu.Lock()
	g.authors[e.ID] = e.Authors
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.authors, e.ID)
		g.mu.Unlock()
	}()
	var result []string
	for _, o := range orcids {
		ok, err := g.Verifier.Verify(ctx, o, e.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, o)
		}
	}
	return result, nil
}

// cited stores unknown referenced entities and collects date candidates
// for the dateless ones.
func (g *Glob) cited(ctx context.Context, filename string) (int, error) {
	candidates := make(map[string][]string)
	var keys []string
	err := g.Reader.Each(filename, func(_ Entity, refs []Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, ref := range refs {
			if _, ok := candidates[ref.ID]; !ok {
				candidates[ref.ID] = nil
				keys = append(keys, ref.ID)
			}
			if ref.Date != "" {
				candidates[ref.ID] = append(candidates[ref.ID], ref.Date)
			}
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	stored, err := g.DS.MGet(ctx, keys)
	if err != nil {
		return 0, err
	}
	created := make(map[string]datasource.Record)
	for _, k := range keys {
		r, ok := stored[k]
		if !ok {
			r = datasource.Record{Valid: syntacticallyValid(k)}
			created[k] = r
		}
		if r.Valid && r.Date == "" {
			g.addCandidates(k, candidates[k])
		}
	}
	if len(created) == 0 {
		return 0, nil
	}
	return len(created), g.DS.MSet(ctx, created)
}

func syntacticallyValid(id string) bool {
	v, err := identifier.Parse(id)
	if err != nil {
		return false
	}
	m, err := identifier.ForScheme(v.Scheme())
	if err != nil {
		return false
	}
	return m.IsValid(v.Value())
}

func (g *Glob) addCandidates(id string, dates []string) {
	if len(dates) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	counts, ok := g.dates[id]
	if !ok {
		counts = make(map[string]int)
		g.dates[id] = counts
	}
	for _, d := range dates {
		counts[d]++
	}
}

// storeDates assigns every collected entity its best date candidate.
func (g *Glob) storeDates(ctx context.Context) (int, error) {
	if len(g.dates) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(g.dates))
	for k := range g.dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	stored, err := g.DS.MGet(ctx, keys)
	if err != nil {
		return 0, err
	}
	batch := make(map[string]datasource.Record)
	for _, k := range keys {
		r, ok := stored[k]
		if !ok || r.Date != "" {
			continue
		}
		r.Date = MostFrequent(g.dates[k])
		batch[k] = r
	}
	g.dates = nil
	return len(batch), g.DS.MSet(ctx, batch)
}

// MostFrequent returns the date with the highest count, the oldest date
// among equally frequent ones.
func MostFrequent(counts map[string]int) string {
	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	var best string
	for _, d := range dates {
		if best == "" || counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
