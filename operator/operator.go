// Package operator turns citation tuples into citations: identifiers are
// normalized and validated, every citation is deduplicated by its OCI, and
// missing dates and self-citation flags are filled in through finders.
package operator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opencitations/index-sub000/citation"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/finder"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/oci"
	"github.com/opencitations/index-sub000/parser"
	log "github.com/sirupsen/logrus"
)

// ErrBadOCI signals an OCI the operator built itself but which is not well
// formed. It means a bug, not bad input.
var ErrBadOCI = errors.New("generated oci is not well formed")

// Options describe the index the citations belong to.
type Options struct {
	// Prefix is the supplier prefix of the OCI, e.g. "020".
	Prefix string
	// Scheme is the identifier type of the index. With identifier.OMID,
	// incoming identifiers are mapped to OMID first.
	Scheme identifier.Scheme
	// BaseURL is prepended to identifiers to get entity IRIs, e.g.
	// "https://doi.org/".
	BaseURL     string
	Agent       string
	Source      string
	ServiceName string
	Type        citation.Type
	// Now returns the provenance time, time.Now by default.
	Now func() time.Time
}

// Operator is safe for concurrent use; the datasource insert-if-absent is
// the only synchronization point between workers.
type Operator struct {
	Seen    datasource.DataSource
	Handler *finder.Handler
	Codec   *oci.Codec
	Options Options

	mu       sync.Mutex
	counters Counters
}

func New(seen datasource.DataSource, handler *finder.Handler, codec *oci.Codec, opts Options) *Operator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Type == "" {
		opts.Type = citation.Reference
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL(opts.Scheme)
	}
	return &Operator{Seen: seen, Handler: handler, Codec: codec, Options: opts}
}

func defaultBaseURL(s identifier.Scheme) string {
	switch s {
	case identifier.PMID:
		return "https://pubmed.ncbi.nlm.nih.gov/"
	case identifier.OMID:
		return identifier.MetaBaseURL
	default:
		return "https://doi.org/"
	}
}

// Counters returns the counters of all tuples processed so far.
func (o *Operator) Counters() Counters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters
}

func (o *Operator) count(f func(c *Counters)) {
	o.mu.Lock()
	f(&o.counters)
	o.mu.Unlock()
}

// Process turns a tuple into a new citation. It returns nil for tuples with
// invalid identifiers and for citations already seen; these are counted,
// not reported as error. Errors are datasource or upstream failures.
func (o *Operator) Process(ctx context.Context, t parser.Tuple) (*citation.Citation, error) {
	citing, cited, err := o.identifiers(ctx, t)
	if err != nil {
		return nil, err
	}
	if citing.IsZero() || cited.IsZero() {
		o.count(func(c *Counters) { c.InvalidIDs++ })
		log.WithFields(log.Fields{"citing": t.Citing, "cited": t.Cited}).Debug("operator: invalid identifier")
		return nil, nil
	}
	v, err := o.Codec.OCI(citing, cited, o.Options.Prefix)
	if err != nil {
		// Characters outside the lookup table cannot be encoded; the
		// identifier is as good as invalid.
		o.count(func(c *Counters) { c.InvalidIDs++ })
		log.WithFields(log.Fields{"citing": citing, "cited": cited, "err": err}).Warn("operator: cannot encode")
		return nil, nil
	}
	if !oci.IsWellFormed(v) {
		return nil, fmt.Errorf("%w: %s", ErrBadOCI, v)
	}
	// Marked as seen only once the citation is complete, so a failed
	// lookup leaves it to the next run.
	p, err := o.params(ctx, v, citing, cited, t)
	if err != nil {
		return nil, err
	}
	added, err := o.Seen.SetIfAbsent(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("dedup %s: %w", v, err)
	}
	if !added {
		o.count(func(c *Counters) { c.AlreadyPresent++ })
		return nil, nil
	}
	o.count(func(c *Counters) { c.New++ })
	return citation.New(p), nil
}

// identifiers returns normalized and validated citing and cited
// identifiers, mapped to OMID for OMID indexes. A zero identifier means
// invalid.
func (o *Operator) identifiers(ctx context.Context, t parser.Tuple) (citing, cited identifier.Identifier, err error) {
	if citing, err = o.identifier(ctx, t.Citing); err != nil || citing.IsZero() {
		return citing, cited, err
	}
	cited, err = o.identifier(ctx, t.Cited)
	return citing, cited, err
}

func (o *Operator) identifier(ctx context.Context, raw string) (identifier.Identifier, error) {
	key := o.Handler.Normalize(raw)
	if key == "" {
		return identifier.Identifier{}, nil
	}
	id, err := identifier.Parse(key)
	if err != nil {
		return identifier.Identifier{}, nil
	}
	if o.Options.Scheme == identifier.OMID && id.Scheme() != identifier.OMID {
		omid, err := o.Handler.OMID(ctx, key)
		if err != nil || omid == "" {
			return identifier.Identifier{}, err
		}
		mapped, err := identifier.New(identifier.OMID, omid)
		if err != nil {
			return identifier.Identifier{}, nil
		}
		return mapped, nil
	}
	if o.Options.Scheme != "" && id.Scheme() != o.Options.Scheme {
		return identifier.Identifier{}, nil
	}
	ok, err := o.Handler.IsValid(ctx, key)
	if err != nil || !ok {
		return identifier.Identifier{}, err
	}
	return id, nil
}

func (o *Operator) params(ctx context.Context, v string, citing, cited identifier.Identifier, t parser.Tuple) (citation.Params, error) {
	var (
		a   = citing.String()
		b   = cited.String()
		err error
	)
	citingDate := t.CitingDate
	if citingDate == "" && t.Creation == "" {
		if citingDate, err = o.Handler.Date(ctx, a); err != nil {
			return citation.Params{}, err
		}
	}
	citedDate := t.CitedDate
	if citedDate == "" && t.Timespan == "" {
		if citedDate, err = o.Handler.Date(ctx, b); err != nil {
			return citation.Params{}, err
		}
	}
	var journalSC, authorSC bool
	if t.JournalSC != nil {
		journalSC = *t.JournalSC
	} else if journalSC, err = o.Handler.ShareISSN(ctx, a, b); err != nil {
		return citation.Params{}, err
	}
	if t.AuthorSC != nil {
		authorSC = *t.AuthorSC
	} else if authorSC, err = o.Handler.ShareORCID(ctx, a, b); err != nil {
		return citation.Params{}, err
	}
	return citation.Params{
		OCI:             v,
		CitingURL:       o.Options.BaseURL + identifier.Quote(citing.Value()),
		CitingDate:      citingDate,
		CitedURL:        o.Options.BaseURL + identifier.Quote(cited.Value()),
		CitedDate:       citedDate,
		Creation:        t.Creation,
		Timespan:        t.Timespan,
		ProvEntity:      1,
		ProvAgent:       o.Options.Agent,
		Source:          o.Options.Source,
		ProvDate:        o.Options.Now().Format("2006-01-02T15:04:05"),
		ServiceName:     o.Options.ServiceName,
		IDType:          string(citing.Scheme()),
		IDShape:         citation.Shape(o.Options.BaseURL),
		Type:            o.Options.Type,
		JournalSC:       journalSC,
		AuthorSC:        authorSC,
		ProvDescription: citation.DefaultDescription,
	}, nil
}
