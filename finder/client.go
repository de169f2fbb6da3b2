package finder

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/opencitations/index-sub000/identifier"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "ResourceFinder / OpenCitations Indexes (http://opencitations.net; mailto:contact@opencitations.net)"
	DefaultTimeout   = 30 * time.Second
	DefaultRetries   = 3
	DefaultBackoff   = 5 * time.Second
)

// ClientOptions configures a Client. Zero values are replaced by defaults,
// except RequestsPerSecond, where zero means no limit.
type ClientOptions struct {
	Timeout           time.Duration
	MaxRetries        int
	Backoff           time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// Client is a rate limited, retrying HTTP client. Requests that still fail
// after all retries count as "no data".
type Client struct {
	Doer      identifier.Doer
	Limiter   *rate.Limiter
	UserAgent string
}

// NewClient returns a client backed by pester.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultRetries
	}
	if opts.Backoff == 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	p := pester.New()
	p.Concurrency = 1
	p.MaxRetries = opts.MaxRetries
	p.RetryOnHTTP429 = true
	p.Timeout = opts.Timeout
	backoff := opts.Backoff
	p.Backoff = func(_ int) time.Duration { return backoff }
	c := &Client{Doer: p, UserAgent: opts.UserAgent}
	if opts.RequestsPerSecond > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Do waits for the limiter and sends the request. It satisfies
// identifier.Doer, so resolvers share the rate limit.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	if req.Header.Get("User-Agent") == "" && c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	doer := c.Doer
	if doer == nil {
		doer = http.DefaultClient
	}
	return doer.Do(req)
}

// Get returns the body of a successful response. Any other status and
// transport errors yield nil without error; only a cancelled context is an
// error.
func (c *Client) Get(ctx context.Context, link string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithFields(log.Fields{
			"url": link,
			"err": err,
		}).Warn("request failed")
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.WithFields(log.Fields{
			"url":    link,
			"status": resp.StatusCode,
		}).Debug("no data")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithFields(log.Fields{
			"url": link,
			"err": err,
		}).Warn("reading response failed")
		return nil, nil
	}
	return b, nil
}
