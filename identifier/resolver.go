package identifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/segmentio/encoding/json"
)

const (
	DefaultDOIEndpoint  = "https://doi.org/api/handles/"
	DefaultPMIDEndpoint = "https://pubmed.ncbi.nlm.nih.gov/"
)

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Resolver checks whether an identifier is registered upstream. A nil error
// with false means the identifier is not registered; any error means we do
// not know.
type Resolver interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// DOIResolver asks the handle API of doi.org.
type DOIResolver struct {
	Client    Doer
	Endpoint  string
	UserAgent string
}

// handleResponse is the part of the handle API response we need.
type handleResponse struct {
	ResponseCode int    `json:"responseCode"`
	Handle       string `json:"handle"`
}

func (r *DOIResolver) Exists(ctx context.Context, id string) (bool, error) {
	doi := DOIManager{}.Normalize(id, false)
	if doi == "" {
		return false, nil
	}
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = DefaultDOIEndpoint
	}
	resp, err := get(ctx, r.Client, endpoint+Quote(doi), r.UserAgent)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("doi: HTTP %d for %s", resp.StatusCode, doi)
	}
	var hr handleResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return false, fmt.Errorf("doi: decode: %w", err)
	}
	return hr.ResponseCode == 1, nil
}

// PMIDResolver checks for the uid meta element on the PubMed article page.
type PMIDResolver struct {
	Client    Doer
	Endpoint  string
	UserAgent string
}

func (r *PMIDResolver) Exists(ctx context.Context, id string) (bool, error) {
	pmid := PMIDManager{}.Normalize(id, false)
	if pmid == "" {
		return false, nil
	}
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = DefaultPMIDEndpoint
	}
	resp, err := get(ctx, r.Client, endpoint+Quote(pmid)+"/?format=pmid", r.UserAgent)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("pmid: HTTP %d for %s", resp.StatusCode, pmid)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return false, fmt.Errorf("pmid: parse: %w", err)
	}
	var found bool
	doc.Find(`meta[name="uid"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if v, _ := s.Attr("content"); strings.TrimSpace(v) == pmid {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

func get(ctx context.Context, client Doer, link, userAgent string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
