package finder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const DefaultORCIDEndpoint = "https://pub.orcid.org/v2.1/search?q="

// ORCID finds the ORCID iDs of the authors of a DOI or PMID with the ORCID
// search API. It never contributes dates or ISSN beyond what is stored.
type ORCID struct {
	base
	Client   *Client
	Endpoint string
	// Key is an optional bearer token.
	Key string
}

// searchResponse is the part of an ORCID search response we need.
type searchResponse struct {
	Result []struct {
		ORCIDIdentifier struct {
			URI  string `json:"uri"`
			Path string `json:"path"`
			Host string `json:"host"`
		} `json:"orcid-identifier"`
	} `json:"result"`
}

// NewORCID returns a finder for identifiers of the given scheme, DOI or
// PMID.
func NewORCID(ds datasource.DataSource, client *Client, scheme identifier.Scheme, key string) *ORCID {
	f := &ORCID{Client: client, Endpoint: DefaultORCIDEndpoint, Key: key}
	f.schemes = []identifier.Scheme{scheme}
	f.ds = ds
	if client != nil {
		f.api = true
		f.provides = orcidField
		f.fetch = f.search
	}
	return f
}

// query returns the search expression for an identifier value.
func (f *ORCID) query(value string) string {
	if f.schemes[0] == identifier.PMID {
		return fmt.Sprintf(`pmid-self:"%s"`, value)
	}
	return fmt.Sprintf(`doi-self:"%s" OR doi-self:"%s"`, value, strings.ToUpper(value))
}

func (f *ORCID) search(ctx context.Context, value string) (*datasource.Record, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Content-Type", "application/json")
	if f.Key != "" {
		header.Set("Authorization", "Bearer "+f.Key)
	}
	b, err := f.Client.Get(ctx, f.Endpoint+url.QueryEscape(f.query(value)), header)
	if err != nil || b == nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		log.WithFields(log.Fields{"id": value, "err": err}).Warn("orcid: cannot decode response")
		return nil, nil
	}
	var orcids []string
	for _, r := range resp.Result {
		orcids = append(orcids, r.ORCIDIdentifier.Path)
	}
	return &datasource.Record{ORCID: normalizeAll(identifier.ORCIDManager{}, orcids)}, nil
}
