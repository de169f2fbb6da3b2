package finder

import (
	"context"

	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/schema/datacite"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const DefaultDataCiteEndpoint = "https://api.datacite.org/dois/"

// DataCite finds DOI metadata with the DataCite REST API.
type DataCite struct {
	base
	Client   *Client
	Endpoint string
}

func NewDataCite(ds datasource.DataSource, client *Client) *DataCite {
	f := &DataCite{Client: client, Endpoint: DefaultDataCiteEndpoint}
	f.schemes = []identifier.Scheme{identifier.DOI}
	f.ds = ds
	if client != nil {
		f.api = true
		f.provides = allFields
		f.fetch = f.fetchDOI
		f.resolver = &identifier.DOIResolver{Client: client}
	}
	return f
}

func (f *DataCite) fetchDOI(ctx context.Context, doi string) (*datasource.Record, error) {
	b, err := f.Client.Get(ctx, f.Endpoint+identifier.Quote(doi), nil)
	if err != nil || b == nil {
		return nil, err
	}
	var resp datacite.Response
	if err := json.Unmarshal(b, &resp); err != nil {
		log.WithFields(log.Fields{"doi": doi, "err": err}).Warn("datacite: cannot decode response")
		return nil, nil
	}
	return DataCiteRecord(&resp.Data.Attributes), nil
}

// DataCiteRecord extracts date, ISSN and ORCID from a DataCite record. The
// issued date is preferred over the publication year; the container ISSN
// is only used for journal types.
func DataCiteRecord(a *datacite.Attributes) *datasource.Record {
	r := &datasource.Record{Valid: true}
	if d := dateutil.CheckDate(a.IssuedDate()); d != "" {
		r.Date = d
	} else {
		r.Date = dateutil.CheckDate(a.Year())
	}
	if a.IsJournal() {
		r.Merge(datasource.Record{ISSN: normalizeAll(identifier.ISSNManager{}, []string{a.ContainerISSN()})})
	}
	r.Merge(datasource.Record{ORCID: normalizeAll(identifier.ORCIDManager{}, a.ORCIDs())})
	return r
}
