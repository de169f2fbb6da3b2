package finder

import (
	"context"

	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/schema/crossref"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const DefaultCrossrefEndpoint = "https://api.crossref.org/works/"

// Crossref finds DOI metadata with the Crossref REST API.
type Crossref struct {
	base
	Client   *Client
	Endpoint string
}

// NewCrossref returns a finder for DOI. With a nil client, only the
// datasource is consulted.
func NewCrossref(ds datasource.DataSource, client *Client) *Crossref {
	f := &Crossref{Client: client, Endpoint: DefaultCrossrefEndpoint}
	f.schemes = []identifier.Scheme{identifier.DOI}
	f.ds = ds
	if client != nil {
		f.api = true
		f.provides = allFields
		f.fetch = f.fetchWork
		f.resolver = &identifier.DOIResolver{Client: client}
	}
	return f
}

func (f *Crossref) fetchWork(ctx context.Context, doi string) (*datasource.Record, error) {
	b, err := f.Client.Get(ctx, f.Endpoint+identifier.Quote(doi), nil)
	if err != nil || b == nil {
		return nil, err
	}
	var resp crossref.Response
	if err := json.Unmarshal(b, &resp); err != nil {
		log.WithFields(log.Fields{"doi": doi, "err": err}).Warn("crossref: cannot decode response")
		return nil, nil
	}
	return CrossrefRecord(&resp.Message), nil
}

// CrossrefRecord extracts date, ISSN and ORCID from a work. ISSN are only
// taken from journal types.
func CrossrefRecord(w *crossref.Work) *datasource.Record {
	r := &datasource.Record{
		Valid: true,
		Date:  dateutil.CheckDate(dateutil.FromParts(w.Issued.First())),
	}
	if w.IsJournal() {
		r.Merge(datasource.Record{ISSN: normalizeAll(identifier.ISSNManager{}, w.ISSN)})
	}
	var orcids []string
	for _, a := range w.Author {
		orcids = append(orcids, a.ORCID)
	}
	r.Merge(datasource.Record{ORCID: normalizeAll(identifier.ORCIDManager{}, orcids)})
	return r
}
