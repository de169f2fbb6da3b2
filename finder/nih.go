package finder

import (
	"bytes"
	"context"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/opencitations/index-sub000/datasource"
	"github.com/opencitations/index-sub000/identifier"
	log "github.com/sirupsen/logrus"
)

const DefaultPubMedEndpoint = "https://pubmed.ncbi.nlm.nih.gov/"

var (
	pubmedISSN = regexp.MustCompile(`IS\s+-\s+(\d{4}-\d{3}[\dX])`)
	pubmedDP   = regexp.MustCompile(`DP\s+-\s+(\d{4})(?:\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec))?(?:\s+(3[01]|[12][0-9]|0?[1-9]))?`)
)

// NIH finds PMID metadata on PubMed article pages in MEDLINE format.
type NIH struct {
	base
	Client   *Client
	Endpoint string
}

func NewNIH(ds datasource.DataSource, client *Client) *NIH {
	f := &NIH{Client: client, Endpoint: DefaultPubMedEndpoint}
	f.schemes = []identifier.Scheme{identifier.PMID}
	f.ds = ds
	if client != nil {
		f.api = true
		f.provides = dateField | issnField
		f.fetch = f.fetchArticle
		f.resolver = &identifier.PMIDResolver{Client: client}
	}
	return f
}

func (f *NIH) fetchArticle(ctx context.Context, pmid string) (*datasource.Record, error) {
	b, err := f.Client.Get(ctx, f.Endpoint+identifier.Quote(pmid)+"/?format=pubmed", nil)
	if err != nil || b == nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		log.WithFields(log.Fields{"pmid": pmid, "err": err}).Warn("pubmed: cannot parse page")
		return nil, nil
	}
	details := doc.Find("#article-details")
	if details.Length() == 0 {
		return nil, nil
	}
	return MedlineRecord(details.Text()), nil
}

// MedlineRecord extracts the publication date (DP) and ISSN (IS) from a
// record in MEDLINE format.
func MedlineRecord(text string) *datasource.Record {
	r := &datasource.Record{Valid: true}
	if m := pubmedDP.FindStringSubmatch(text); m != nil {
		r.Date = medlineDate(m[1], m[2], m[3])
	}
	var issns []string
	for _, m := range pubmedISSN.FindAllStringSubmatch(text, -1) {
		issns = append(issns, m[1])
	}
	r.Merge(datasource.Record{ISSN: normalizeAll(identifier.ISSNManager{}, issns)})
	return r
}

// medlineDate turns "2012", "Mar", "5" into a partial date.
func medlineDate(year, month, day string) string {
	switch {
	case month != "" && day != "":
		if t, err := time.Parse("2006 Jan 2", year+" "+month+" "+day); err == nil {
			return t.Format("2006-01-02")
		}
		fallthrough
	case month != "":
		if t, err := time.Parse("2006 Jan", year+" "+month); err == nil {
			return t.Format("2006-01")
		}
	}
	return year
}
