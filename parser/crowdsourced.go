package parser

import (
	"strings"

	"github.com/opencitations/index-sub000/identifier"
)

// Crowdsourced reads CSV files with the columns citing_id, cited_id,
// citing_publication_date and cited_publication_date. Identifiers without
// scheme prefix are taken as DOI.
type Crowdsourced struct {
	csvParser
}

func NewCrowdsourced() *Crowdsourced {
	p := &Crowdsourced{}
	p.extract = CrowdsourcedTuples
	return p
}

func (p *Crowdsourced) Name() string { return "crowdsourced" }

func (p *Crowdsourced) IsValid(filename string) bool {
	return hasExt(filename, ".csv")
}

// CrowdsourcedTuples maps a single crowdsourced row.
func CrowdsourcedTuples(row map[string]string) []Tuple {
	citing := normalizeID(identifier.DOI, row["citing_id"])
	cited := normalizeID(identifier.DOI, row["cited_id"])
	if citing == "" || cited == "" {
		return nil
	}
	return []Tuple{{
		Citing:     citing,
		Cited:      cited,
		CitingDate: strings.TrimSpace(row["citing_publication_date"]),
		CitedDate:  strings.TrimSpace(row["cited_publication_date"]),
	}}
}

// IndexCSV reads the citation CSV written by the index itself, with the
// columns oci, citing, cited, creation, timespan, journal_sc and author_sc.
// Creation date and timespan are passed on, the cited date is derived from
// them when the citation is built. Identifiers without scheme prefix are
// taken as OMID.
type IndexCSV struct {
	csvParser
	Scheme identifier.Scheme
}

func NewIndexCSV() *IndexCSV {
	p := &IndexCSV{Scheme: identifier.OMID}
	p.extract = p.tuples
	return p
}

func (p *IndexCSV) Name() string { return "index" }

func (p *IndexCSV) IsValid(filename string) bool {
	return hasExt(filename, ".csv")
}

func yesNo(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return Flag(true)
	case "no":
		return Flag(false)
	}
	return nil
}

func (p *IndexCSV) tuples(row map[string]string) []Tuple {
	citing := normalizeID(p.Scheme, row["citing"])
	cited := normalizeID(p.Scheme, row["cited"])
	if citing == "" || cited == "" {
		return nil
	}
	return []Tuple{{
		Citing:    citing,
		Cited:     cited,
		Creation:  strings.TrimSpace(row["creation"]),
		Timespan:  strings.TrimSpace(row["timespan"]),
		JournalSC: yesNo(row["journal_sc"]),
		AuthorSC:  yesNo(row["author_sc"]),
	}}
}

var (
	_ Parser = (*Crowdsourced)(nil)
	_ Parser = (*IndexCSV)(nil)
)
