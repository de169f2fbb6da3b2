package citation

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/schema/scholix"
	"github.com/segmentio/encoding/json"
)

// LoadOptions carry the values that are not part of serialized citations.
type LoadOptions struct {
	BaseURL     string // prepended to identifiers found in CSV files
	ServiceName string
	IDType      string
	IDShape     string
	Type        Type
	// Used for Scholix links, which carry neither OCI nor provenance.
	OCI    string
	Agent  string
	Source string
}

func readCSVMaps(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				m[h] = record[i]
			}
		}
		result = append(result, m)
	}
	return result, nil
}

// LoadCSV reads citations back from a data and a provenance CSV file.
// Data rows without provenance row are an error.
func LoadCSV(data, prov io.Reader, opts LoadOptions) ([]*Citation, error) {
	rows, err := readCSVMaps(data)
	if err != nil {
		return nil, fmt.Errorf("data csv: %w", err)
	}
	provRows, err := readCSVMaps(prov)
	if err != nil {
		return nil, fmt.Errorf("prov csv: %w", err)
	}
	provByOCI := make(map[string]map[string]string, len(provRows))
	for _, p := range provRows {
		provByOCI[p["oci"]] = p
	}
	var result []*Citation
	for _, d := range rows {
		p, ok := provByOCI[d["oci"]]
		if !ok {
			return nil, fmt.Errorf("no provenance for oci %s", d["oci"])
		}
		snapshot, err := strconv.Atoi(p["snapshot"])
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot for oci %s: %w", d["oci"], err)
		}
		result = append(result, New(Params{
			OCI:             d["oci"],
			CitingURL:       opts.BaseURL + identifier.Quote(d["citing"]),
			CitedURL:        opts.BaseURL + identifier.Quote(d["cited"]),
			Creation:        d["creation"],
			Timespan:        d["timespan"],
			ProvEntity:      snapshot,
			ProvAgent:       p["agent"],
			Source:          p["source"],
			ProvDate:        p["created"],
			ServiceName:     opts.ServiceName,
			IDType:          opts.IDType,
			IDShape:         opts.IDShape,
			Type:            opts.Type,
			JournalSC:       d["journal_sc"] == "yes",
			AuthorSC:        d["author_sc"] == "yes",
			ProvInvalidated: p["invalidated"],
			ProvDescription: p["description"],
			ProvUpdate:      p["update"],
		}))
	}
	return result, nil
}

var snapshotPattern = regexp.MustCompile(`/se/([0-9]+)$`)

// LoadRDF reads citations back from N-Triples data and N-Quads provenance.
// For each citation the most recent provenance snapshot is used.
func LoadRDF(data, prov io.Reader, opts LoadOptions) ([]*Citation, error) {
	dataQuads, err := ReadTriples(data)
	if err != nil {
		return nil, fmt.Errorf("data rdf: %w", err)
	}
	provQuads, err := ReadQuads(prov)
	if err != nil {
		return nil, fmt.Errorf("prov rdf: %w", err)
	}
	type props map[string][]Term
	var (
		subjects []string
		data_    = make(map[string]props)
		provs    = make(map[string]props)
	)
	for _, q := range dataQuads {
		s := q.S.Value
		if _, ok := data_[s]; !ok {
			data_[s] = make(props)
			subjects = append(subjects, s)
		}
		data_[s][q.P.Value] = append(data_[s][q.P.Value], q.O)
	}
	latest := make(map[string]string) // citation -> snapshot entity
	for _, q := range provQuads {
		s := q.S.Value
		if provs[s] == nil {
			provs[s] = make(props)
		}
		provs[s][q.P.Value] = append(provs[s][q.P.Value], q.O)
	}
	for entity, p := range provs {
		for _, of := range p[ProvSpecializationOf] {
			if cur, ok := latest[of.Value]; !ok || snapshotNumber(entity) > snapshotNumber(cur) {
				latest[of.Value] = entity
			}
		}
	}
	first := func(p props, key string) string {
		if v := p[key]; len(v) > 0 {
			return v[0].Value
		}
		return ""
	}
	var result []*Citation
	for _, s := range subjects {
		d := data_[s]
		var isCitation, authorSC, journalSC bool
		for _, t := range d[rdfType] {
			switch t.Value {
			case CitoCitation:
				isCitation = true
			case CitoAuthorSelfCitation:
				authorSC = true
			case CitoJournalSelfCitation:
				journalSC = true
			}
		}
		if !isCitation {
			continue
		}
		entity, ok := latest[s]
		if !ok {
			return nil, fmt.Errorf("no provenance for %s", s)
		}
		p := provs[entity]
		i := strings.LastIndex(s, "/ci/")
		if i < 0 {
			return nil, fmt.Errorf("not a citation IRI: %s", s)
		}
		result = append(result, New(Params{
			OCI:             s[i+4:],
			CitingURL:       first(d, CitoHasCitingEntity),
			CitedURL:        first(d, CitoHasCitedEntity),
			Creation:        first(d, CitoHasCreationDate),
			Timespan:        first(d, CitoHasTimeSpan),
			ProvEntity:      snapshotNumber(entity),
			ProvAgent:       first(p, ProvWasAttributedTo),
			Source:          first(p, ProvHadPrimarySource),
			ProvDate:        first(p, ProvGeneratedAtTime),
			ServiceName:     opts.ServiceName,
			IDType:          opts.IDType,
			IDShape:         opts.IDShape,
			Type:            opts.Type,
			JournalSC:       journalSC,
			AuthorSC:        authorSC,
			ProvInvalidated: first(p, ProvInvalidatedAtTime),
			ProvDescription: first(p, DctermsDescription),
			ProvUpdate:      first(p, OcoHasUpdateQuery),
		}))
	}
	return result, nil
}

func snapshotNumber(entity string) int {
	m := snapshotPattern.FindStringSubmatch(entity)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// LoadScholix reads citations back from a Scholix JSON array. Links do not
// carry OCI, self-citation flags or provenance details, these are taken
// from opts.
func LoadScholix(r io.Reader, opts LoadOptions) ([]*Citation, error) {
	var links []scholix.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return nil, fmt.Errorf("scholix: %w", err)
	}
	var result []*Citation
	for _, l := range links {
		typ := opts.Type
		if l.RelationshipType.Name == scholix.IsSupplementedBy {
			typ = Supplement
		}
		var service = opts.ServiceName
		if len(l.LinkProvider) > 1 && service == "" {
			service = l.LinkProvider[1].Name
		}
		result = append(result, New(Params{
			OCI:         opts.OCI,
			CitingURL:   l.Source.Identifier.IDURL,
			CitingDate:  l.Source.PublicationDate,
			CitedURL:    l.Target.Identifier.IDURL,
			CitedDate:   l.Target.PublicationDate,
			ProvEntity:  1,
			ProvAgent:   opts.Agent,
			Source:      opts.Source,
			ProvDate:    l.LinkPublicationDate,
			ServiceName: service,
			IDType:      firstNonEmpty(opts.IDType, l.Source.Identifier.IDScheme),
			IDShape:     opts.IDShape,
			Type:        typ,
		}))
	}
	return result, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
