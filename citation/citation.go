// Package citation implements the citation model of the index: a citation
// between two bibliographic entities, its temporal attributes, provenance
// and the CSV, RDF and Scholix serializations.
package citation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/opencitations/index-sub000/dateutil"
	"github.com/opencitations/index-sub000/identifier"
)

// Type is the citation type.
type Type string

const (
	Reference  Type = "reference"
	Supplement Type = "supplement"
)

const (
	// DefaultBaseURL is the IRI namespace used for citation entities.
	DefaultBaseURL = "https://w3id.org/oc/virtual/"
	// AgentName is the first link provider of every Scholix link.
	AgentName = "OpenCitations"
	// DefaultDescription is the provenance description of new citations.
	DefaultDescription = "Creation of the citation"

	decodeToken = "XXX__decode]]"
)

// Shape returns an identifier shape for a base URL, e.g.
// "https://doi.org/([[XXX__decode]])".
func Shape(baseURL string) string {
	return baseURL + "([[XXX__decode]])"
}

// Params are the constructor arguments of a citation. Dates and durations
// are checked and reconciled by New, anything invalid is dropped.
type Params struct {
	OCI        string
	CitingURL  string
	CitingDate string
	CitedURL   string
	CitedDate  string
	Creation   string
	Timespan   string

	ProvEntity      int
	ProvAgent       string
	Source          string
	ProvDate        string
	ServiceName     string
	IDType          string
	IDShape         string
	Type            Type
	JournalSC       bool
	AuthorSC        bool
	ProvInvalidated string
	ProvDescription string
	ProvUpdate      string
}

// Citation is an immutable citation record. Empty strings stand for missing
// values.
type Citation struct {
	OCI        string // with "oci:" prefix
	CitingURL  string
	CitedURL   string
	CitingDate string
	CitedDate  string
	Creation   string
	Duration   string
	JournalSC  bool
	AuthorSC   bool
	Type       Type

	ProvEntity      int
	ProvAgent       string
	Source          string
	ProvDate        string
	ServiceName     string
	IDType          string
	IDShape         string
	ProvInvalidated string
	ProvDescription string
	ProvUpdate      string
}

// New builds a citation, reconciling publication dates, creation date and
// timespan:
//
//  1. a missing citing date is taken from the creation date;
//  2. a missing cited date is derived from creation date and timespan;
//  3. without a cited date there is no timespan;
//  4. with both dates, the creation date is the citing date and the
//     timespan is recomputed at the granularity both dates share.
func New(p Params) *Citation {
	c := &Citation{
		OCI:        normalizeOCI(p.OCI),
		CitingURL:  p.CitingURL,
		CitedURL:   p.CitedURL,
		Duration:   dateutil.CheckDuration(p.Timespan),
		Creation:   dateutil.CheckDate(p.Creation),
		CitingDate: dateutil.CheckDate(p.CitingDate),
		CitedDate:  dateutil.CheckDate(p.CitedDate),
		JournalSC:  p.JournalSC,
		AuthorSC:   p.AuthorSC,
		Type:       p.Type,
	}
	if c.Type != Reference && c.Type != Supplement {
		c.Type = Reference
	}
	if c.CitingDate == "" && c.Creation != "" {
		c.CitingDate = c.Creation
	}
	if c.CitedDate == "" && c.Creation != "" && c.Duration != "" {
		c.CitedDate = dateutil.CheckDate(dateutil.Subtract(c.Creation, c.Duration))
	}
	if c.CitedDate == "" {
		c.Duration = ""
	}
	if dateutil.HasYear(c.CitingDate) {
		c.Creation = c.CitingDate
		if dateutil.HasYear(c.CitedDate) {
			c.Duration = dateutil.Span(c.CitingDate, c.CitedDate)
		}
	}

	c.ProvEntity = p.ProvEntity
	c.ProvAgent = p.ProvAgent
	c.ProvDate = dateutil.CheckDatetime(p.ProvDate)
	c.ServiceName = p.ServiceName
	c.ProvInvalidated = dateutil.CheckDatetime(p.ProvInvalidated)
	c.ProvDescription = checkString(p.ProvDescription)
	c.ProvUpdate = checkString(p.ProvUpdate)
	c.IDType = p.IDType
	c.IDShape = p.IDShape

	c.Source = p.Source
	switch {
	case strings.Contains(c.Source, "[[citing]]"):
		c.Source = strings.ReplaceAll(c.Source, "[[citing]]", identifier.Quote(c.CitingID()))
	case strings.Contains(c.Source, "[[cited]]"):
		c.Source = strings.ReplaceAll(c.Source, "[[cited]]", identifier.Quote(c.CitedID()))
	}
	return c
}

func normalizeOCI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || strings.HasPrefix(s, "oci:") {
		return s
	}
	return "oci:" + s
}

// checkString returns s, if it has any non-space content.
func checkString(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// Body returns the OCI without "oci:" prefix.
func (c *Citation) Body() string {
	return strings.TrimPrefix(c.OCI, "oci:")
}

// CitingID and CitedID extract the identifiers from the entity URLs.
func (c *Citation) CitingID() string { return c.ID(c.CitingURL) }
func (c *Citation) CitedID() string  { return c.ID(c.CitedURL) }

// ID extracts the identifier from an entity URL according to the identifier
// shape of the citation. A shape like "https://doi.org/([[XXX__decode]])"
// captures everything after the base URL and percent-decodes it.
func (c *Citation) ID(entityURL string) string {
	if entityURL == "" || c.IDShape == "" {
		return entityURL
	}
	re := shapeRegexp(c.IDShape)
	if re == nil {
		return entityURL
	}
	token := re.ReplaceAllString(entityURL, "${1}")
	if strings.Contains(c.IDShape, decodeToken) {
		return identifier.Unquote(token)
	}
	return token
}

var (
	shapePlaceholder = regexp.MustCompile(`\[\[[^\]]+\]\]`)
	shapeCache       sync.Map // shape -> *regexp.Regexp
)

func shapeRegexp(shape string) *regexp.Regexp {
	if v, ok := shapeCache.Load(shape); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile(shapePlaceholder.ReplaceAllString(shape, ".+"))
	if err != nil {
		return nil
	}
	shapeCache.Store(shape, re)
	return re
}

// YesNo renders a self-citation flag.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Equal reports whether two citations carry the same data and provenance.
func (c *Citation) Equal(o *Citation) bool {
	return *c == *o
}
