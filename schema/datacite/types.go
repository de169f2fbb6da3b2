// Package datacite contains the parts of DataCite DOI metadata used for
// citation extraction, in the JSON:API layout of the DataCite REST API and
// of its NDJSON dumps.
package datacite

import (
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
)

// NameIdentifier is an identifier of a creator or contributor, e.g. an ORCID.
type NameIdentifier struct {
	NameIdentifier       string `json:"nameIdentifier"`
	NameIdentifierScheme string `json:"nameIdentifierScheme"`
	SchemeUri            string `json:"schemeUri"`
}

type Creator struct {
	FamilyName      string           `json:"familyName"`
	GivenName       string           `json:"givenName"`
	Name            string           `json:"name"`
	NameIdentifiers []NameIdentifier `json:"nameIdentifiers"`
	NameType        string           `json:"nameType"`
}

type RelatedIdentifier struct {
	RelatedIdentifier     string `json:"relatedIdentifier"`
	RelatedIdentifierType string `json:"relatedIdentifierType"`
	RelationType          string `json:"relationType"`
}

type Attributes struct {
	DOI       string    `json:"doi"`
	Creators  []Creator `json:"creators"`
	Container struct {
		Type           string `json:"type"`
		Identifier     string `json:"identifier"`
		IdentifierType string `json:"identifierType"`
		Title          string `json:"title"`
	} `json:"container"`
	Dates []struct {
		Date     string `json:"date"`
		DateType string `json:"dateType"`
	} `json:"dates"`
	// PublicationYear is a number in the API and sometimes a string in dumps.
	PublicationYear    json.RawMessage     `json:"publicationYear"`
	RelatedIdentifiers []RelatedIdentifier `json:"relatedIdentifiers"`
	Types              struct {
		Citeproc            string `json:"citeproc"`
		ResourceTypeGeneral string `json:"resourceTypeGeneral"`
		SchemaOrg           string `json:"schemaOrg"`
	} `json:"types"`
	State string `json:"state"`
}

// Year returns the publication year as a string, or the empty string.
func (a *Attributes) Year() string {
	s := strings.Trim(string(a.PublicationYear), `" `)
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	return s
}

// IssuedDate returns the first date with type "Issued", if any.
func (a *Attributes) IssuedDate() string {
	for _, d := range a.Dates {
		if d.DateType == "Issued" {
			return d.Date
		}
	}
	return ""
}

// IsJournal reports whether the record is part of a journal.
func (a *Attributes) IsJournal() bool {
	return strings.Contains(strings.ToLower(a.Types.Citeproc), "journal")
}

// ContainerISSN returns the container identifier, if it is an ISSN.
func (a *Attributes) ContainerISSN() string {
	if strings.EqualFold(a.Container.IdentifierType, "ISSN") {
		return a.Container.Identifier
	}
	return ""
}

// ORCIDs returns the raw ORCID name identifiers of all creators.
func (a *Attributes) ORCIDs() []string {
	var result []string
	for _, c := range a.Creators {
		for _, n := range c.NameIdentifiers {
			if strings.EqualFold(n.NameIdentifierScheme, "ORCID") {
				result = append(result, n.NameIdentifier)
			}
		}
	}
	return result
}

// Document is a single DOI record.
type Document struct {
	Attributes Attributes `json:"attributes"`
	ID         string     `json:"id"`
	Type       string     `json:"type"`
}

// Page is a list of records, as returned by the API and found in some dumps.
type Page struct {
	Data []Document `json:"data"`
}

// Response wraps a single record returned by the API.
type Response struct {
	Data Document `json:"data"`
}
