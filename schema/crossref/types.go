// Package crossref contains the parts of Crossref work metadata used for
// citation extraction, as found in the public data file (one JSON document
// with an items array per file) and in the REST API.
package crossref

import (
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
)

// DatePart is one element of date-parts, e.g. [2019, 5, 1]. Elements are
// usually numbers, sometimes strings or null.
type DatePart []json.RawMessage

// Ints returns the numeric parts. Elements that are not numbers default to
// one, so the length of the result matches the length of the date part.
func (p DatePart) Ints() []int {
	var result []int
	for i, raw := range p {
		if i == 3 {
			break
		}
		v := 1
		s := strings.Trim(string(raw), `" `)
		if n, err := strconv.Atoi(s); err == nil {
			v = n
		}
		result = append(result, v)
	}
	return result
}

// Date is a Crossref date object.
type Date struct {
	DateParts []DatePart `json:"date-parts,omitempty"`
	DateTime  string     `json:"date-time,omitempty"`
}

// First returns the first date part, if any.
func (d Date) First() []int {
	if len(d.DateParts) == 0 {
		return nil
	}
	return d.DateParts[0].Ints()
}

// Author is a crossref author.
type Author struct {
	Family             string `json:"family,omitempty"`
	Given              string `json:"given,omitempty"`
	Sequence           string `json:"sequence,omitempty"`
	ORCID              string `json:"ORCID,omitempty"`
	AuthenticatedORCID bool   `json:"authenticated-orcid"`
}

// Reference is an entry of the reference list of a work.
type Reference struct {
	Key           string `json:"key,omitempty"`
	DOI           string `json:"DOI,omitempty"`
	DOIAssertedBy string `json:"doi-asserted-by,omitempty"`
	Year          string `json:"year,omitempty"`
	JournalTitle  string `json:"journal-title,omitempty"`
	ISSN          string `json:"ISSN,omitempty"`
	Unstructured  string `json:"unstructured,omitempty"`
}

// Work is a crossref API works document, as documented in
// https://www.crossref.org/documentation/retrieve-metadata/rest-api/. This
// struct only contains the message part, and only the fields we need.
type Work struct {
	DOI            string      `json:"DOI"`
	Type           string      `json:"type,omitempty"`
	ISSN           []string    `json:"ISSN,omitempty"`
	ContainerTitle []string    `json:"container-title,omitempty"`
	Author         []Author    `json:"author,omitempty"`
	Issued         Date        `json:"issued"`
	Published      Date        `json:"published,omitempty"`
	Reference      []Reference `json:"reference,omitempty"`
	ReferenceCount int64       `json:"reference-count,omitempty"`
}

// IsJournal reports whether the work type is a journal type, e.g.
// "journal-article" or "journal-issue".
func (w *Work) IsJournal() bool {
	return strings.Contains(w.Type, "journal")
}

// Snapshot is the layout of a single file of the Crossref public data file.
type Snapshot struct {
	Items []Work `json:"items"`
}

// Response wraps a single work returned by the REST API.
type Response struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}
