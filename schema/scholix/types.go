// Package scholix contains the Scholix link information package, as
// documented in http://www.scholix.org/schema.
package scholix

const (
	References       = "References"
	IsSupplementedBy = "IsSupplementedBy"
	Literature       = "literature"
	CC0              = "https://creativecommons.org/publicdomain/zero/1.0/legalcode"
)

type Name struct {
	Name string `json:"Name"`
}

type Identifier struct {
	ID       string `json:"ID"`
	IDScheme string `json:"IDScheme"`
	IDURL    string `json:"IDURL"`
}

// Object is the source or target of a link.
type Object struct {
	Identifier      Identifier `json:"Identifier"`
	Type            Name       `json:"Type"`
	PublicationDate string     `json:"PublicationDate,omitempty"`
}

// Link is a single Scholix link between two objects.
type Link struct {
	LinkPublicationDate string `json:"LinkPublicationDate"`
	LinkProvider        []Name `json:"LinkProvider"`
	RelationshipType    Name   `json:"RelationshipType"`
	LicenseURL          string `json:"LicenseURL"`
	Source              Object `json:"Source"`
	Target              Object `json:"Target"`
}
