package citation

import (
	"bytes"

	"github.com/opencitations/index-sub000/schema/scholix"
	"github.com/segmentio/encoding/json"
)

// Scholix returns the citation as a Scholix link.
func (c *Citation) Scholix() scholix.Link {
	rel := scholix.References
	if c.Type == Supplement {
		rel = scholix.IsSupplementedBy
	}
	return scholix.Link{
		LinkPublicationDate: c.ProvDate,
		LinkProvider:        []scholix.Name{{Name: AgentName}, {Name: c.ServiceName}},
		RelationshipType:    scholix.Name{Name: rel},
		LicenseURL:          scholix.CC0,
		Source: scholix.Object{
			Identifier: scholix.Identifier{
				ID:       c.CitingID(),
				IDScheme: c.IDType,
				IDURL:    c.CitingURL,
			},
			Type:            scholix.Name{Name: scholix.Literature},
			PublicationDate: c.CitingDate,
		},
		Target: scholix.Object{
			Identifier: scholix.Identifier{
				ID:       c.CitedID(),
				IDScheme: c.IDType,
				IDURL:    c.CitedURL,
			},
			Type:            scholix.Name{Name: scholix.Literature},
			PublicationDate: c.CitedDate,
		},
	}
}

// MarshalScholix renders the Scholix link as a single line of JSON,
// without trailing newline.
func (c *Citation) MarshalScholix() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c.Scholix()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
