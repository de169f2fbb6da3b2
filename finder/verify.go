package finder

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/opencitations/index-sub000/identifier"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const DefaultORCIDPersonEndpoint = "https://pub.orcid.org/v3.0/"

var namePart = regexp.MustCompile(`[\p{L}'\-]{2,}`)

// AuthorName is an author as listed in a bibliographic record, e.g. "Smith
// JA": lowercased initials and surnames.
type AuthorName struct {
	Initials []string
	Surnames []string
}

// ParseAuthors parses a comma separated author list in PubMed style, e.g.
// "Smith JA, van der Berg K".
func ParseAuthors(s string) []AuthorName {
	var result []AuthorName
	for _, a := range strings.Split(s, ",") {
		var name AuthorName
		for _, tok := range strings.Fields(strings.ReplaceAll(a, ".", " ")) {
			if isInitials(tok) {
				for _, r := range tok {
					name.Initials = append(name.Initials, strings.ToLower(string(r)))
				}
				continue
			}
			for _, p := range namePart.FindAllString(tok, -1) {
				name.Surnames = append(name.Surnames, strings.ToLower(p))
			}
		}
		if len(name.Surnames) > 0 {
			result = append(result, name)
		}
	}
	return result
}

// isInitials reports whether tok looks like "J" or "JA".
func isInitials(tok string) bool {
	if len([]rune(tok)) > 3 {
		return false
	}
	for _, r := range tok {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return tok != ""
}

// MatchPerson reports whether any author has a surname among the family
// name parts and an initial starting one of the given name parts.
func MatchPerson(given, family string, authors []AuthorName) bool {
	familyParts := lowerParts(family)
	givenParts := lowerParts(given)
	for _, a := range authors {
		if !anyIn(a.Surnames, familyParts) {
			continue
		}
		for _, initial := range a.Initials {
			for _, g := range givenParts {
				if strings.HasPrefix(g, initial) && !contains(a.Surnames, g) {
					return true
				}
			}
		}
	}
	return false
}

func lowerParts(s string) []string {
	var result []string
	for _, p := range namePart.FindAllString(s, -1) {
		result = append(result, strings.ToLower(p))
	}
	return result
}

func contains(vs []string, v string) bool {
	for _, w := range vs {
		if w == v {
			return true
		}
	}
	return false
}

func anyIn(vs, set []string) bool {
	for _, v := range vs {
		if contains(set, v) {
			return true
		}
	}
	return false
}

// personResponse is the part of the ORCID person document we need.
type personResponse struct {
	Name struct {
		GivenNames struct {
			Value string `json:"value"`
		} `json:"given-names"`
		FamilyName struct {
			Value string `json:"value"`
		} `json:"family-name"`
	} `json:"name"`
}

// PersonVerifier compares the name registered for an ORCID iD with the
// authors of an entity.
type PersonVerifier struct {
	Client   *Client
	Endpoint string
	Key      string
	// Authors returns the authors of an entity, given as prefixed
	// identifier.
	Authors func(ctx context.Context, id string) ([]AuthorName, error)
}

func (v *PersonVerifier) Verify(ctx context.Context, orcid, id string) (bool, error) {
	o := identifier.ORCIDManager{}.Normalize(orcid, false)
	if o == "" || v.Authors == nil {
		return false, nil
	}
	authors, err := v.Authors(ctx, id)
	if err != nil || len(authors) == 0 {
		return false, err
	}
	endpoint := v.Endpoint
	if endpoint == "" {
		endpoint = DefaultORCIDPersonEndpoint
	}
	header := http.Header{}
	header.Set("Accept", "application/json")
	if v.Key != "" {
		header.Set("Authorization", "Bearer "+v.Key)
	}
	b, err := v.Client.Get(ctx, endpoint+o+"/person", header)
	if err != nil || b == nil {
		return false, err
	}
	var person personResponse
	if err := json.Unmarshal(b, &person); err != nil {
		log.WithFields(log.Fields{"orcid": o, "err": err}).Warn("orcid: cannot decode person")
		return false, nil
	}
	return MatchPerson(person.Name.GivenNames.Value, person.Name.FamilyName.Value, authors), nil
}

var _ AuthorIdentityVerifier = (*PersonVerifier)(nil)
