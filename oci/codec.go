package oci

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opencitations/index-sub000/identifier"
)

// Prefix is the scheme token of an OCI string.
const Prefix = "oci:"

// doiShape is removed from DOI bodies before encoding and put back after
// decoding.
const doiShape = "10."

var ErrNotEncodable = errors.New("identifier cannot be encoded")

// Codec turns pairs of identifiers into OCI and back. DOI and PMID bodies
// are encoded through the lookup table; OMID bodies are already numeric and
// are used as they are.
type Codec struct {
	Table *LookupTable
}

// NewCodec returns a codec over the given table.
func NewCodec(t *LookupTable) *Codec {
	return &Codec{Table: t}
}

// EncodeID returns the numeric form of a single identifier, without service
// prefix.
func (c *Codec) EncodeID(id identifier.Identifier) (string, error) {
	if id.IsZero() {
		return "", fmt.Errorf("%w: empty identifier", ErrNotEncodable)
	}
	switch id.Scheme() {
	case identifier.OMID:
		// OMID digits carry their own supplier prefix.
		digits := identifier.OMIDDigits(id.Value())
		if p := SupplierPrefix(digits); p == "" || p == digits {
			return "", fmt.Errorf("%w: %s", ErrNotEncodable, id)
		}
		return digits, nil
	case identifier.DOI:
		return c.Table.Encode(strings.TrimPrefix(id.Value(), doiShape))
	default:
		return c.Table.Encode(id.Value())
	}
}

// DecodeID reverses EncodeID for the given scheme. For OMID, the
// bibliographic resource form "br/<digits>" is assumed.
func (c *Codec) DecodeID(s identifier.Scheme, encoded string) string {
	switch s {
	case identifier.OMID:
		return "br/" + encoded
	case identifier.DOI:
		return doiShape + c.Table.Decode(encoded)
	default:
		return c.Table.Decode(encoded)
	}
}

// OCI builds "oci:<prefix><citing>-<prefix><cited>". OMID halves carry their
// own supplier prefix, so prefix is not repeated for them.
func (c *Codec) OCI(citing, cited identifier.Identifier, prefix string) (string, error) {
	a, err := c.EncodeID(citing)
	if err != nil {
		return "", err
	}
	b, err := c.EncodeID(cited)
	if err != nil {
		return "", err
	}
	if citing.Scheme() == identifier.OMID {
		return Prefix + a + "-" + b, nil
	}
	return Prefix + prefix + a + "-" + prefix + b, nil
}

// Decode splits an OCI and decodes both halves, after removing prefix from
// each half. It returns the citing and cited identifier bodies.
func (c *Codec) Decode(oci string, s identifier.Scheme, prefix string) (citing, cited string, err error) {
	a, b, err := Split(oci)
	if err != nil {
		return "", "", err
	}
	if s != identifier.OMID {
		if !strings.HasPrefix(a, prefix) || !strings.HasPrefix(b, prefix) {
			return "", "", fmt.Errorf("%w: %s does not use prefix %s", ErrInvalidOCI, oci, prefix)
		}
		a, b = a[len(prefix):], b[len(prefix):]
	}
	return c.DecodeID(s, a), c.DecodeID(s, b), nil
}

// Split returns the two halves of an OCI, with or without "oci:" prefix.
func Split(oci string) (citing, cited string, err error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(oci)), Prefix)
	parts := strings.Split(v, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidOCI, oci)
	}
	return parts[0], parts[1], nil
}

// Body returns the OCI without "oci:" prefix.
func Body(oci string) string {
	return strings.TrimPrefix(oci, Prefix)
}
