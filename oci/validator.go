package oci

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/opencitations/index-sub000/identifier"
)

var (
	ErrInvalidOCI     = errors.New("invalid oci")
	ErrUnknownService = errors.New("unknown service prefix")

	ociPattern    = regexp.MustCompile(`^oci:0[1-9]+0[0-9]+-0[1-9]+0[0-9]+$`)
	halfPattern   = regexp.MustCompile(`^0[1-9]+0[0-9]+$`)
	prefixPattern = regexp.MustCompile(`^0[1-9]+0`)
)

// Service describes one citation index and the supplier prefix it writes
// into its OCI.
type Service struct {
	Name   string            `yaml:"name" json:"name"`
	Prefix string            `yaml:"prefix" json:"prefix"`
	Scheme identifier.Scheme `yaml:"scheme" json:"scheme"`
}

// Matches reports whether an extracted supplier prefix belongs to the
// service. OMID services match every supplier prefix starting with their
// own, since OMID carry the supplier of the Meta instance that minted them.
func (s Service) Matches(supplier string) bool {
	if s.Scheme == identifier.OMID {
		return strings.HasPrefix(supplier, s.Prefix)
	}
	return supplier == s.Prefix
}

// DefaultServices are the known citation indexes.
var DefaultServices = []Service{
	{Name: "COCI", Prefix: "020", Scheme: identifier.DOI},
	{Name: "DOCI", Prefix: "080", Scheme: identifier.DOI},
	{Name: "NOCI", Prefix: "0160", Scheme: identifier.PMID},
	{Name: "CROCI", Prefix: "050", Scheme: identifier.DOI},
	{Name: "INDEX", Prefix: "06", Scheme: identifier.OMID},
}

// Validator checks the syntax of OCI and that both halves were minted by
// the same configured service.
type Validator struct {
	Services []Service
}

// NewValidator returns a validator for the given services, or for the
// default services if none are given.
func NewValidator(services ...Service) *Validator {
	if len(services) == 0 {
		services = DefaultServices
	}
	return &Validator{Services: services}
}

// IsWellFormed only checks the syntax of a prefixed OCI.
func IsWellFormed(oci string) bool {
	return ociPattern.MatchString(oci)
}

// SupplierPrefix extracts the supplier prefix of an OCI half, e.g. "020"
// from "02001000308".
func SupplierPrefix(half string) string {
	return prefixPattern.FindString(half)
}

// Validate returns the service that minted oci, or an error.
func (v *Validator) Validate(oci string) (Service, error) {
	a, b, err := Split(oci)
	if err != nil {
		return Service{}, err
	}
	if !halfPattern.MatchString(a) || !halfPattern.MatchString(b) {
		return Service{}, fmt.Errorf("%w: %q", ErrInvalidOCI, oci)
	}
	pa, pb := SupplierPrefix(a), SupplierPrefix(b)
	for _, s := range v.Services {
		if s.Matches(pa) && s.Matches(pb) {
			return s, nil
		}
	}
	return Service{}, fmt.Errorf("%w: %s-%s", ErrUnknownService, pa, pb)
}

// ServiceByName looks up a service case-insensitively.
func (v *Validator) ServiceByName(name string) (Service, bool) {
	for _, s := range v.Services {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Service{}, false
}
