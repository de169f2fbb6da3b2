// Package index holds build information shared by the ocindex tools.
package index

const (
	// Version of the ocindex tools.
	Version = "0.3.1"
	// AppName is used for default directories, e.g. under XDG_CACHE_HOME.
	AppName = "ocindex"
	// UserAgent is sent with every request to upstream services.
	UserAgent = "ocindex/" + Version + " (https://opencitations.net; mailto:contact@opencitations.net)"
)
