package storer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opencitations/index-sub000/citation"
	"github.com/opencitations/index-sub000/parser"
)

// Load reads citations back from stored files. CSV and RDF need the data
// and the provenance file, Scholix files need only the data file. Files
// may be compressed.
func Load(dataPath, provPath string, opts citation.LoadOptions) ([]*citation.Citation, error) {
	data, err := parser.Open(dataPath)
	if err != nil {
		return nil, err
	}
	defer data.Close()
	ext := strings.ToLower(filepath.Ext(parser.StripCompression(dataPath)))
	if ext == ".scholix" || ext == ".json" {
		return citation.LoadScholix(data, opts)
	}
	if provPath == "" {
		return nil, fmt.Errorf("%s: provenance file required", dataPath)
	}
	prov, err := parser.Open(provPath)
	if err != nil {
		return nil, err
	}
	defer prov.Close()
	switch ext {
	case ".csv":
		return citation.LoadCSV(data, prov, opts)
	case ".nt", ".nq", ".ttl":
		return citation.LoadRDF(data, prov, opts)
	default:
		return nil, fmt.Errorf("%s: unknown citation file type", dataPath)
	}
}
