// Package storer writes citations to disk in CSV, RDF and Scholix, each in
// its own series of size bounded files:
//
//	<dir>/data/csv/YYYY/MM/<stamp>[_<suffix>]_<seq>.csv
//	<dir>/prov/csv/YYYY/MM/<stamp>[_<suffix>]_<seq>.csv
//	<dir>/data/rdf/YYYY/MM/<stamp>[_<suffix>]_<seq>.nt
//	<dir>/prov/rdf/YYYY/MM/<stamp>[_<suffix>]_<seq>.nq
//	<dir>/data/slx/YYYY/MM/<stamp>[_<suffix>]_<seq>.scholix
//
// Citations are buffered and written on Flush. Writers running in parallel
// must use distinct suffixes.
package storer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jinzhu/now"
	"github.com/opencitations/index-sub000/citation"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultCSVLimit     = 10000000
	DefaultRDFLimit     = 1000000
	DefaultScholixLimit = 5000000

	// StampLayout formats the run time in file names.
	StampLayout = "2006-01-02T150405"
)

// Options configure a storer. Zero limits mean defaults.
type Options struct {
	Dir          string
	BaseURL      string // namespace of RDF citation entities
	CSVLimit     int
	RDFLimit     int
	ScholixLimit int
	Suffix       string
	// Now returns the run time, time.Now by default.
	Now func() time.Time
}

// Storer is not safe for concurrent use.
type Storer struct {
	base    string
	streams []*stream
	csv     *stream
	rdf     *stream
	slx     *stream
	stored  int
}

// New creates the output directories and positions every stream on the
// file to append to: the highest numbered file of the run, unless it is
// full.
func New(opts Options) (*Storer, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BaseURL == "" {
		opts.BaseURL = citation.DefaultBaseURL
	}
	t := opts.Now()
	var (
		month = now.With(t).BeginningOfMonth().Format("2006/01")
		name  = t.Format(StampLayout)
	)
	if opts.Suffix != "" {
		name += "_" + opts.Suffix
	}
	dir := func(kind, format string) string {
		return filepath.Join(opts.Dir, kind, format, filepath.FromSlash(month))
	}
	s := &Storer{base: opts.BaseURL}
	s.csv = &stream{
		dataDir: dir("data", "csv"),
		provDir: dir("prov", "csv"),
		name:    name,
		ext:     "csv",
		provExt: "csv",
		limit:   limit(opts.CSVLimit, DefaultCSVLimit),
		counts:  isCSVCitation,
	}
	s.rdf = &stream{
		dataDir: dir("data", "rdf"),
		provDir: dir("prov", "rdf"),
		name:    name,
		ext:     "nt",
		provExt: "nq",
		limit:   limit(opts.RDFLimit, DefaultRDFLimit),
		counts:  isRDFCitation,
	}
	s.slx = &stream{
		dataDir: dir("data", "slx"),
		name:    name,
		ext:     "scholix",
		limit:   limit(opts.ScholixLimit, DefaultScholixLimit),
		counts:  isScholixCitation,
		array:   true,
	}
	s.streams = []*stream{s.csv, s.rdf, s.slx}
	for _, st := range s.streams {
		if err := st.open(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func limit(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Store buffers a citation in all formats.
func (s *Storer) Store(c *citation.Citation) error {
	if err := s.csv.next(); err != nil {
		return err
	}
	if s.csv.isNew() {
		s.csv.data.WriteString(citation.FormatCSVLine(citation.DataHeader))
		s.csv.prov.WriteString(citation.FormatCSVLine(citation.ProvHeader))
	}
	s.csv.data.WriteString(citation.FormatCSVLine(c.DataRecord()))
	s.csv.prov.WriteString(citation.FormatCSVLine(c.ProvRecord()))
	s.csv.add()

	if err := s.rdf.next(); err != nil {
		return err
	}
	if err := citation.WriteQuads(&s.rdf.data, c.Triples(s.base, citation.RDFOptions{})); err != nil {
		return err
	}
	if err := citation.WriteQuads(&s.rdf.prov, c.ProvQuads(s.base)); err != nil {
		return err
	}
	s.rdf.add()

	if err := s.slx.next(); err != nil {
		return err
	}
	b, err := c.MarshalScholix()
	if err != nil {
		return err
	}
	s.slx.element(b)
	s.slx.add()
	s.stored++
	return nil
}

// Flush writes buffered citations to disk.
func (s *Storer) Flush() error {
	for _, st := range s.streams {
		if err := st.flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes. Files are only open while flushing, so nothing else is
// left to release.
func (s *Storer) Close() error {
	err := s.Flush()
	log.WithField("citations", s.stored).Debug("storer: closed")
	return err
}

// Stored returns the number of citations stored since creation.
func (s *Storer) Stored() int {
	return s.stored
}

// Files returns the current data file of each format, for logging.
func (s *Storer) Files() []string {
	var files []string
	for _, st := range s.streams {
		files = append(files, st.dataPath())
	}
	return files
}

// stream is one series of numbered files, with an optional provenance
// twin.
type stream struct {
	dataDir, provDir string
	name             string
	ext, provExt     string
	limit            int
	counts           func(line []byte) bool
	array            bool // JSON array file

	seq   int
	count int // citations in current file, including buffered ones
	// written is the number of citations already on disk in the current
	// file.
	written    int
	data, prov bytes.Buffer
}

func (st *stream) fileName(seq int, ext string) string {
	return fmt.Sprintf("%s_%d.%s", st.name, seq, ext)
}

func (st *stream) dataPath() string {
	return filepath.Join(st.dataDir, st.fileName(st.seq, st.ext))
}

func (st *stream) provPath() string {
	return filepath.Join(st.provDir, st.fileName(st.seq, st.provExt))
}

// open creates the directories and resumes the highest numbered file.
func (st *stream) open() error {
	for _, d := range []string{st.dataDir, st.provDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	seq, err := highestSeq(st.dataDir, st.name, st.ext)
	if err != nil {
		return err
	}
	st.seq = seq
	n, err := countCitations(st.dataPath(), st.counts)
	if err != nil {
		return err
	}
	if n >= st.limit {
		st.seq++
		n = 0
	}
	st.count, st.written = n, n
	return nil
}

// isNew reports whether the current file has no content yet.
func (st *stream) isNew() bool {
	if st.count > 0 {
		return false
	}
	fi, err := os.Stat(st.dataPath())
	return err != nil || fi.Size() == 0
}

// next rotates to a new file, if the current one is full.
func (st *stream) next() error {
	if st.count < st.limit {
		return nil
	}
	if err := st.flush(); err != nil {
		return err
	}
	st.seq++
	st.count, st.written = 0, 0
	return nil
}

func (st *stream) add() {
	st.count++
}

// element appends a JSON array element to the buffer.
func (st *stream) element(b []byte) {
	if st.data.Len() > 0 || st.written > 0 {
		st.data.WriteString(",")
	}
	st.data.WriteString("\n")
	st.data.Write(b)
}

func (st *stream) flush() error {
	if st.data.Len() == 0 && st.prov.Len() == 0 {
		return nil
	}
	var err error
	if st.array {
		err = appendArray(st.dataPath(), st.data.Bytes())
	} else {
		err = appendFile(st.dataPath(), st.data.Bytes())
	}
	if err != nil {
		return err
	}
	if st.prov.Len() > 0 {
		if err := appendFile(st.provPath(), st.prov.Bytes()); err != nil {
			return err
		}
	}
	st.data.Reset()
	st.prov.Reset()
	st.written = st.count
	return nil
}
