package parser

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// file keeps the state shared by all parsers: the open reader and the index
// of the next record.
type file struct {
	name  string
	rc    io.ReadCloser
	index int
}

func (f *file) open(filename string) (io.Reader, error) {
	if err := f.Close(); err != nil {
		return nil, err
	}
	rc, err := Open(filename)
	if err != nil {
		return nil, err
	}
	f.name, f.rc, f.index = filename, rc, 0
	return rc, nil
}

// Close closes the current file, if any.
func (f *file) Close() error {
	if f.rc == nil {
		return nil
	}
	err := f.rc.Close()
	f.rc = nil
	return err
}

func (f *file) skip(index int, err error) {
	log.WithFields(log.Fields{
		"file": f.name,
		"row":  index,
		"err":  err,
	}).Warn("skipping record")
}
