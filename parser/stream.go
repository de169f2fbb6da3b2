package parser

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// arrayStream yields the raw elements of a JSON array one at a time, so
// large dump files are never held in memory as a whole.
//
// The decoder cannot resynchronize after a syntax error, so malformed JSON
// ends the stream: the error is logged and the rest of the file skipped.
// Read errors of the underlying file are returned.
type arrayStream struct {
	name string
	dec  *stdjson.Decoder
	done bool
}

// newArrayStream expects a top level array, or, if key is not empty, a top
// level object holding the array under key. A missing key yields an empty
// stream. Name is only used for logging.
func newArrayStream(r io.Reader, key, name string) (*arrayStream, error) {
	s := &arrayStream{name: name, dec: stdjson.NewDecoder(r)}
	if err := s.open(key); err != nil {
		if !isMalformed(err) {
			return nil, err
		}
		s.skipRest(err)
	}
	return s, nil
}

func (s *arrayStream) open(key string) error {
	tok, err := s.dec.Token()
	if err == io.EOF {
		s.done = true
		return nil
	}
	if err != nil {
		return err
	}
	if key == "" {
		if tok != stdjson.Delim('[') {
			return errShape{fmt.Errorf("expected array, got %v", tok)}
		}
		return nil
	}
	if tok != stdjson.Delim('{') {
		return errShape{fmt.Errorf("expected object, got %v", tok)}
	}
	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		if k, ok := tok.(string); ok && k == key {
			tok, err := s.dec.Token()
			if err != nil {
				return err
			}
			if tok != stdjson.Delim('[') {
				return errShape{fmt.Errorf("expected array for %q, got %v", key, tok)}
			}
			return nil
		}
		var skip stdjson.RawMessage
		if err := s.dec.Decode(&skip); err != nil {
			return err
		}
	}
	s.done = true
	return nil
}

// next returns the next element, or io.EOF after the last one.
func (s *arrayStream) next() ([]byte, error) {
	if s.done || !s.dec.More() {
		s.done = true
		return nil, io.EOF
	}
	var raw stdjson.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		if !isMalformed(err) {
			return nil, err
		}
		s.skipRest(err)
		return nil, io.EOF
	}
	return raw, nil
}

func (s *arrayStream) skipRest(err error) {
	s.done = true
	log.WithFields(log.Fields{
		"file":   s.name,
		"offset": s.dec.InputOffset(),
		"err":    err,
	}).Warn("malformed json, skipping rest of file")
}

// errShape is valid JSON of the wrong shape.
type errShape struct{ error }

func isMalformed(err error) bool {
	var (
		syntax *stdjson.SyntaxError
		shape  errShape
	)
	return errors.As(err, &syntax) || errors.As(err, &shape) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
