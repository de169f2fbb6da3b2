package parser

import (
	"errors"
	"io"

	"github.com/opencitations/index-sub000/schema/crossref"
	"github.com/opencitations/index-sub000/schema/datacite"
	"github.com/segmentio/encoding/json"
)

// The Each functions iterate over the raw records of a dump file, for
// consumers needing more than citation tuples. Malformed records are
// logged and skipped, an error returned by fn stops the iteration.

// EachCrossrefWork calls fn for every work of a Crossref data file.
func EachCrossrefWork(filename string, fn func(index int, w *crossref.Work) error) error {
	p := NewCrossref()
	if err := p.Parse(filename); err != nil {
		return err
	}
	defer p.Close()
	for {
		raw, err := p.stream.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		index := p.index
		p.index++
		var work crossref.Work
		if err := json.Unmarshal(raw, &work); err != nil {
			p.skip(index, err)
			continue
		}
		if err := fn(index, &work); err != nil {
			return err
		}
	}
}

// EachDataCiteRecord calls fn for every record of a DataCite dump.
func EachDataCiteRecord(filename string, fn func(index int, a *datacite.Attributes) error) error {
	p := NewDataCite()
	if err := p.Parse(filename); err != nil {
		return err
	}
	defer p.Close()
	for {
		raw, err := p.read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		index := p.index
		p.index++
		doc, err := decodeDataCite(raw)
		if err != nil {
			p.skip(index, err)
			continue
		}
		if err := fn(index, &doc.Attributes); err != nil {
			return err
		}
	}
}

// EachNIHRow calls fn for every row of an iCite metadata file. Column
// names are lowercased.
func EachNIHRow(filename string, fn func(index int, row map[string]string) error) error {
	p := NewNIH()
	if err := p.Parse(filename); err != nil {
		return err
	}
	defer p.Close()
	for {
		row, err := p.rows.next()
		if err == io.EOF {
			return nil
		}
		index := p.index
		p.index++
		if err != nil {
			var skip Skip
			if errors.As(err, &skip) {
				p.skip(index, err)
				continue
			}
			return err
		}
		if err := fn(index, row); err != nil {
			return err
		}
	}
}
