// Package cursor iterates over the rows of a sorted set of input files and
// keeps a checkpoint next to the input, so an interrupted run resumes after
// the last committed row.
package cursor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/opencitations/index-sub000/atomicfile"
	"github.com/opencitations/index-sub000/parser"
	log "github.com/sirupsen/logrus"
)

// SidecarPrefix is the name of the checkpoint file, followed by an optional
// local name, so several cursors can share an input directory.
const SidecarPrefix = ".dir_citation_source"

var (
	ErrNoInput = errors.New("no input files")
	ErrClosed  = errors.New("cursor closed")
)

// State is a position in the input. Row -1 means the file has been opened,
// but no row has been committed yet. File is relative to the input
// directory.
type State struct {
	File string
	Row  int
}

// Cursor walks the files a parser accepts in lexicographic order. Rows
// returned by Next are committed with Commit; after a restart, iteration
// continues with the first row after the last committed one. The checkpoint
// is removed once all files have been read.
type Cursor struct {
	parser  parser.Parser
	dir     string
	files   []string
	sidecar string

	// Manual disables the checkpoints written by Next: when a file is
	// opened and when all files have been read. The caller then owns the
	// checkpoint and writes it with WriteState.
	Manual bool

	pos     int
	opened  bool
	resume  State
	skipTo  int
	current State
	done    bool
	closed  bool
}

// Open creates a cursor over input, which is either a directory, searched
// recursively, or a single file.
func Open(input string, p parser.Parser, localName string) (*Cursor, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	c := &Cursor{parser: p}
	if fi.IsDir() {
		c.dir = input
		c.files, err = List(input, p)
		if err != nil {
			return nil, err
		}
	} else {
		c.dir = filepath.Dir(input)
		if p.IsValid(input) {
			c.files = []string{filepath.Base(input)}
		}
	}
	if err := c.init(localName); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenFiles creates a cursor over some files of dir, given relative to dir.
// The files are read in lexicographic order.
func OpenFiles(dir string, files []string, p parser.Parser, localName string) (*Cursor, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	c := &Cursor{parser: p, dir: dir, files: append([]string(nil), files...)}
	sort.Strings(c.files)
	if err := c.init(localName); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cursor) init(localName string) error {
	var err error
	c.sidecar = filepath.Join(c.dir, SidecarPrefix+localName)
	if c.resume, err = ReadState(c.sidecar); err != nil {
		return err
	}
	if c.resume.File != "" {
		log.WithFields(log.Fields{
			"file": c.resume.File,
			"row":  c.resume.Row,
		}).Info("resuming from checkpoint")
	}
	return nil
}

// List returns the paths of all files below dir accepted by p, relative to
// dir and sorted.
func List(dir string, p parser.Parser) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !p.IsValid(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Files returns the input files, relative to the input directory.
func (c *Cursor) Files() []string {
	return c.files
}

// Sidecar returns the path of the checkpoint file.
func (c *Cursor) Sidecar() string {
	return c.sidecar
}

// Current returns the position of the row last returned by Next.
func (c *Cursor) Current() State {
	return c.current
}

// Next returns the next row with citations, or io.EOF after the last file.
// At io.EOF the checkpoint is removed.
func (c *Cursor) Next() (parser.Row, error) {
	if c.closed {
		return parser.Row{}, ErrClosed
	}
	if c.done {
		return parser.Row{}, io.EOF
	}
	for {
		if !c.opened {
			if c.pos >= len(c.files) {
				return parser.Row{}, c.finish()
			}
			name := c.files[c.pos]
			if c.resume.File != "" && name < c.resume.File {
				c.pos++
				continue
			}
			if err := c.parser.Parse(filepath.Join(c.dir, filepath.FromSlash(name))); err != nil {
				return parser.Row{}, fmt.Errorf("%s: %w", name, err)
			}
			c.opened = true
			c.skipTo = -1
			if name == c.resume.File {
				c.skipTo = c.resume.Row
			}
			c.current = State{File: name, Row: c.skipTo}
			if name != c.resume.File && !c.Manual {
				if err := c.Commit(); err != nil {
					return parser.Row{}, err
				}
			}
		}
		row, err := c.parser.Next()
		if err == io.EOF {
			if err := c.parser.Close(); err != nil {
				return parser.Row{}, err
			}
			c.opened = false
			c.pos++
			continue
		}
		if err != nil {
			return parser.Row{}, fmt.Errorf("%s: %w", c.current.File, err)
		}
		if row.Index <= c.skipTo {
			continue
		}
		c.current.Row = row.Index
		return row, nil
	}
}

// Commit persists the position of the row last returned by Next. It must
// only be called after all citations of that row have been handled.
func (c *Cursor) Commit() error {
	if c.current.File == "" {
		return nil
	}
	return WriteState(c.sidecar, c.current)
}

func (c *Cursor) finish() error {
	c.done = true
	if c.Manual {
		return io.EOF
	}
	if err := os.Remove(c.sidecar); err != nil && !os.IsNotExist(err) {
		return err
	}
	return io.EOF
}

// Close releases the current file. The checkpoint is kept, unless all
// files have been read.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.parser.Close()
}

// ReadState reads a checkpoint file. A missing file yields the zero state.
func ReadState(filename string) (State, error) {
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		return State{}, fmt.Errorf("checkpoint %s: %w", filename, err)
	}
	if len(records) < 2 || len(records[1]) < 2 {
		return State{}, nil
	}
	row, err := strconv.Atoi(records[1][1])
	if err != nil {
		return State{}, fmt.Errorf("checkpoint %s: invalid line: %w", filename, err)
	}
	return State{File: records[1][0], Row: row}, nil
}

// WriteState replaces a checkpoint file with the given state.
func WriteState(filename string, s State) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"file", "line"})
	_ = w.Write([]string{s.File, strconv.Itoa(s.Row)})
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicfile.WriteFile(filename, buf.Bytes(), 0644)
}
