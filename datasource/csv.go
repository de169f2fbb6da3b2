package datasource

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Table files of the CSV backend. Each holds "id","value" rows; an id may
// occur many times, validity, date and omid are last-wins, issn and orcid
// accumulate.
const (
	ValidFile = "valid_id.csv"
	DateFile  = "id_date.csv"
	ISSNFile  = "id_issn.csv"
	ORCIDFile = "id_orcid.csv"
	OMIDFile  = "id_omid.csv"
	SeenFile  = "oci.csv"
)

var (
	tableFiles = []string{ValidFile, DateFile, ISSNFile, ORCIDFile, OMIDFile}
	allFiles   = []string{ValidFile, DateFile, ISSNFile, ORCIDFile, OMIDFile, SeenFile}
)

// CSV keeps all data in memory and appends every change to a set of CSV
// files in a directory. Files are never rewritten, so a record can only
// gain ISSN and ORCID values.
type CSV struct {
	dir string

	mu     sync.Mutex
	mem    *Memory
	files  map[string]*os.File
	w      map[string]*bufio.Writer
	closed bool
}

// OpenCSV loads the tables from dir, creating it if necessary.
func OpenCSV(dir string) (*CSV, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv datasource: empty directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	c := &CSV{
		dir:   dir,
		mem:   NewMemory(),
		files: make(map[string]*os.File),
		w:     make(map[string]*bufio.Writer),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	for _, name := range allFiles {
		filename := filepath.Join(dir, name)
		fi, err := os.Stat(filename)
		isNew := os.IsNotExist(err) || (err == nil && fi.Size() == 0)
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			c.closeFiles()
			return nil, err
		}
		c.files[name] = f
		c.w[name] = bufio.NewWriter(f)
		if isNew {
			header := `"id","value"` + "\n"
			if name == SeenFile {
				header = `"oci"` + "\n"
			}
			if _, err := c.w[name].WriteString(header); err != nil {
				c.closeFiles()
				return nil, err
			}
		}
	}
	if err := c.flush(); err != nil {
		c.closeFiles()
		return nil, err
	}
	return c, nil
}

// readTable calls fn for every data row of a table file. A missing file is
// empty.
func readTable(filename string, fn func(row []string)) error {
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	header := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		if header {
			header = false
			continue
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		fn(row)
	}
}

func (c *CSV) load() error {
	records := c.mem.records
	get := func(id string) Record {
		return records[id]
	}
	apply := map[string]func(id, v string){
		ValidFile: func(id, v string) {
			r := get(id)
			r.Valid = v == "v"
			records[id] = r
		},
		DateFile: func(id, v string) {
			r := get(id)
			r.Date = v
			records[id] = r
		},
		ISSNFile: func(id, v string) {
			r := get(id)
			r.ISSN = union(r.ISSN, []string{v})
			records[id] = r
		},
		ORCIDFile: func(id, v string) {
			r := get(id)
			r.ORCID = union(r.ORCID, []string{v})
			records[id] = r
		},
		OMIDFile: func(id, v string) {
			r := get(id)
			r.OMID = v
			records[id] = r
		},
	}
	for _, name := range tableFiles {
		fn := apply[name]
		err := readTable(filepath.Join(c.dir, name), func(row []string) {
			var v string
			if len(row) > 1 {
				v = row[1]
			}
			fn(row[0], v)
		})
		if err != nil {
			return err
		}
	}
	return readTable(filepath.Join(c.dir, SeenFile), func(row []string) {
		c.mem.seen[row[0]] = struct{}{}
	})
}

// writeRow appends a quoted row to a table buffer.
func (c *CSV) writeRow(name string, fields ...string) error {
	w := c.w[name]
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(f)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func quote(s string) string {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			b = append(b, '"')
		}
		b = append(b, s[i])
	}
	return string(append(b, '"'))
}

// set appends the difference between the stored record and r and returns
// the record as it reads back from the files.
func (c *CSV) set(key string, r Record) (Record, error) {
	old, exists := c.mem.records[key]
	if !exists || old.Valid != r.Valid {
		v := "i"
		if r.Valid {
			v = "v"
		}
		if err := c.writeRow(ValidFile, key, v); err != nil {
			return old, err
		}
	}
	result := old.Clone()
	result.Valid = r.Valid
	if r.Date != "" && r.Date != old.Date {
		if err := c.writeRow(DateFile, key, r.Date); err != nil {
			return old, err
		}
		result.Date = r.Date
	}
	if r.OMID != "" && r.OMID != old.OMID {
		if err := c.writeRow(OMIDFile, key, r.OMID); err != nil {
			return old, err
		}
		result.OMID = r.OMID
	}
	for _, v := range r.ISSN {
		if v == "" || contains(old.ISSN, v) {
			continue
		}
		if err := c.writeRow(ISSNFile, key, v); err != nil {
			return old, err
		}
	}
	for _, v := range r.ORCID {
		if v == "" || contains(old.ORCID, v) {
			continue
		}
		if err := c.writeRow(ORCIDFile, key, v); err != nil {
			return old, err
		}
	}
	result.ISSN = union(result.ISSN, r.ISSN)
	result.ORCID = union(result.ORCID, r.ORCID)
	return result, nil
}

func (c *CSV) flush() error {
	for _, name := range allFiles {
		if err := c.w[name].Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CSV) Get(ctx context.Context, key string) (*Record, error) {
	return c.mem.Get(ctx, key)
}

func (c *CSV) MGet(ctx context.Context, keys []string) (map[string]Record, error) {
	return c.mem.MGet(ctx, keys)
}

func (c *CSV) Set(ctx context.Context, key string, r Record) error {
	return c.MSet(ctx, map[string]Record{key: r})
}

func (c *CSV) MSet(_ context.Context, records map[string]Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	for k, r := range records {
		updated, err := c.set(k, r)
		if err != nil {
			return err
		}
		c.mem.records[k] = updated
	}
	return c.flush()
}

func (c *CSV) SetIfAbsent(_ context.Context, oci string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	if _, ok := c.mem.seen[oci]; ok {
		return false, nil
	}
	if err := c.writeRow(SeenFile, oci); err != nil {
		return false, err
	}
	if err := c.w[SeenFile].Flush(); err != nil {
		return false, err
	}
	c.mem.seen[oci] = struct{}{}
	return true, nil
}

func (c *CSV) Scan(ctx context.Context, fn func(key string, r Record) error) error {
	return c.mem.Scan(ctx, fn)
}

func (c *CSV) ScanSeen(ctx context.Context, fn func(oci string) error) error {
	return c.mem.ScanSeen(ctx, fn)
}

func (c *CSV) closeFiles() error {
	var first error
	for _, f := range c.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.flush(); err != nil {
		c.closeFiles()
		return err
	}
	return c.closeFiles()
}

var _ DataSource = (*CSV)(nil)
