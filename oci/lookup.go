// Package oci implements Open Citation Identifiers: a growing lookup table
// that maps characters to numeric codes, the codec built on top of it and a
// validator for the service prefixes.
package oci

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const lookupHeader = `"c","code"`

// codePattern splits an encoded string into codes: any run of leading nines
// followed by a two digit tail.
var codePattern = regexp.MustCompile(`9*[0-8][0-9]`)

// LookupTable is an append-only bijection between characters and numeric
// codes, persisted as CSV. It is safe for concurrent use.
type LookupTable struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	code    int
	lookup  map[string]rune // code -> character
	inverse map[rune]string // character -> code
}

// OpenLookupTable reads the table at path, creating an empty table file
// when path does not exist yet. An empty path yields an in-memory table.
func OpenLookupTable(path string) (*LookupTable, error) {
	t := &LookupTable{
		path:    path,
		code:    -1,
		lookup:  make(map[string]rune),
		inverse: make(map[rune]string),
	}
	if path == "" {
		return t, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(lookupHeader), 0644); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if err := t.load(); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	t.f = f
	return t, nil
}

func (t *LookupTable) load() error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var header = true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if header {
			header = false
			continue
		}
		if len(record) != 2 {
			return fmt.Errorf("expected 2 fields, got %d", len(record))
		}
		runes := []rune(record[0])
		if len(runes) != 1 {
			return fmt.Errorf("invalid character entry %q", record[0])
		}
		code, err := strconv.Atoi(record[1])
		if err != nil {
			return fmt.Errorf("invalid code %q: %w", record[1], err)
		}
		t.lookup[record[1]] = runes[0]
		t.inverse[runes[0]] = record[1]
		t.code = code
	}
	return nil
}

// nextCode advances the code counter. After a code ending in 89 the next
// code gains a digit: 89 is followed by 900, 989 by 9900.
func (t *LookupTable) nextCode() string {
	next := t.code + 1
	if t.code%100 == 89 {
		next = next * 10
	}
	t.code = next
	return fmt.Sprintf("%02d", next)
}

// codeFor returns the code for c, allocating and persisting a new code if
// c has not been seen before. Caller must hold the lock.
func (t *LookupTable) codeFor(c rune) (string, error) {
	if code, ok := t.inverse[c]; ok {
		return code, nil
	}
	prev := t.code
	code := t.nextCode()
	if t.f != nil {
		if err := t.append(c, code); err != nil {
			t.code = prev
			return "", err
		}
	}
	t.inverse[c] = code
	t.lookup[code] = c
	return code, nil
}

func (t *LookupTable) append(c rune, code string) error {
	entry := `"` + strings.ReplaceAll(string(c), `"`, `""`) + `","` + code + `"`
	if _, err := io.WriteString(t.f, "\n"+entry); err != nil {
		return err
	}
	return t.f.Sync()
}

// Encode replaces every character of s with its code.
func (t *LookupTable) Encode(s string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, c := range s {
		code, err := t.codeFor(c)
		if err != nil {
			return "", err
		}
		b.WriteString(code)
	}
	return b.String(), nil
}

// Decode maps codes back to characters. Unknown codes are kept literally.
func (t *LookupTable) Decode(s string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, code := range codePattern.FindAllString(s, -1) {
		if c, ok := t.lookup[code]; ok {
			b.WriteRune(c)
		} else {
			b.WriteString(code)
		}
	}
	return b.String()
}

// Code returns the code of a character, if known.
func (t *LookupTable) Code(c rune) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	code, ok := t.inverse[c]
	return code, ok
}

// Entry is a single row of the table.
type Entry struct {
	Char rune
	Code string
}

// Entries returns all rows in code order.
func (t *LookupTable) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var entries []Entry
	for code, c := range t.lookup {
		entries = append(entries, Entry{Char: c, Code: code})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Code, entries[j].Code
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return entries
}

// Len returns the number of characters in the table.
func (t *LookupTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lookup)
}

// Close releases the underlying file.
func (t *LookupTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}
