package glob

import (
	"os"
	"sort"
	"sync"

	"github.com/opencitations/index-sub000/atomicfile"
	"github.com/segmentio/encoding/json"
)

// JournalCache maps journal names to ISSN, so each journal is looked up
// upstream only once. It is persisted as a JSON object.
type JournalCache struct {
	filename string

	mu      sync.Mutex
	entries map[string][]string
	dirty   bool
}

// LoadJournalCache reads a cache file. A missing file yields an empty cache;
// an empty filename a cache that is never saved.
func LoadJournalCache(filename string) (*JournalCache, error) {
	c := &JournalCache{filename: filename, entries: make(map[string][]string)}
	if filename == "" {
		return c, nil
	}
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &c.entries); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the ISSN of a journal and whether the journal is known.
func (c *JournalCache) Get(name string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[name]
	return v, ok
}

func (c *JournalCache) Set(name string, issn []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := append([]string(nil), issn...)
	sort.Strings(v)
	c.entries[name] = v
	c.dirty = true
}

func (c *JournalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the cache, if it changed since the last save.
func (c *JournalCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filename == "" || !c.dirty {
		return nil
	}
	b, err := json.MarshalIndent(c.entries, "", "    ")
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(c.filename, append(b, '\n'), 0644); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
