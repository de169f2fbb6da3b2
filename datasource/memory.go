package datasource

import (
	"context"
	"sync"
)

// Memory keeps everything in maps. It is used in tests, for small runs and
// as the in-process state of the CSV backend.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	seen    map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		seen:    make(map[string]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

func (m *Memory) MGet(_ context.Context, keys []string) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]Record, len(keys))
	for _, k := range keys {
		if r, ok := m.records[k]; ok {
			result[k] = r.Clone()
		}
	}
	return result, nil
}

func (m *Memory) Set(_ context.Context, key string, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = r.Clone()
	return nil
}

func (m *Memory) MSet(_ context.Context, records map[string]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range records {
		m.records[k] = r.Clone()
	}
	return nil
}

func (m *Memory) SetIfAbsent(_ context.Context, oci string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[oci]; ok {
		return false, nil
	}
	m.seen[oci] = struct{}{}
	return true, nil
}

func (m *Memory) Scan(ctx context.Context, fn func(key string, r Record) error) error {
	m.mu.RLock()
	snapshot := make(map[string]Record, len(m.records))
	for k, r := range m.records {
		snapshot[k] = r.Clone()
	}
	m.mu.RUnlock()
	for k, r := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ScanSeen(ctx context.Context, fn func(oci string) error) error {
	m.mu.RLock()
	snapshot := make([]string, 0, len(m.seen))
	for k := range m.seen {
		snapshot = append(snapshot, k)
	}
	m.mu.RUnlock()
	for _, k := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }

var _ DataSource = (*Memory)(nil)
