package audit

import (
	"context"
	"sync"
)

// MemoryLog keeps entries in memory.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

func (m *MemoryLog) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) Query(_ context.Context, q Query) ([]Entry, error) {
	m.mu.RLock()
	var res []Entry
	for _, e := range m.entries {
		if q.Match(e) {
			res = append(res, e)
		}
	}
	m.mu.RUnlock()
	return q.finalize(res), nil
}

func (m *MemoryLog) Close() error { return nil }

// Len returns the number of stored entries.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
