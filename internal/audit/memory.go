package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process. Used by tests and by the API when
// no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

func (m *MemoryStore) InsertAttempt(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.entries = append(m.entries, e)
	return nil
}

// ListAttempts returns newest first, matching the database store.
func (m *MemoryStore) ListAttempts(_ context.Context, f ListFilter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		if f.ContainerNo != "" && m.entries[i].ContainerNo != f.ContainerNo {
			continue
		}
		out = append(out, m.entries[i])
	}
	if f.Offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Entries returns a copy of everything recorded, oldest first.
func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
