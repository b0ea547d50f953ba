package localcache

import (
	"context"
	"sync"
)

// Memory is a process-local cache, used when no cache file is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Load(_ context.Context, expenseIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make(map[string]string, len(expenseIDs))
	for _, id := range expenseIDs {
		if name, ok := m.entries[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}

func (m *Memory) Set(_ context.Context, expenseID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[expenseID] = name
	return nil
}

func (m *Memory) Delete(_ context.Context, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, expenseID)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
