package database

import (
	"context"
	"sync"

	"github.com/jerry-enebeli/offline/model"
)

// MemoryKV is a process-local KeyValueStore.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// MemoryActionStore keeps one copy of each action in memory. Nothing survives a restart.
type MemoryActionStore struct {
	mu      sync.RWMutex
	actions map[string]*model.QueuedAction
}

func NewMemoryActionStore() *MemoryActionStore {
	return &MemoryActionStore{actions: make(map[string]*model.QueuedAction)}
}

func (m *MemoryActionStore) LoadActions(_ context.Context) ([]*model.QueuedAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.QueuedAction, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (m *MemoryActionStore) PutAction(_ context.Context, action *model.QueuedAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = action.Clone()
	return nil
}

func (m *MemoryActionStore) DeleteActions(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.actions, id)
	}
	return nil
}

func (m *MemoryActionStore) Close() error { return nil }
