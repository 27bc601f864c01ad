package subs

import (
	"context"
	"sort"
	"sync"
)

// NewMemoryStore returns an in-memory Store, used in tests and local
// development.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Subscription)}
}

// MemoryStore holds subscription records in process memory.
type MemoryStore struct {
	m       sync.RWMutex
	records map[string]Subscription
}

// Put stores or replaces a record. Test setup helper.
func (s *MemoryStore) Put(id string, sub Subscription) {
	s.m.Lock()
	defer s.m.Unlock()
	s.records[id] = sub
}

// ListIDs returns every stored subscription id in stable order.
func (s *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Get returns the subscription record for id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Subscription, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	sub, ok := s.records[id]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}
