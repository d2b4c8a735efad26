package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store with in-memory storage. Used in dev mode
// and in tests where a SQLite file is not wanted.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*Product),
	}
}

func (s *MemoryStore) Product(_ context.Context, id int64) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) Save(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
