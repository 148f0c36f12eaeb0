package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. Find returns documents in
// insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	docs  map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string][]byte)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := NewID()
	if err := s.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = data
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any, conds ...Filter) error {
	if err := validateFilters(conds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	data, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}

	ok, err := matches(data, conds)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPrecondition
	}

	merged, err := merge(data, fields)
	if err != nil {
		return err
	}
	c.docs[id] = merged
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, dest any) error {
	s.mu.RLock()
	var data []byte
	if c, ok := s.collections[collection]; ok {
		data = c.docs[id]
	}
	s.mu.RUnlock()

	if data == nil {
		return ErrNotFound
	}
	return Document{ID: id, Data: data}.Decode(dest)
}

func (s *MemoryStore) Find(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return []Document{}, nil
	}

	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		data := c.docs[id]
		ok, err := matches(data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, Document{ID: id, Data: append([]byte(nil), data...)})
		}
	}
	return docs, nil
}

// Count returns the number of documents in collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collection]; ok {
		return len(c.docs)
	}
	return 0
}

func (s *MemoryStore) Close() error {
	return nil
}
