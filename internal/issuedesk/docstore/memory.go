package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Fields
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]Fields{}}
}

func (s *MemoryStore) Query(_ context.Context, collection string, filter Filter) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []Document
	for id, fields := range s.collections[collection] {
		if filter.Matches(fields) {
			docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
		}
	}
	return docs, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: copyFields(fields)}, nil
}

func (s *MemoryStore) Create(_ context.Context, collection string, fields Fields) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if s.collections[collection] == nil {
		s.collections[collection] = map[string]Fields{}
	}
	s.collections[collection][id] = copyFields(fields)
	return id, nil
}

// Put stores a document under a caller-chosen id
func (s *MemoryStore) Put(collection, id string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = map[string]Fields{}
	}
	s.collections[collection][id] = copyFields(fields)
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	s.collections[collection][id] = merge(existing, fields)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyFields(fields Fields) Fields {
	return merge(Fields{}, fields)
}
