package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// YAMLStore keeps each document in its own YAML file, one directory per collection
type YAMLStore struct {
	mu      sync.Mutex
	dataDir string
}

// NewYAMLStore creates a new file backed store rooted at dataDir
func NewYAMLStore(dataDir string) *YAMLStore {
	return &YAMLStore{
		dataDir: dataDir,
	}
}

// ensureCollectionDir creates the collection directory if it doesn't exist
func (s *YAMLStore) ensureCollectionDir(collection string) error {
	return os.MkdirAll(filepath.Join(s.dataDir, collection), 0755)
}

// documentPath returns the file path for a given document
func (s *YAMLStore) documentPath(collection, id string) string {
	return filepath.Join(s.dataDir, collection, fmt.Sprintf("%s.yaml", id))
}

func (s *YAMLStore) Query(_ context.Context, collection string, filter Filter) ([]Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dataDir, collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read collection directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		fields, err := s.load(collection, id)
		if err != nil {
			return nil, err
		}
		if filter.Matches(fields) {
			docs = append(docs, Document{ID: id, Fields: fields})
		}
	}

	return docs, nil
}

func (s *YAMLStore) Get(_ context.Context, collection, id string) (Document, error) {
	if err := validCollection(collection); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := s.load(collection, id)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *YAMLStore) Create(_ context.Context, collection string, fields Fields) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCollectionDir(collection); err != nil {
		return "", fmt.Errorf("failed to create collection directory: %w", err)
	}

	id := uuid.NewString()
	if err := s.save(collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Put stores a document under a caller-chosen id, replacing any previous content
func (s *YAMLStore) Put(collection, id string, fields Fields) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCollectionDir(collection); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}
	return s.save(collection, id, fields)
}

func (s *YAMLStore) Update(_ context.Context, collection, id string, fields Fields) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(collection, id)
	if err != nil {
		return err
	}
	return s.save(collection, id, merge(existing, fields))
}

func (s *YAMLStore) Delete(_ context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.documentPath(collection, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document file: %w", err)
	}
	return nil
}

func (s *YAMLStore) Close() error {
	return nil
}

func (s *YAMLStore) load(collection, id string) (Fields, error) {
	if strings.ContainsAny(id, `/\`) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.documentPath(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	fields := Fields{}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	return fields, nil
}

func (s *YAMLStore) save(collection, id string, fields Fields) error {
	data, err := yaml.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := os.WriteFile(s.documentPath(collection, id), data, 0644); err != nil {
		return fmt.Errorf("failed to write document file: %w", err)
	}
	return nil
}
