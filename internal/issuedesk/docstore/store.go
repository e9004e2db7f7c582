// Package docstore provides the document store collaborator used by the
// issue modal: schemaless records grouped in collections and addressed by
// generated ids.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Fields holds the contents of a document
type Fields map[string]any

// Document is a single record of a collection
type Document struct {
	ID     string
	Fields Fields
}

// String returns the value of a string field, empty when absent or not a string
func (d Document) String(name string) string {
	s, _ := d.Fields[name].(string)
	return s
}

// Filter selects documents whose Field equals Value. A zero Filter matches everything.
type Filter struct {
	Field string
	Value string
}

// Where builds an equality filter
func Where(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Matches reports whether the fields satisfy the filter
func (f Filter) Matches(fields Fields) bool {
	if f.Field == "" {
		return true
	}
	s, ok := fields[f.Field].(string)
	return ok && s == f.Value
}

// Store is a CRUD API over collections of documents. Query results are unordered.
type Store interface {
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Open creates a store of the given backend rooted at dataDir
func Open(backend, dataDir string) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendYAML, "":
		return NewYAMLStore(dataDir), nil
	case BackendSQLite:
		return NewSQLiteStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func merge(dst, src Fields) Fields {
	if dst == nil {
		dst = Fields{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func validCollection(collection string) error {
	if collection == "" || strings.ContainsAny(collection, `/\.`) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	return nil
}
