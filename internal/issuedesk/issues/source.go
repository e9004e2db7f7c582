package issues

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petr-muller/issuedesk/internal/issuedesk/docstore"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// Collection is the document store collection holding issues
const Collection = "issues"

// ErrNotFound is returned when an issue does not exist
var ErrNotFound = errors.New("issue not found")

// Source reads issues and applies partial updates to them
type Source interface {
	Get(ctx context.Context, id string) (model.Issue, error)
	Update(ctx context.Context, id string, update model.IssueUpdate) error
}

// DocSource keeps issues in a document store collection
type DocSource struct {
	store docstore.Store
}

// NewDocSource creates an issue source backed by a document store
func NewDocSource(store docstore.Store) *DocSource {
	return &DocSource{store: store}
}

// Get loads an issue by its document id
func (s *DocSource) Get(ctx context.Context, id string) (model.Issue, error) {
	doc, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return model.Issue{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return model.Issue{}, fmt.Errorf("failed to load issue: %w", err)
	}
	return FromDocument(doc), nil
}

// Update writes only the fields set in the update
func (s *DocSource) Update(ctx context.Context, id string, update model.IssueUpdate) error {
	fields := ToFields(update)
	if len(fields) == 0 {
		return nil
	}
	if err := s.store.Update(ctx, Collection, id, fields); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", id, err)
	}
	return nil
}

// ToFields converts an update to the persisted field names
func ToFields(update model.IssueUpdate) docstore.Fields {
	fields := docstore.Fields{}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	return fields
}

// FromDocument converts a stored issue document
func FromDocument(doc docstore.Document) model.Issue {
	var createdAt time.Time
	switch v := doc.Fields["createdAt"].(type) {
	case string:
		createdAt = model.ParseTime(v)
	case time.Time:
		createdAt = v
	}

	return model.Issue{
		ID:          doc.ID,
		Title:       doc.String("title"),
		Description: doc.String("description"),
		Status:      doc.String("status"),
		Priority:    doc.String("priority"),
		CreatedBy:   doc.String("createdBy"),
		AssignedTo:  doc.String("assignedTo"),
		CreatedAt:   createdAt,
	}
}
