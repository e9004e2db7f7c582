package comments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petr-muller/issuedesk/internal/issuedesk/docstore"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// Collection is the document store collection holding comments
const Collection = "comments"

// Persisted field names
const (
	fieldIssueID   = "issueId"
	fieldText      = "text"
	fieldCreatedBy = "createdBy"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

var (
	// ErrEmptyText is returned when a comment body is empty or whitespace-only
	ErrEmptyText = errors.New("comment text is empty")
	// ErrNotAuthor is returned when a user modifies a comment they did not write
	ErrNotAuthor = errors.New("only the author can modify a comment")
)

// Service reads and writes the comments of issues through a document store
type Service struct {
	store docstore.Store
	now   func() time.Time
}

// NewService creates a new comment service
func NewService(store docstore.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// List returns the comments of an issue, oldest first
func (s *Service) List(ctx context.Context, issueID string) ([]model.Comment, error) {
	docs, err := s.store.Query(ctx, Collection, docstore.Where(fieldIssueID, issueID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}

	comments := make([]model.Comment, 0, len(docs))
	for _, doc := range docs {
		comments = append(comments, fromDocument(doc))
	}
	SortByCreation(comments)
	return comments, nil
}

// Add creates a comment on an issue authored by the given user and returns its id
func (s *Service) Add(ctx context.Context, issueID string, author model.User, text string) (string, error) {
	if IsBlank(text) {
		return "", ErrEmptyText
	}

	id, err := s.store.Create(ctx, Collection, docstore.Fields{
		fieldIssueID:   issueID,
		fieldText:      text,
		fieldCreatedBy: author.ID,
		fieldCreatedAt: model.FormatTime(s.now()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add comment: %w", err)
	}

	logrus.WithFields(logrus.Fields{"issue": issueID, "comment": id}).Debug("Added comment")
	return id, nil
}

// Edit replaces the text of a comment and stamps its update time
func (s *Service) Edit(ctx context.Context, user model.User, commentID, text string) error {
	if IsBlank(text) {
		return ErrEmptyText
	}
	if err := s.authorize(ctx, user, commentID); err != nil {
		return err
	}

	if err := s.store.Update(ctx, Collection, commentID, docstore.Fields{
		fieldText:      text,
		fieldUpdatedAt: model.FormatTime(s.now()),
	}); err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}

	logrus.WithField("comment", commentID).Debug("Updated comment")
	return nil
}

// Delete removes a comment
func (s *Service) Delete(ctx context.Context, user model.User, commentID string) error {
	if err := s.authorize(ctx, user, commentID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, Collection, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	logrus.WithField("comment", commentID).Debug("Deleted comment")
	return nil
}

// authorize checks the stored authorship, independently of what the UI displays
func (s *Service) authorize(ctx context.Context, user model.User, commentID string) error {
	doc, err := s.store.Get(ctx, Collection, commentID)
	if err != nil {
		return fmt.Errorf("failed to fetch comment %s: %w", commentID, err)
	}
	if !CanModify(user, fromDocument(doc)) {
		return ErrNotAuthor
	}
	return nil
}

// CanModify reports whether the user may edit or delete the comment
func CanModify(user model.User, comment model.Comment) bool {
	return user.ID != "" && user.ID == comment.CreatedBy
}

// IsBlank returns true for empty or whitespace-only text
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// SortByCreation orders comments by creation time, keeping the relative order of equal times
func SortByCreation(comments []model.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}

func fromDocument(doc docstore.Document) model.Comment {
	comment := model.Comment{
		ID:        doc.ID,
		IssueID:   doc.String(fieldIssueID),
		Text:      doc.String(fieldText),
		CreatedBy: doc.String(fieldCreatedBy),
		CreatedAt: timeField(doc.Fields[fieldCreatedAt]),
	}
	if updated := timeField(doc.Fields[fieldUpdatedAt]); !updated.IsZero() {
		comment.UpdatedAt = &updated
	}
	return comment
}

func timeField(value any) time.Time {
	switch v := value.(type) {
	case string:
		return model.ParseTime(v)
	case time.Time:
		return v
	default:
		return time.Time{}
	}
}
