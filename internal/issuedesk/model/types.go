package model

import (
	"strings"
	"time"
)

// TimeLayout is the layout timestamps are persisted with
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Issue represents a tracked unit of work as shown in the modal
type Issue struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Status      string    `yaml:"status"`
	Priority    string    `yaml:"priority"`
	CreatedBy   string    `yaml:"created_by"`
	AssignedTo  string    `yaml:"assigned_to,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// IssueUpdate is a partial update of an issue. Nil fields are left untouched.
type IssueUpdate struct {
	Title       *string `yaml:"title,omitempty"`
	Description *string `yaml:"description,omitempty"`
}

// IsEmpty returns true when the update changes nothing
func (u IssueUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil
}

// Apply returns a copy of the issue with the update applied
func (u IssueUpdate) Apply(issue Issue) Issue {
	if u.Title != nil {
		issue.Title = *u.Title
	}
	if u.Description != nil {
		issue.Description = *u.Description
	}
	return issue
}

// Comment is an authored text entry attached to exactly one issue
type Comment struct {
	ID        string
	IssueID   string
	Text      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// User identifies the person operating the modal
type User struct {
	ID string
}

// DisplayName returns the local part of an e-mail shaped identifier
func DisplayName(id string) string {
	name, _, _ := strings.Cut(id, "@")
	return name
}

// FormatTime renders a timestamp in the persisted layout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. Unparseable values yield the zero time.
func ParseTime(s string) time.Time {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
