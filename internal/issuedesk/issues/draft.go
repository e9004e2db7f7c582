package issues

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// Draft holds edit copies of the editable issue fields
type Draft struct {
	Title       string
	Description string
}

// NewDraft captures the current values of an issue
func NewDraft(issue model.Issue) Draft {
	return Draft{
		Title:       issue.Title,
		Description: issue.Description,
	}
}

// BlankTitle reports whether the draft title holds only whitespace
func (d Draft) BlankTitle() bool {
	return strings.TrimSpace(d.Title) == ""
}

// Diff returns the partial update turning the issue into the draft
func Diff(issue model.Issue, draft Draft) model.IssueUpdate {
	var update model.IssueUpdate

	if draft.Title != issue.Title {
		title := draft.Title
		update.Title = &title
	}

	if draft.Description != issue.Description {
		description := draft.Description
		update.Description = &description
	}

	return update
}

// ChangedFields returns the names of the fields an update touches
func ChangedFields(update model.IssueUpdate) sets.Set[string] {
	changed := sets.New[string]()
	if update.Title != nil {
		changed.Insert("title")
	}
	if update.Description != nil {
		changed.Insert("description")
	}
	return changed
}
