package comments

import (
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// Thread is the in-memory copy of an issue's comments shown by the modal,
// together with the comment edit state. It is replaced wholesale on every reload.
type Thread struct {
	IssueID  string
	Comments []model.Comment

	editingID   string
	editText    string
	attachments Attachments
}

// NewThread creates an empty thread for an issue
func NewThread(issueID string) Thread {
	return Thread{IssueID: issueID}
}

// Replace swaps in a freshly loaded comment list. Comments of other issues are dropped.
func (t *Thread) Replace(comments []model.Comment) {
	filtered := make([]model.Comment, 0, len(comments))
	for _, c := range comments {
		if c.IssueID == t.IssueID {
			filtered = append(filtered, c)
		}
	}
	t.Comments = filtered
	if t.editingID != "" && t.find(t.editingID) < 0 {
		t.CancelEdit()
	}
}

// BeginEdit starts editing a comment, seeding the edit buffer with its text.
// Embedded images appear in the buffer as attachment references.
func (t *Thread) BeginEdit(comment model.Comment) {
	t.attachments.Reset()
	t.editingID = comment.ID
	t.editText = t.attachments.Collapse(comment.Text)
}

// CancelEdit leaves edit mode without saving
func (t *Thread) CancelEdit() {
	t.editingID = ""
	t.editText = ""
	t.attachments.Reset()
}

// Editing returns the id of the comment being edited, empty if none
func (t *Thread) Editing() string {
	return t.editingID
}

// IsEditing reports whether the given comment is being edited
func (t *Thread) IsEditing(commentID string) bool {
	return commentID != "" && t.editingID == commentID
}

// EditText returns the current edit buffer
func (t *Thread) EditText() string {
	return t.editText
}

// EditedText returns the edit buffer with images expanded, ready to be saved
func (t *Thread) EditedText() string {
	return t.attachments.Expand(t.editText)
}

// SetEditText replaces the edit buffer
func (t *Thread) SetEditText(text string) {
	t.editText = text
}

// Len returns the number of comments
func (t *Thread) Len() int {
	return len(t.Comments)
}

// At returns the comment at index i
func (t *Thread) At(i int) (model.Comment, bool) {
	if i < 0 || i >= len(t.Comments) {
		return model.Comment{}, false
	}
	return t.Comments[i], true
}

func (t *Thread) find(id string) int {
	for i, c := range t.Comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}
