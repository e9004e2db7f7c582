package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/petr-muller/issuedesk/internal/issuedesk/comments"
	"github.com/petr-muller/issuedesk/internal/issuedesk/docstore"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

var (
	ann = model.User{ID: "ann@example.com"}
	bob = model.User{ID: "bob@example.com"}

	testIssue = model.Issue{
		ID:          "ISSUE-1",
		Title:       "Login button does nothing",
		Description: "Clicking it has no effect",
		Status:      "Open",
		Priority:    "High",
		CreatedBy:   "bob@example.com",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
)

// recordingService wraps a comment service, counting calls and optionally failing adds
type recordingService struct {
	*comments.Service
	adds    int
	addErr  error
	deletes int
}

func (r *recordingService) Add(ctx context.Context, issueID string, author model.User, text string) (string, error) {
	r.adds++
	if r.addErr != nil {
		return "", r.addErr
	}
	return r.Service.Add(ctx, issueID, author, text)
}

func (r *recordingService) Delete(ctx context.Context, user model.User, commentID string) error {
	r.deletes++
	return r.Service.Delete(ctx, user, commentID)
}

func seededStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore()
	store.Put(comments.Collection, "c2", docstore.Fields{
		"issueId":   "ISSUE-1",
		"text":      "second, by ann",
		"createdBy": "ann@example.com",
		"createdAt": "2026-01-02T10:00:00.000Z",
	})
	store.Put(comments.Collection, "c1", docstore.Fields{
		"issueId":   "ISSUE-1",
		"text":      "first, by bob",
		"createdBy": "bob@example.com",
		"createdAt": "2026-01-02T09:00:00.000Z",
	})
	store.Put(comments.Collection, "other", docstore.Fields{
		"issueId":   "ISSUE-2",
		"text":      "belongs elsewhere",
		"createdBy": "ann@example.com",
		"createdAt": "2026-01-02T08:00:00.000Z",
	})
	return store
}

// run executes a command, giving up on commands that block, like timers
func run(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

// drain runs cmd and feeds every modal message it produces back into the model
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := run(next).(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case commentsLoadedMsg, commentAddedMsg, commentSavedMsg, commentDeletedMsg, imageEncodedMsg:
			updated, more := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		msg = tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+u":
		msg = tea.KeyMsg{Type: tea.KeyCtrlU}
	case "ctrl+o":
		msg = tea.KeyMsg{Type: tea.KeyCtrlO}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	m, cmd := send(t, m, msg)
	return drain(t, m, cmd)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return drain(t, m, cmd)
}

func newTestModel(t *testing.T, svc CommentService, user model.User, opts ...func(*Options)) Model {
	t.Helper()
	o := Options{Issue: testIssue, User: user, Comments: svc}
	for _, opt := range opts {
		opt(&o)
	}
	m := New(o)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 80})
	return drain(t, m, m.Init())
}

func TestLoadShowsIssueCommentsOldestFirst(t *testing.T) {
	m := newTestModel(t, comments.NewService(seededStore(t)), ann)

	if m.thread.Len() != 2 {
		t.Fatalf("expected 2 comments, got %d", m.thread.Len())
	}
	view := m.View()
	first := strings.Index(view, "first, by bob")
	second := strings.Index(view, "second, by ann")
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected comments in creation order, got view:\n%s", view)
	}
	if strings.Contains(view, "belongs elsewhere") {
		t.Errorf("expected comments of other issues to be hidden")
	}
	if !strings.Contains(view, "Login button does nothing") || !strings.Contains(view, "Comments (2)") {
		t.Errorf("expected issue details and comment count in view:\n%s", view)
	}
}

func TestIssueDetails(t *testing.T) {
	svc := comments.NewService(docstore.NewMemoryStore())

	m := newTestModel(t, svc, ann)
	view := m.View()
	for _, expected := range []string{"Open", "High", "Created by bob", "Clicking it has no effect"} {
		if !strings.Contains(view, expected) {
			t.Errorf("expected %q in view:\n%s", expected, view)
		}
	}
	if strings.Contains(view, "Assigned to") {
		t.Errorf("expected no assignee line for an unassigned issue")
	}

	assigned := testIssue
	assigned.AssignedTo = "carol@example.com"
	m = newTestModel(t, svc, ann, func(o *Options) { o.Issue = assigned })
	if !strings.Contains(m.View(), "Assigned to carol") {
		t.Errorf("expected assignee in view:\n%s", m.View())
	}
}

func TestViewStripsTerminalEscapes(t *testing.T) {
	store := docstore.NewMemoryStore()
	store.Put(comments.Collection, "c1", docstore.Fields{
		"issueId":   "ISSUE-1",
		"text":      "innocent\x1b]52;c;ZWNobyBwd25lZA==\x07 \x1b]8;;https://example.com\x1b\\link\x1b]8;;\x1b\\",
		"createdBy": "bob@example.com",
		"createdAt": "2026-01-02T09:00:00.000Z",
	})
	issue := testIssue
	issue.Title = "\x1b[2Jwiped"
	issue.Description = "see \x1b]52;c;cGFzdGU=\x07here"

	m := newTestModel(t, comments.NewService(store), ann, func(o *Options) { o.Issue = issue })
	view := m.View()
	for _, unexpected := range []string{"]52;", "]8;", "[2J", "\a"} {
		if strings.Contains(view, unexpected) {
			t.Errorf("expected %q to be stripped from view:\n%q", unexpected, view)
		}
	}
	for _, expected := range []string{"innocent link", "wiped", "see here"} {
		if !strings.Contains(view, expected) {
			t.Errorf("expected %q in view:\n%s", expected, view)
		}
	}
}

func TestControlsOnlyOnOwnComments(t *testing.T) {
	tests := []struct {
		name     string
		user     model.User
		expected int
	}{
		{name: "author of one comment", user: ann, expected: 1},
		{name: "author of the other comment", user: bob, expected: 1},
		{name: "author of none", user: model.User{ID: "carol@example.com"}, expected: 0},
		{name: "anonymous", user: model.User{}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, comments.NewService(seededStore(t)), tt.user)
			if got := strings.Count(m.View(), "[e] Edit  [d] Delete"); got != tt.expected {
				t.Errorf("expected %d sets of controls, got %d", tt.expected, got)
			}
		})
	}
}

func TestCannotEditOrDeleteOthersComments(t *testing.T) {
	svc := &recordingService{Service: comments.NewService(seededStore(t))}
	m := newTestModel(t, svc, ann)

	// cursor starts on bob's comment
	m = press(t, m, "e")
	if m.focus != focusComments {
		t.Errorf("expected edit to be refused")
	}
	m = press(t, m, "d")
	if m.confirmDelete != "" {
		t.Errorf("expected delete to be refused")
	}
}

func TestAddComment(t *testing.T) {
	svc := &recordingService{Service: comments.NewService(docstore.NewMemoryStore())}
	m := newTestModel(t, svc, ann)
	if !strings.Contains(m.View(), "No comments yet") {
		t.Errorf("expected empty thread message")
	}

	m = press(t, m, "c")
	m = typeText(t, m, "looks like a regression")

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if !m.composer.InFlight() || !strings.Contains(m.View(), "Adding...") {
		t.Errorf("expected in-flight indicator while adding")
	}
	m = drain(t, m, cmd)

	if svc.adds != 1 {
		t.Errorf("expected one add, got %d", svc.adds)
	}
	if m.composer.InFlight() {
		t.Errorf("expected in-flight to be cleared")
	}
	if m.composer.Draft != "" || m.composerInput.Value() != "" {
		t.Errorf("expected draft to be cleared, got %q", m.composer.Draft)
	}
	c, ok := m.thread.At(0)
	if !ok || c.Text != "looks like a regression" || c.CreatedBy != ann.ID || c.IssueID != testIssue.ID {
		t.Errorf("unexpected comment after add: %+v", c)
	}
}

func TestBlankCommentIsNotSubmitted(t *testing.T) {
	svc := &recordingService{Service: comments.NewService(docstore.NewMemoryStore())}
	m := newTestModel(t, svc, ann)

	m = press(t, m, "c")
	m = typeText(t, m, "   ")
	m = press(t, m, "ctrl+s")

	if svc.adds != 0 {
		t.Errorf("expected no add for a blank draft, got %d", svc.adds)
	}
	if m.composer.Draft != "   " {
		t.Errorf("expected draft to be untouched, got %q", m.composer.Draft)
	}
	if m.composer.InFlight() {
		t.Errorf("expected no submission in flight")
	}
}

func TestFailedAddKeepsDraft(t *testing.T) {
	svc := &recordingService{
		Service: comments.NewService(docstore.NewMemoryStore()),
		addErr:  errors.New("store unavailable"),
	}
	m := newTestModel(t, svc, ann)

	m = press(t, m, "c")
	m = typeText(t, m, "important")
	m = press(t, m, "ctrl+s")

	if svc.adds != 1 {
		t.Errorf("expected one add attempt, got %d", svc.adds)
	}
	if m.composer.InFlight() {
		t.Errorf("expected in-flight to be cleared after failure")
	}
	if m.composer.Draft != "important" {
		t.Errorf("expected draft to survive failure, got %q", m.composer.Draft)
	}
	if m.alert != "" {
		t.Errorf("expected store failures not to raise alerts, got %q", m.alert)
	}
}

func TestEditComment(t *testing.T) {
	store := seededStore(t)
	m := newTestModel(t, comments.NewService(store), ann)

	m = press(t, m, "down")
	m = press(t, m, "e")
	if m.focus != focusCommentEdit || m.editInput.Value() != "second, by ann" {
		t.Fatalf("expected edit mode seeded with the comment text, got %q", m.editInput.Value())
	}

	m = typeText(t, m, " (updated)")
	m = press(t, m, "ctrl+s")

	if m.focus != focusComments || m.thread.Editing() != "" {
		t.Errorf("expected edit mode to end after saving")
	}
	c, _ := m.thread.At(1)
	if c.Text != "second, by ann (updated)" {
		t.Errorf("expected reloaded text to match, got %q", c.Text)
	}
	if c.UpdatedAt == nil {
		t.Errorf("expected update time to be set")
	}
	if !strings.Contains(m.View(), "(edited)") {
		t.Errorf("expected edited marker in view")
	}
}

func TestBlankEditIsNotSaved(t *testing.T) {
	m := newTestModel(t, comments.NewService(seededStore(t)), ann)

	m = press(t, m, "down")
	m = press(t, m, "e")
	m.editInput.SetValue("  ")
	m = press(t, m, "ctrl+s")

	if m.focus != focusCommentEdit || m.savingEdit {
		t.Errorf("expected blank edit to be ignored and edit mode kept")
	}
	c, _ := m.thread.At(1)
	if c.Text != "second, by ann" {
		t.Errorf("expected stored text to be unchanged, got %q", c.Text)
	}

	m = press(t, m, "esc")
	if m.focus != focusComments || m.thread.Editing() != "" {
		t.Errorf("expected cancel to leave edit mode")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	svc := &recordingService{Service: comments.NewService(seededStore(t))}
	m := newTestModel(t, svc, ann)

	m = press(t, m, "down")
	m = press(t, m, "d")
	if !strings.Contains(m.View(), "Delete this comment?") {
		t.Errorf("expected confirmation prompt")
	}
	m = press(t, m, "n")
	if svc.deletes != 0 || m.thread.Len() != 2 {
		t.Errorf("expected declined delete to do nothing")
	}

	m = press(t, m, "d")
	m = press(t, m, "y")
	if svc.deletes != 1 {
		t.Errorf("expected one delete, got %d", svc.deletes)
	}
	if m.thread.Len() != 1 {
		t.Fatalf("expected one comment left, got %d", m.thread.Len())
	}
	if c, _ := m.thread.At(0); c.ID != "c1" {
		t.Errorf("expected bob's comment to remain, got %s", c.ID)
	}
	if m.cursor != 0 {
		t.Errorf("expected cursor to be clamped, got %d", m.cursor)
	}
}

func TestCommentLifecycle(t *testing.T) {
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann)

	m = press(t, m, "c")
	m = typeText(t, m, "draft one")
	m = press(t, m, "ctrl+s")
	m = press(t, m, "esc")
	if m.thread.Len() != 1 {
		t.Fatalf("expected comment to be added")
	}

	m = press(t, m, "e")
	m = typeText(t, m, " and more")
	m = press(t, m, "ctrl+s")
	if c, _ := m.thread.At(0); c.Text != "draft one and more" {
		t.Fatalf("expected edited comment, got %q", c.Text)
	}

	m = press(t, m, "d")
	m = press(t, m, "y")
	if m.thread.Len() != 0 {
		t.Errorf("expected comment to be deleted")
	}
}

func TestEditIssue(t *testing.T) {
	var gotID string
	var gotUpdate model.IssueUpdate
	calls := 0
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann, func(o *Options) {
		o.OnUpdate = func(issueID string, update model.IssueUpdate) tea.Cmd {
			calls++
			gotID = issueID
			gotUpdate = update
			return nil
		}
	})

	m = press(t, m, "E")
	if m.focus != focusIssueEdit || m.titleInput.Value() != testIssue.Title {
		t.Fatalf("expected issue edit mode seeded with the title")
	}
	m = typeText(t, m, "!")
	m = press(t, m, "ctrl+s")

	if calls != 1 || gotID != testIssue.ID {
		t.Fatalf("expected one update of %s, got %d calls for %q", testIssue.ID, calls, gotID)
	}
	if gotUpdate.Title == nil || *gotUpdate.Title != testIssue.Title+"!" {
		t.Errorf("expected updated title, got %v", gotUpdate.Title)
	}
	if gotUpdate.Description != nil {
		t.Errorf("expected unchanged description to be left out")
	}
	if m.focus != focusComments {
		t.Errorf("expected edit mode to end")
	}
	if m.Issue().Title != testIssue.Title+"!" {
		t.Errorf("expected modal to show the saved title")
	}

	// unchanged save still calls back, with nothing to change
	m = press(t, m, "E")
	m = press(t, m, "ctrl+s")
	if calls != 2 {
		t.Fatalf("expected an unchanged save to call back, got %d calls", calls)
	}
	if !gotUpdate.IsEmpty() {
		t.Errorf("expected an empty update, got %+v", gotUpdate)
	}
	if m.focus != focusComments {
		t.Errorf("expected edit mode to end")
	}
}

func TestEditIssueAllowsBlankTitle(t *testing.T) {
	var gotUpdate model.IssueUpdate
	calls := 0
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann, func(o *Options) {
		o.OnUpdate = func(_ string, update model.IssueUpdate) tea.Cmd {
			calls++
			gotUpdate = update
			return nil
		}
	})

	m = press(t, m, "E")
	m = press(t, m, "ctrl+u")
	m = press(t, m, "ctrl+s")

	if calls != 1 {
		t.Fatalf("expected blank title to be saved, got %d calls", calls)
	}
	if gotUpdate.Title == nil || *gotUpdate.Title != "" {
		t.Errorf("expected the title to be cleared, got %v", gotUpdate.Title)
	}
	if m.alert != "" {
		t.Errorf("expected no alert, got %q", m.alert)
	}
	if m.focus != focusComments || m.Issue().Title != "" {
		t.Errorf("expected edit mode to end with the blank title shown")
	}
}

func TestCancelIssueEdit(t *testing.T) {
	calls := 0
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann, func(o *Options) {
		o.OnUpdate = func(string, model.IssueUpdate) tea.Cmd {
			calls++
			return nil
		}
	})

	m = press(t, m, "E")
	m = press(t, m, "ctrl+u")
	m = press(t, m, "esc")
	if calls != 0 {
		t.Errorf("expected cancel not to save")
	}
	if m.focus != focusComments || m.Issue().Title != testIssue.Title {
		t.Errorf("expected cancel to discard the draft")
	}
}

func TestIssueUpdatedMsg(t *testing.T) {
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann)

	refreshed := testIssue
	refreshed.Status = "Closed"
	m, _ = send(t, m, IssueUpdatedMsg{Issue: refreshed})
	if m.Issue().Status != "Closed" {
		t.Errorf("expected refreshed issue to be shown")
	}

	other := testIssue
	other.ID = "ISSUE-9"
	m, _ = send(t, m, IssueUpdatedMsg{Issue: other})
	if m.Issue().ID != testIssue.ID {
		t.Errorf("expected updates of other issues to be ignored")
	}
}

var attachedDraft = regexp.MustCompile(`^see screenshot\n!\[image\]\(attachment:[0-9a-f]+-1\)$`)

func TestAttachImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "shot.png")
	if err := os.WriteFile(png, []byte("\x89PNG\r\n\x1a\nfake"), 0644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	store := docstore.NewMemoryStore()
	m := newTestModel(t, comments.NewService(store), ann)

	m = press(t, m, "c")
	m = typeText(t, m, "see screenshot")
	m = press(t, m, "ctrl+o")
	if m.focus != focusImagePath {
		t.Fatalf("expected image path prompt")
	}
	m = typeText(t, m, png)

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.View(), "Uploading...") {
		t.Errorf("expected upload indicator")
	}
	m = drain(t, m, cmd)

	if m.uploading {
		t.Errorf("expected upload to finish")
	}
	if !attachedDraft.MatchString(m.composer.Draft) || m.composer.Attachments() != 1 {
		t.Errorf("unexpected draft %q", m.composer.Draft)
	}

	m = press(t, m, "ctrl+s")
	c, ok := m.thread.At(0)
	if !ok {
		t.Fatalf("expected comment to be added")
	}
	if !strings.HasPrefix(c.Text, "see screenshot\n![image](data:image/png;base64,") {
		t.Errorf("expected embedded image in stored text, got %q", c.Text)
	}
	if !strings.Contains(m.View(), "[image: image/png") {
		t.Errorf("expected image placeholder in view")
	}
}

func TestAttachRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("just text"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann)
	m = press(t, m, "c")
	m = typeText(t, m, "draft")
	m = press(t, m, "ctrl+o")
	m = typeText(t, m, txt)
	m = press(t, m, "enter")

	if m.alert != "Please select an image file" {
		t.Errorf("expected non-image alert, got %q", m.alert)
	}
	if m.uploading {
		t.Errorf("expected no upload")
	}
	if m.composer.Draft != "draft" {
		t.Errorf("expected draft to be untouched, got %q", m.composer.Draft)
	}
	if m.focus != focusComposer {
		t.Errorf("expected to return to the composer")
	}
}

func TestAttachWaitsForPendingAdd(t *testing.T) {
	svc := &recordingService{Service: comments.NewService(docstore.NewMemoryStore())}
	m := newTestModel(t, svc, ann)

	m = press(t, m, "c")
	m = typeText(t, m, "first")
	m, addCmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if !m.composer.InFlight() {
		t.Fatalf("expected add to be in flight")
	}

	m = press(t, m, "ctrl+o")
	if m.focus != focusComposer {
		t.Errorf("expected image prompt to be refused while adding, focus is %v", m.focus)
	}

	m = drain(t, m, addCmd)
	if svc.adds != 1 || m.composer.Attachments() != 0 {
		t.Errorf("expected one add and no attachments, got %d adds and %d attachments", svc.adds, m.composer.Attachments())
	}

	m = press(t, m, "ctrl+o")
	if m.focus != focusImagePath {
		t.Errorf("expected image prompt once the add finished")
	}
}

func TestClose(t *testing.T) {
	closed := 0
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann, func(o *Options) {
		o.OnClose = func() tea.Cmd {
			closed++
			return nil
		}
	})

	m = press(t, m, "q")
	if closed != 1 || !m.Closed() {
		t.Errorf("expected close callback")
	}
	if m.View() != "" {
		t.Errorf("expected closed modal to render nothing")
	}
}

func TestCloseWithoutCallbackQuits(t *testing.T) {
	m := newTestModel(t, comments.NewService(docstore.NewMemoryStore()), ann)

	_, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected quit message")
	}
}

func TestStaleLoadIsIgnored(t *testing.T) {
	m := newTestModel(t, comments.NewService(seededStore(t)), ann)

	m, _ = send(t, m, commentsLoadedMsg{seq: m.loadSeq - 1, comments: nil})
	if m.thread.Len() != 2 {
		t.Errorf("expected stale reload to be ignored")
	}

	m, _ = send(t, m, commentsLoadedMsg{seq: m.loadSeq, err: errors.New("boom")})
	if m.thread.Len() != 2 || m.alert != "" {
		t.Errorf("expected failed reload to keep the thread without alerting")
	}
}
