package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/petr-muller/issuedesk/internal/issuedesk/comments"
	"github.com/petr-muller/issuedesk/internal/issuedesk/imageenc"
	"github.com/petr-muller/issuedesk/internal/issuedesk/issues"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// DefaultTimeout bounds every store call made by the modal
const DefaultTimeout = 10 * time.Second

// Options configures the issue modal
type Options struct {
	Issue    model.Issue
	User     model.User
	Comments CommentService
	// OnUpdate is called on every save with the fields that changed, possibly none
	OnUpdate func(issueID string, update model.IssueUpdate) tea.Cmd
	// OnClose is called when the modal is dismissed. Without it the program quits.
	OnClose func() tea.Cmd
	Timeout time.Duration
}

type focusArea int

const (
	focusComments focusArea = iota
	focusComposer
	focusCommentEdit
	focusIssueEdit
	focusImagePath
)

// Model is the issue modal: issue details on top, the comment thread and composer below
type Model struct {
	issue    model.Issue
	user     model.User
	service  CommentService
	onUpdate func(issueID string, update model.IssueUpdate) tea.Cmd
	onClose  func() tea.Cmd
	timeout  time.Duration

	thread   comments.Thread
	composer comments.Composer
	cursor   int
	loadSeq  int
	loaded   bool

	focus         focusArea
	imageReturn   focusArea
	titleFocused  bool
	savingEdit    bool
	uploading     bool
	confirmDelete string
	alert         string
	closed        bool

	composerInput textarea.Model
	editInput     textarea.Model
	titleInput    textinput.Model
	descInput     textarea.Model
	pathInput     textinput.Model
	spinner       spinner.Model
	list          viewport.Model

	width  int
	height int
}

// New creates the modal for an issue
func New(opts Options) Model {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	composerInput := newTextarea("Write a comment...")
	editInput := newTextarea("")
	descInput := newTextarea("Description")

	titleInput := textinput.New()
	titleInput.Placeholder = "Title"
	titleInput.CharLimit = 255

	pathInput := textinput.New()
	pathInput.Placeholder = "Path to an image file"
	pathInput.CharLimit = 4096

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		issue:         opts.Issue,
		user:          opts.User,
		service:       opts.Comments,
		onUpdate:      opts.OnUpdate,
		onClose:       opts.OnClose,
		timeout:       timeout,
		thread:        comments.NewThread(opts.Issue.ID),
		composerInput: composerInput,
		editInput:     editInput,
		titleInput:    titleInput,
		descInput:     descInput,
		pathInput:     pathInput,
		spinner:       s,
		list:          viewport.New(defaultWidth, defaultListHeight),
		width:         defaultWidth + 4,
		height:        defaultListHeight + 20,
	}
	m.resize()
	return m
}

func newTextarea(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	// comment bodies are unbounded, embedded images are kept out of the buffer
	ta.CharLimit = 0
	ta.SetHeight(4)
	return ta
}

// Init loads the comments of the issue
func (m Model) Init() tea.Cmd {
	return loadComments(m.service, m.timeout, m.issue.ID, m.loadSeq)
}

// Issue returns the issue as currently shown
func (m Model) Issue() model.Issue {
	return m.issue
}

// Closed reports whether the modal was dismissed
func (m Model) Closed() bool {
	return m.closed
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := m.update(msg)
	m.refreshList()
	return m, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case commentsLoadedMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("issue", m.issue.ID).Error("Failed to load comments")
			return m, nil
		}
		m.loaded = true
		m.thread.Replace(msg.comments)
		if m.focus == focusCommentEdit && m.thread.Editing() == "" {
			m.focus = focusComments
			m.savingEdit = false
		}
		if m.confirmDelete != "" && !m.hasComment(m.confirmDelete) {
			m.confirmDelete = ""
		}
		m.clampCursor()
		return m, nil

	case commentAddedMsg:
		m.composer.Finish(msg.err)
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("issue", m.issue.ID).Error("Failed to add comment")
			return m, nil
		}
		m.composerInput.Reset()
		logrus.WithField("comment", msg.id).Debug("Comment added")
		return m.reload()

	case commentSavedMsg:
		m.savingEdit = false
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("comment", msg.id).Error("Failed to update comment")
			return m, nil
		}
		if m.thread.IsEditing(msg.id) {
			m.thread.CancelEdit()
			m.editInput.Blur()
			if m.focus == focusCommentEdit {
				m.focus = focusComments
			}
		}
		return m.reload()

	case commentDeletedMsg:
		if msg.err != nil {
			logrus.WithError(msg.err).WithField("comment", msg.id).Error("Failed to delete comment")
			return m, nil
		}
		return m.reload()

	case imageEncodedMsg:
		m.uploading = false
		if msg.err != nil {
			logrus.WithError(msg.err).Warn("Failed to encode image")
			m.alert = imageenc.AlertMessage(msg.err)
			return m, nil
		}
		m.composer.Attach(msg.dataURI)
		m.composerInput.SetValue(m.composer.Draft)
		return m, nil

	case IssueUpdatedMsg:
		if msg.Issue.ID == m.issue.ID {
			m.issue = msg.Issue
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forwardToInput(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.alert != "" {
		m.alert = ""
		return m, nil
	}

	if msg.String() == "ctrl+c" {
		return m.close()
	}

	if m.confirmDelete != "" {
		switch msg.String() {
		case "y", "Y":
			id := m.confirmDelete
			m.confirmDelete = ""
			return m, deleteComment(m.service, m.timeout, m.user, id)
		case "n", "N", "esc":
			m.confirmDelete = ""
		}
		return m, nil
	}

	switch m.focus {
	case focusComposer:
		return m.handleComposerKey(msg)
	case focusCommentEdit:
		return m.handleCommentEditKey(msg)
	case focusIssueEdit:
		return m.handleIssueEditKey(msg)
	case focusImagePath:
		return m.handleImagePathKey(msg)
	}
	return m.handleCommentsKey(msg)
}

func (m Model) handleCommentsKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m.close()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.thread.Len()-1 {
			m.cursor++
		}
	case "e":
		if c, ok := m.selected(); ok && comments.CanModify(m.user, c) {
			m.thread.BeginEdit(c)
			m.editInput.SetValue(m.thread.EditText())
			m.editInput.Focus()
			m.focus = focusCommentEdit
		}
	case "d":
		if c, ok := m.selected(); ok && comments.CanModify(m.user, c) {
			m.confirmDelete = c.ID
		}
	case "c", "tab":
		m.composerInput.Focus()
		m.focus = focusComposer
	case "E":
		draft := issues.NewDraft(m.issue)
		m.titleInput.SetValue(draft.Title)
		m.descInput.SetValue(draft.Description)
		m.titleFocused = true
		m.titleInput.Focus()
		m.descInput.Blur()
		m.focus = focusIssueEdit
	case "i":
		return m.beginImagePath(focusComments)
	case "r":
		return m.reload()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.composerInput.Blur()
		m.focus = focusComments
		return m, nil
	case "ctrl+s":
		return m.submitComment()
	case "ctrl+o":
		return m.beginImagePath(focusComposer)
	}

	if m.composer.InFlight() {
		return m, nil
	}
	var cmd tea.Cmd
	m.composerInput, cmd = m.composerInput.Update(msg)
	m.composer.Draft = m.composerInput.Value()
	return m, cmd
}

func (m Model) submitComment() (Model, tea.Cmd) {
	m.composer.Draft = m.composerInput.Value()
	text, ok := m.composer.Begin()
	if !ok {
		return m, nil
	}
	return m, tea.Batch(
		addComment(m.service, m.timeout, m.issue.ID, m.user, text),
		m.spinner.Tick,
	)
}

func (m Model) handleCommentEditKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.thread.CancelEdit()
		m.editInput.Blur()
		m.savingEdit = false
		m.focus = focusComments
		return m, nil
	case "ctrl+s":
		if m.savingEdit {
			return m, nil
		}
		m.thread.SetEditText(m.editInput.Value())
		text := m.thread.EditedText()
		if comments.IsBlank(text) {
			return m, nil
		}
		m.savingEdit = true
		return m, editComment(m.service, m.timeout, m.user, m.thread.Editing(), text)
	}

	if m.savingEdit {
		return m, nil
	}
	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(msg)
	m.thread.SetEditText(m.editInput.Value())
	return m, cmd
}

func (m Model) handleIssueEditKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.titleInput.Blur()
		m.descInput.Blur()
		m.focus = focusComments
		return m, nil
	case "tab":
		m.titleFocused = !m.titleFocused
		if m.titleFocused {
			m.descInput.Blur()
			m.titleInput.Focus()
		} else {
			m.titleInput.Blur()
			m.descInput.Focus()
		}
		return m, nil
	case "ctrl+s":
		return m.saveIssue()
	}

	var cmd tea.Cmd
	if m.titleFocused {
		m.titleInput, cmd = m.titleInput.Update(msg)
	} else {
		m.descInput, cmd = m.descInput.Update(msg)
	}
	return m, cmd
}

func (m Model) saveIssue() (Model, tea.Cmd) {
	draft := issues.Draft{
		Title:       m.titleInput.Value(),
		Description: m.descInput.Value(),
	}
	if draft.BlankTitle() {
		logrus.WithField("issue", m.issue.ID).Warn("Saving issue with a blank title")
	}

	m.titleInput.Blur()
	m.descInput.Blur()
	m.focus = focusComments

	update := issues.Diff(m.issue, draft)
	logrus.WithFields(logrus.Fields{
		"issue":  m.issue.ID,
		"fields": strings.Join(sets.List(issues.ChangedFields(update)), ","),
	}).Debug("Saving issue")

	m.issue = update.Apply(m.issue)
	if m.onUpdate == nil {
		return m, nil
	}
	return m, m.onUpdate(m.issue.ID, update)
}

func (m Model) beginImagePath(from focusArea) (Model, tea.Cmd) {
	if m.uploading || m.composer.InFlight() {
		return m, nil
	}
	m.imageReturn = from
	m.composerInput.Blur()
	m.pathInput.Reset()
	m.pathInput.Focus()
	m.focus = focusImagePath
	return m, nil
}

func (m Model) handleImagePathKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.pathInput.Blur()
		return m.returnFromImagePath(), nil
	case "enter":
		path := strings.TrimSpace(m.pathInput.Value())
		m.pathInput.Blur()
		if path == "" {
			return m.returnFromImagePath(), nil
		}
		file, err := imageenc.Inspect(path)
		if err != nil {
			m = m.returnFromImagePath()
			m.alert = imageenc.AlertMessage(err)
			return m, nil
		}
		m.uploading = true
		m.composerInput.Focus()
		m.focus = focusComposer
		return m, tea.Batch(encodeImage(file), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) returnFromImagePath() Model {
	m.focus = m.imageReturn
	if m.focus == focusComposer {
		m.composerInput.Focus()
	}
	return m
}

// forwardToInput passes non-key messages, like cursor blinks and pastes, to the focused input
func (m Model) forwardToInput(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusComposer:
		m.composerInput, cmd = m.composerInput.Update(msg)
		m.composer.Draft = m.composerInput.Value()
	case focusCommentEdit:
		m.editInput, cmd = m.editInput.Update(msg)
		m.thread.SetEditText(m.editInput.Value())
	case focusIssueEdit:
		if m.titleFocused {
			m.titleInput, cmd = m.titleInput.Update(msg)
		} else {
			m.descInput, cmd = m.descInput.Update(msg)
		}
	case focusImagePath:
		m.pathInput, cmd = m.pathInput.Update(msg)
	}
	return m, cmd
}

func (m Model) reload() (Model, tea.Cmd) {
	m.loadSeq++
	return m, loadComments(m.service, m.timeout, m.issue.ID, m.loadSeq)
}

func (m Model) close() (Model, tea.Cmd) {
	m.closed = true
	if m.onClose == nil {
		return m, tea.Quit
	}
	return m, m.onClose()
}

func (m Model) busy() bool {
	return m.composer.InFlight() || m.uploading
}

func (m Model) selected() (model.Comment, bool) {
	return m.thread.At(m.cursor)
}

func (m Model) hasComment(id string) bool {
	for _, c := range m.thread.Comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (m *Model) clampCursor() {
	if m.cursor >= m.thread.Len() {
		m.cursor = m.thread.Len() - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
