package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/petr-muller/issuedesk/internal/issuedesk/comments"
	"github.com/petr-muller/issuedesk/internal/issuedesk/issues"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
	"github.com/petr-muller/issuedesk/internal/issuedesk/render"
)

const (
	defaultWidth      = 80
	defaultListHeight = 10
	maxModalWidth     = 100
	// lines taken by everything around the comment list
	chromeHeight = 22
)

var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Bold(true)

	controlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Padding(0, 2)

	badgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("230"))
)

var (
	statusColors = map[string]lipgloss.Color{
		"open":        lipgloss.Color("28"),  // green
		"in-progress": lipgloss.Color("130"), // orange
		"resolved":    lipgloss.Color("25"),  // blue
		"closed":      lipgloss.Color("240"), // grey
	}
	priorityColors = map[string]lipgloss.Color{
		"low":      lipgloss.Color("240"),
		"medium":   lipgloss.Color("25"),
		"high":     lipgloss.Color("130"),
		"critical": lipgloss.Color("160"),
	}
)

func badge(text string, color lipgloss.Color) string {
	if text == "" {
		return ""
	}
	if color == "" {
		color = lipgloss.Color("238")
	}
	return badgeStyle.Background(color).Render(text)
}

func (m Model) contentWidth() int {
	w := m.width - 4
	if w > maxModalWidth {
		w = maxModalWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) resize() {
	w := m.contentWidth()
	listHeight := m.height - chromeHeight
	if listHeight < 3 {
		listHeight = 3
	}

	m.list.Width = w
	m.list.Height = listHeight
	m.composerInput.SetWidth(w)
	m.editInput.SetWidth(w)
	m.descInput.SetWidth(w)
	m.titleInput.Width = w - 2
	m.pathInput.Width = w - 2
}

// refreshList renders the comment thread into the scrollable list, keeping the selected comment visible
func (m *Model) refreshList() {
	var s strings.Builder
	selectedLine := 0

	if m.thread.Len() == 0 {
		if m.loaded {
			s.WriteString(metaStyle.Render("No comments yet"))
		} else {
			s.WriteString(metaStyle.Render("Loading comments..."))
		}
	}

	line := 0
	for i, c := range m.thread.Comments {
		if i == m.cursor {
			selectedLine = line
		}
		block := m.renderComment(i, c)
		s.WriteString(block)
		s.WriteString("\n")
		line += strings.Count(block, "\n") + 1
	}

	m.list.SetContent(strings.TrimSuffix(s.String(), "\n"))

	if selectedLine < m.list.YOffset {
		m.list.SetYOffset(selectedLine)
	} else if selectedLine >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(selectedLine - m.list.Height + 1)
	}
}

func (m Model) renderComment(i int, c model.Comment) string {
	var s strings.Builder

	marker := "  "
	author := render.Sanitize(model.DisplayName(c.CreatedBy))
	if i == m.cursor && m.focus == focusComments {
		marker = "> "
		author = selectedStyle.Render(author)
	}

	when := "unknown time"
	if !c.CreatedAt.IsZero() {
		when = humanize.Time(c.CreatedAt)
	}
	header := fmt.Sprintf("%s%s %s", marker, author, metaStyle.Render(when))
	if c.UpdatedAt != nil {
		header += metaStyle.Render(" (edited)")
	}
	if m.thread.IsEditing(c.ID) {
		header += controlStyle.Render(" [editing]")
	}
	s.WriteString(header)

	for _, l := range strings.Split(render.Terminal(c.Text), "\n") {
		s.WriteString("\n    ")
		s.WriteString(l)
	}

	if comments.CanModify(m.user, c) {
		s.WriteString("\n    ")
		s.WriteString(controlStyle.Render("[e] Edit  [d] Delete"))
	}
	return s.String()
}

// View renders the modal
func (m Model) View() string {
	if m.closed {
		return ""
	}

	var s strings.Builder

	if m.alert != "" {
		s.WriteString(alertStyle.Render(m.alert))
		s.WriteString("\n")
		s.WriteString(metaStyle.Render("Press any key to continue"))
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderIssue())

	s.WriteString("\n")
	s.WriteString(sectionStyle.Render(fmt.Sprintf("Comments (%d)", m.thread.Len())))
	s.WriteString("\n")
	s.WriteString(m.list.View())
	s.WriteString("\n")

	if m.confirmDelete != "" {
		s.WriteString("\n")
		s.WriteString(alertStyle.Render("Delete this comment? (y/n)"))
		s.WriteString("\n")
	}

	switch m.focus {
	case focusCommentEdit:
		s.WriteString("\n")
		s.WriteString(sectionStyle.Render("Edit comment"))
		s.WriteString("\n")
		s.WriteString(m.editInput.View())
		s.WriteString("\n")
		if m.savingEdit {
			s.WriteString(fmt.Sprintf("%s Saving...\n", m.spinner.View()))
		}
	case focusImagePath:
		s.WriteString("\n")
		s.WriteString(sectionStyle.Render("Attach image"))
		s.WriteString("\n")
		s.WriteString(m.pathInput.View())
		s.WriteString("\n")
	default:
		s.WriteString(m.renderComposer())
	}

	s.WriteString(helpStyle.Render(m.help()))

	return modalStyle.Width(m.contentWidth() + 2).Render(s.String())
}

func (m Model) renderIssue() string {
	var s strings.Builder

	if m.focus == focusIssueEdit {
		s.WriteString(sectionStyle.Render("Edit issue"))
		s.WriteString("\n")
		s.WriteString(m.titleInput.View())
		s.WriteString("\n")
		s.WriteString(m.descInput.View())
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(titleStyle.Render(render.Sanitize(m.issue.Title)))
	s.WriteString("\n")

	badges := []string{
		badge(m.issue.Status, statusColors[issues.StatusClass(m.issue.Status)]),
		badge(m.issue.Priority, priorityColors[issues.PriorityClass(m.issue.Priority)]),
	}
	s.WriteString(strings.TrimSpace(lipgloss.JoinHorizontal(lipgloss.Top, badges[0], " ", badges[1])))
	s.WriteString("\n")

	meta := fmt.Sprintf("%s  Created by %s", m.issue.ID, model.DisplayName(m.issue.CreatedBy))
	if !m.issue.CreatedAt.IsZero() {
		meta += " " + humanize.Time(m.issue.CreatedAt)
	}
	if m.issue.AssignedTo != "" {
		meta += fmt.Sprintf("  Assigned to %s", model.DisplayName(m.issue.AssignedTo))
	}
	s.WriteString(metaStyle.Render(render.Sanitize(meta)))
	s.WriteString("\n")

	if m.issue.Description != "" {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Width(m.contentWidth()).Render(render.Sanitize(m.issue.Description)))
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) renderComposer() string {
	var s strings.Builder

	s.WriteString("\n")
	s.WriteString(sectionStyle.Render("Add a comment"))
	s.WriteString("\n")
	s.WriteString(m.composerInput.View())
	s.WriteString("\n")

	var status []string
	if m.composer.InFlight() {
		status = append(status, fmt.Sprintf("%s Adding...", m.spinner.View()))
	}
	if m.uploading {
		status = append(status, fmt.Sprintf("%s Uploading...", m.spinner.View()))
	} else if n := m.composer.Attachments(); n > 0 {
		status = append(status, metaStyle.Render(fmt.Sprintf("%d image(s) attached", n)))
	}
	if len(status) > 0 {
		s.WriteString(strings.Join(status, "  "))
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) help() string {
	if m.alert != "" {
		return "any key: dismiss"
	}
	if m.confirmDelete != "" {
		return "y: delete  n: keep"
	}

	switch m.focus {
	case focusComposer:
		return "ctrl+s: add comment  ctrl+o: attach image  esc: back"
	case focusCommentEdit:
		return "ctrl+s: save  esc: cancel"
	case focusIssueEdit:
		return "tab: switch field  ctrl+s: save  esc: cancel"
	case focusImagePath:
		return "enter: attach  esc: cancel"
	}
	return "j/k: move  c: comment  i: attach image  E: edit issue  r: reload  q: close"
}
