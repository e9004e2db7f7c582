package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/petr-muller/issuedesk/internal/issuedesk/imageenc"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// CommentService is what the modal needs to read and change comments
type CommentService interface {
	List(ctx context.Context, issueID string) ([]model.Comment, error)
	Add(ctx context.Context, issueID string, author model.User, text string) (string, error)
	Edit(ctx context.Context, user model.User, commentID, text string) error
	Delete(ctx context.Context, user model.User, commentID string) error
}

// IssueUpdatedMsg delivers a refreshed issue to an open modal
type IssueUpdatedMsg struct {
	Issue model.Issue
}

type commentsLoadedMsg struct {
	seq      int
	comments []model.Comment
	err      error
}

type commentAddedMsg struct {
	id  string
	err error
}

type commentSavedMsg struct {
	id  string
	err error
}

type commentDeletedMsg struct {
	id  string
	err error
}

type imageEncodedMsg struct {
	dataURI string
	err     error
}

func withTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func loadComments(svc CommentService, timeout time.Duration, issueID string, seq int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		comments, err := svc.List(ctx, issueID)
		return commentsLoadedMsg{seq: seq, comments: comments, err: err}
	}
}

func addComment(svc CommentService, timeout time.Duration, issueID string, author model.User, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		id, err := svc.Add(ctx, issueID, author, text)
		return commentAddedMsg{id: id, err: err}
	}
}

func editComment(svc CommentService, timeout time.Duration, user model.User, commentID, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return commentSavedMsg{id: commentID, err: svc.Edit(ctx, user, commentID, text)}
	}
}

func deleteComment(svc CommentService, timeout time.Duration, user model.User, commentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return commentDeletedMsg{id: commentID, err: svc.Delete(ctx, user, commentID)}
	}
}

func encodeImage(file imageenc.File) tea.Cmd {
	return func() tea.Msg {
		uri, err := file.Encode()
		return imageEncodedMsg{dataURI: uri, err: err}
	}
}
