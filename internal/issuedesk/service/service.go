package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petr-muller/issuedesk/internal/config"
	"github.com/petr-muller/issuedesk/internal/flagutil"
	"github.com/petr-muller/issuedesk/internal/issuedesk/comments"
	"github.com/petr-muller/issuedesk/internal/issuedesk/docstore"
	"github.com/petr-muller/issuedesk/internal/issuedesk/issues"
	"github.com/petr-muller/issuedesk/internal/issuedesk/jira"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
	"github.com/petr-muller/issuedesk/internal/session"
)

// Issue source names accepted in settings
const (
	IssuesFromStore = "store"
	IssuesFromJira  = "jira"
)

// Service wires the document store, the issue source and the session together
type Service struct {
	store    docstore.Store
	issues   issues.Source
	comments *comments.Service
	session  session.Provider
	timeout  time.Duration
}

// NewService builds a service from settings. Jira options are only used when issues come from Jira.
func NewService(settings *config.Settings, jiraOptions flagutil.JiraOptions) (*Service, error) {
	dataDir, err := settings.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine data directory: %w", err)
	}

	store, err := docstore.Open(settings.Store, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	var source issues.Source
	switch strings.ToLower(settings.Issues) {
	case IssuesFromStore, "":
		source = issues.NewDocSource(store)
	case IssuesFromJira:
		jiraOptions.SetFromPFlags()
		if err := jiraOptions.Validate(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("invalid JIRA options: %w", err)
		}
		jiraSource, err := jira.NewSource(jiraOptions)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create JIRA issue source: %w", err)
		}
		source = jiraSource
	default:
		_ = store.Close()
		return nil, fmt.Errorf("unknown issue source %q", settings.Issues)
	}

	logrus.WithFields(logrus.Fields{
		"store":   settings.Store,
		"dataDir": dataDir,
		"issues":  settings.Issues,
	}).Debug("Service configured")

	return New(store, source, sessionFor(settings), settings.Timeout), nil
}

// New assembles a service from its collaborators
func New(store docstore.Store, source issues.Source, provider session.Provider, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return &Service{
		store:    store,
		issues:   source,
		comments: comments.NewService(store),
		session:  provider,
		timeout:  timeout,
	}
}

func sessionFor(settings *config.Settings) session.Provider {
	if settings.IDTokenFile != "" {
		return session.IDToken{Path: settings.IDTokenFile}
	}
	return session.NewStatic(settings.User)
}

// Timeout returns the bound applied to each collaborator call
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// Comments returns the comment service
func (s *Service) Comments() *comments.Service {
	return s.comments
}

// CurrentUser returns the user operating the tool
func (s *Service) CurrentUser(ctx context.Context) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.session.CurrentUser(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to determine current user: %w", err)
	}
	return user, nil
}

// Issue loads an issue
func (s *Service) Issue(ctx context.Context, id string) (model.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return model.Issue{}, fmt.Errorf("failed to load issue %s: %w", id, err)
	}
	return issue, nil
}

// UpdateIssue applies a partial update and returns the issue as stored afterwards
func (s *Service) UpdateIssue(ctx context.Context, id string, update model.IssueUpdate) (model.Issue, error) {
	if !update.IsEmpty() {
		updateCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.issues.Update(updateCtx, id, update)
		cancel()
		if err != nil {
			return model.Issue{}, fmt.Errorf("failed to update issue %s: %w", id, err)
		}
		logrus.WithFields(logrus.Fields{
			"issue":  id,
			"fields": strings.Join(issues.ChangedFields(update).UnsortedList(), ","),
		}).Info("Issue updated")
	}
	return s.Issue(ctx, id)
}

// ListComments returns the comments of an issue, oldest first
func (s *Service) ListComments(ctx context.Context, issueID string) ([]model.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.comments.List(ctx, issueID)
}

// Close releases the document store
func (s *Service) Close() error {
	return s.store.Close()
}
