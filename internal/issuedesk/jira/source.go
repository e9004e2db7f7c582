package jira

import (
	"context"
	"fmt"
	"time"

	"github.com/andygrunwald/go-jira"
	prowjira "sigs.k8s.io/prow/pkg/jira"

	"github.com/petr-muller/issuedesk/internal/flagutil"
	"github.com/petr-muller/issuedesk/internal/issuedesk/issues"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
)

// issueClient is the subset of JIRA operations the source uses
type issueClient interface {
	GetIssue(id string) (*jira.Issue, error)
	// UpdateFields sends every given field, including empty values
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// prowClient sends field updates through the go-jira client underneath the
// prow one. The typed prow UpdateIssue omits empty fields, so it cannot clear them.
type prowClient struct {
	prowjira.Client
}

func (c prowClient) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	resp, err := c.JiraClient().Issue.UpdateIssueWithContext(ctx, id, map[string]interface{}{"fields": fields})
	if err != nil {
		return jira.NewJiraError(resp, err)
	}
	return nil
}

// Source reads and updates issues in JIRA
type Source struct {
	jiraClient issueClient
}

var _ issues.Source = &Source{}

// NewSource creates a new JIRA issue source using the existing flagutil pattern
func NewSource(jiraOptions flagutil.JiraOptions) (*Source, error) {
	jiraClient, err := jiraOptions.Client()
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	return &Source{
		jiraClient: prowClient{Client: jiraClient},
	}, nil
}

// Get fetches a JIRA issue by its key
func (s *Source) Get(_ context.Context, id string) (model.Issue, error) {
	issue, err := s.jiraClient.GetIssue(id)
	if prowjira.IsNotFound(err) {
		return model.Issue{}, fmt.Errorf("%w: %s", issues.ErrNotFound, id)
	}
	if err != nil {
		return model.Issue{}, fmt.Errorf("failed to get issue %s: %w", id, err)
	}
	if issue == nil {
		return model.Issue{}, fmt.Errorf("%w: %s", issues.ErrNotFound, id)
	}
	return convertIssue(*issue), nil
}

// Update sets the summary and description of a JIRA issue. Empty values clear the field.
func (s *Source) Update(ctx context.Context, id string, update model.IssueUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	fields := map[string]interface{}{}
	if update.Title != nil {
		fields["summary"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}

	if err := s.jiraClient.UpdateFields(ctx, id, fields); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", id, err)
	}
	return nil
}

// convertIssue converts a go-jira Issue to the modal's Issue
func convertIssue(issue jira.Issue) model.Issue {
	result := model.Issue{ID: issue.Key}
	if issue.Fields == nil {
		return result
	}

	result.Title = issue.Fields.Summary
	result.Description = issue.Fields.Description
	result.CreatedAt = time.Time(issue.Fields.Created)

	if issue.Fields.Status != nil {
		result.Status = issue.Fields.Status.Name
	}

	if issue.Fields.Priority != nil {
		result.Priority = issue.Fields.Priority.Name
	}

	// Prefer e-mail addresses so authorship matches session identities
	result.CreatedBy = userID(issue.Fields.Reporter)
	if result.CreatedBy == "" {
		result.CreatedBy = userID(issue.Fields.Creator)
	}
	result.AssignedTo = userID(issue.Fields.Assignee)

	return result
}

func userID(user *jira.User) string {
	if user == nil {
		return ""
	}
	switch {
	case user.EmailAddress != "":
		return user.EmailAddress
	case user.Name != "":
		return user.Name
	default:
		return user.DisplayName
	}
}
