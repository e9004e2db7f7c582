package service

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/petr-muller/issuedesk/internal/issuedesk/issues"
	"github.com/petr-muller/issuedesk/internal/issuedesk/model"
	"github.com/petr-muller/issuedesk/internal/issuedesk/render"
)

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"name":          model.DisplayName,
	"comment":       render.HTML,
	"statusClass":   issues.StatusClass,
	"priorityClass": issues.PriorityClass,
	"when":          exportTime,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Issue.ID}}: {{.Issue.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48em; margin: 2em auto; }
.badge { padding: 0.1em 0.5em; border-radius: 4px; background: #ddd; }
.status-open { background: #c8f7c5; } .status-in-progress { background: #ffe0b2; }
.status-resolved { background: #bbdefb; } .status-closed { background: #e0e0e0; }
.priority-high, .priority-critical { background: #ffcdd2; }
.comment { border-top: 1px solid #ddd; padding: 0.5em 0; white-space: pre-wrap; }
.meta { color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<h1>{{.Issue.Title}}</h1>
<p>
<span class="badge status-{{statusClass .Issue.Status}}">{{.Issue.Status}}</span>
<span class="badge priority-{{priorityClass .Issue.Priority}}">{{.Issue.Priority}}</span>
</p>
<p class="meta">{{.Issue.ID}} created by {{name .Issue.CreatedBy}} {{when .Issue.CreatedAt}}{{with .Issue.AssignedTo}}, assigned to {{name .}}{{end}}</p>
<div style="white-space: pre-wrap;">{{.Issue.Description}}</div>
<h2>Comments ({{len .Comments}})</h2>
{{range .Comments}}<div class="comment">
<div class="meta">{{name .CreatedBy}} {{when .CreatedAt}}{{if .UpdatedAt}} (edited){{end}}</div>
{{comment .Text}}
</div>
{{else}}<p class="meta">No comments yet</p>
{{end}}</body>
</html>
`))

type page struct {
	Issue    model.Issue
	Comments []model.Comment
}

func exportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s (%s)", model.FormatTime(t), humanize.Time(t))
}

// Export writes a standalone HTML page with the issue and its comments
func (s *Service) Export(ctx context.Context, issueID string, w io.Writer) error {
	issue, err := s.Issue(ctx, issueID)
	if err != nil {
		return err
	}

	comments, err := s.ListComments(ctx, issueID)
	if err != nil {
		return err
	}

	if err := pageTemplate.Execute(w, page{Issue: issue, Comments: comments}); err != nil {
		return fmt.Errorf("failed to render issue page: %w", err)
	}
	return nil
}
