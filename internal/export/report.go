package export

import (
	"bytes"
	"context"
	"html/template"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(reportHTML))

// HTMLReport renders the snapshot as a standalone summary page.
func (s *Service) HTMLReport(ctx context.Context) ([]byte, error) {
	data, err := s.reportData(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>GlazeMe Progress Report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1f2937; }
    h1 { border-bottom: 2px solid #7c3aed; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    th, td { border: 1px solid #e5e7eb; padding: 0.4rem 0.6rem; text-align: left; }
    th { background: #f5f3ff; }
    .figures { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #7c3aed; }
  </style>
</head>
<body>
  <h1>GlazeMe Progress Report</h1>
  <div class="meta">Exported {{formatDate .ExportedAt "Jan 2, 2006 15:04 MST"}}</div>
  <div class="figures">
    <strong>{{len .Snapshot.Updates}}</strong> updates ({{.CompletedCount}} completed, {{.TotalAdditions}} lines added) &middot;
    <strong>{{len .Snapshot.Reviews}}</strong> reviews (avg {{printf "%.1f" .AverageRating}}/5) &middot;
    <strong>{{len .Snapshot.Milestones}}</strong> milestones ({{.SuccessRate}}% success) &middot;
    overall progress {{.OverallProgress}}% &middot;
    {{.DeployedCount}} of {{len .Snapshot.Deployments}} deployments live
  </div>
  {{if .Snapshot.Updates}}
  <h2>Build Updates</h2>
  <table>
    <tr><th>Title</th><th>Version</th><th>Status</th><th>Date</th></tr>
    {{range .Snapshot.Updates}}<tr><td>{{.Title}}</td><td>{{.Version}}</td><td>{{.Status}}</td><td>{{formatDate .Date "Jan 2, 2006"}}</td></tr>
    {{end}}
  </table>
  {{end}}
  {{if .Snapshot.Reviews}}
  <h2>Client Reviews</h2>
  <table>
    <tr><th>Client</th><th>Rating</th><th>Summary</th></tr>
    {{range .Snapshot.Reviews}}<tr><td>{{.ClientName}}</td><td>{{.Rating}}/5</td><td>{{.Summary}}</td></tr>
    {{end}}
  </table>
  {{end}}
  {{if .Snapshot.Milestones}}
  <h2>Technical Milestones</h2>
  <table>
    <tr><th>Title</th><th>Category</th><th>Completed</th><th>Tokens</th></tr>
    {{range .Snapshot.Milestones}}<tr><td>{{.Title}}</td><td>{{.Category}}</td><td>{{if .Completed}}yes{{else}}no{{end}}</td><td>{{.Tokens}}</td></tr>
    {{end}}
  </table>
  {{end}}
  {{if .Snapshot.Deployments}}
  <h2>Deployments</h2>
  <table>
    <tr><th>Environment</th><th>Platform</th><th>Version</th><th>Status</th></tr>
    {{range .Snapshot.Deployments}}<tr><td>{{.Environment}}</td><td>{{.Platform}}</td><td>{{.Version}}</td><td>{{.Status}}</td></tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
