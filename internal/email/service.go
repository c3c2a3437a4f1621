// Package email sends dashboard notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain text fallback part
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-glazeme"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type ReviewNotificationData struct {
	AppName    string
	ClientName string
	Rating     int
	Summary    string
}

type DeploymentNotificationData struct {
	AppName     string
	Environment string
	Platform    string
	Version     string
	Status      string
	Notes       string
}

// SendReviewNotification alerts the admin that a new client review landed.
func (s *Service) SendReviewNotification(to, clientName string, rating int, summary string) error {
	data := ReviewNotificationData{
		AppName:    "GlazeMe",
		ClientName: clientName,
		Rating:     rating,
		Summary:    summary,
	}

	subject := fmt.Sprintf("New client review from %s", clientName)
	html, err := renderTemplate(reviewEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render review template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendDeploymentNotification alerts the admin about a deployment status change.
func (s *Service) SendDeploymentNotification(to, environment, platform, version, status, notes string) error {
	data := DeploymentNotificationData{
		AppName:     "GlazeMe",
		Environment: environment,
		Platform:    platform,
		Version:     version,
		Status:      status,
		Notes:       notes,
	}

	subject := fmt.Sprintf("Deployment %s: %s %s", status, environment, version)
	html, err := renderTemplate(deploymentEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render deployment template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reviewEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New review on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #7c3aed; padding-bottom: 10px; margin-bottom: 20px; }
        .rating { font-size: 20px; color: #f59e0b; }
        .summary { background: #f8f8f8; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>New review from {{.ClientName}}</h2>

    <p class="rating">Rating: {{.Rating}}/5</p>

    <div class="summary">{{.Summary}}</div>

    <div class="footer">
        <p>You are receiving this because review notifications are enabled on your {{.AppName}} dashboard.</p>
    </div>
</body>
</html>`

const deploymentEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Deployment update on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #7c3aed; padding-bottom: 10px; margin-bottom: 20px; }
        .meta { background: #f8f8f8; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .meta td { padding: 4px 12px 4px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Deployment {{.Status}}</h2>

    <table class="meta">
        <tr><td>Environment</td><td>{{.Environment}}</td></tr>
        <tr><td>Platform</td><td>{{.Platform}}</td></tr>
        <tr><td>Version</td><td>{{.Version}}</td></tr>
    </table>

    {{if .Notes}}<p>{{.Notes}}</p>{{end}}

    <div class="footer">
        <p>You are receiving this because deployment notifications are enabled on your {{.AppName}} dashboard.</p>
    </div>
</body>
</html>`
