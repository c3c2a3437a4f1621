package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "admin@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "admin@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "admin@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"x@example.com"}, "subject", "body"); err == nil {
		t.Fatal("expected error when sending with empty config")
	}
}

func TestRenderReviewTemplate(t *testing.T) {
	data := ReviewNotificationData{
		AppName:    "GlazeMe",
		ClientName: "Acme Corp",
		Rating:     4,
		Summary:    "Solid sprint, ship it",
	}

	html, err := renderTemplate(reviewEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "GlazeMe") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Acme Corp") {
		t.Error("template should contain client name")
	}
	if !strings.Contains(html, "4/5") {
		t.Error("template should contain the rating")
	}
	if !strings.Contains(html, "Solid sprint, ship it") {
		t.Error("template should contain the summary")
	}
}

func TestRenderDeploymentTemplate(t *testing.T) {
	data := DeploymentNotificationData{
		AppName:     "GlazeMe",
		Environment: "production",
		Platform:    "railway",
		Version:     "v1.4.2",
		Status:      "success",
		Notes:       "zero downtime",
	}

	html, err := renderTemplate(deploymentEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	for _, want := range []string{"production", "railway", "v1.4.2", "success", "zero downtime"} {
		if !strings.Contains(html, want) {
			t.Errorf("template should contain %q", want)
		}
	}
}

func TestRenderDeploymentTemplateOmitsEmptyNotes(t *testing.T) {
	data := DeploymentNotificationData{
		AppName:     "GlazeMe",
		Environment: "staging",
		Status:      "pending",
	}

	html, err := renderTemplate(deploymentEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if strings.Contains(html, "<p></p>") {
		t.Error("empty notes should not render an empty paragraph")
	}
}
