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
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
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
				From: "test@example.com",
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

func TestRenderWelcomeTemplate(t *testing.T) {
	data := WelcomeData{
		AppName:  "Shared Scriptures",
		UserName: "Test Reader",
	}

	html, err := renderTemplate(welcomeEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Shared Scriptures") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test Reader") {
		t.Error("template should contain user name")
	}
}

func TestRenderGroupJoinTemplate(t *testing.T) {
	data := GroupJoinData{
		AppName:    "Shared Scriptures",
		OwnerName:  "Priscilla",
		MemberName: "Aquila",
		GroupName:  "Romans Deep Dive",
	}

	html, err := renderTemplate(groupJoinEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Priscilla") {
		t.Error("template should contain owner name")
	}
	if !strings.Contains(html, "Aquila") {
		t.Error("template should contain member name")
	}
	if !strings.Contains(html, "Romans Deep Dive") {
		t.Error("template should contain group name")
	}
}
