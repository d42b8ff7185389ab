package profile

import (
	"os"
	"testing"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SVLLM_DEFAULT_MODEL",
		"SVLLM_API_KEY",
		"SVLLM_CONTEXT_WINDOW",
		"SVLLM_REQUEST_TIMEOUT_SECONDS",
		"SVLLM_VERIFY_BACKEND_URL",
	} {
		os.Unsetenv(key)
	}
}

func TestProfileDefaults(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"DefaultModel default", "gpt-4o-2024-11-20", profile.DefaultModel},
		{"APIKey default", "", profile.APIKey},
		{"VerifyBackendURL default", "", profile.VerifyBackendURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if profile.ContextWindow != 4096 {
		t.Errorf("ContextWindow: expected 4096, got %d", profile.ContextWindow)
	}
	if profile.RequestTimeout != 60 {
		t.Errorf("RequestTimeout: expected 60, got %d", profile.RequestTimeout)
	}
}

func TestProfileFromEnv(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("SVLLM_DEFAULT_MODEL", "claude-3-opus")
	t.Setenv("SVLLM_CONTEXT_WINDOW", "8192")
	t.Setenv("SVLLM_VERIFY_BACKEND_URL", "http://localhost:5000")

	profile := &Profile{}
	profile.FromEnv()

	if profile.DefaultModel != "claude-3-opus" {
		t.Errorf("DefaultModel: expected claude-3-opus, got %q", profile.DefaultModel)
	}
	if profile.ContextWindow != 8192 {
		t.Errorf("ContextWindow: expected 8192, got %d", profile.ContextWindow)
	}
	if profile.VerifyBackendURL != "http://localhost:5000" {
		t.Errorf("VerifyBackendURL: expected http://localhost:5000, got %q", profile.VerifyBackendURL)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{Mode: "bogus", Driver: "sqlite", Data: t.TempDir()}
	profile.FromEnv()
	if err := profile.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if profile.Mode != "demo" {
		t.Errorf("Mode: expected demo fallback, got %q", profile.Mode)
	}
	if profile.DSN == "" {
		t.Error("DSN: expected sqlite DSN to be derived from data dir")
	}
}

func TestValidateUnsupportedDriver(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{Mode: "dev", Driver: "mysql"}
	profile.FromEnv()
	if err := profile.Validate(); err == nil {
		t.Error("Validate() with unsupported driver should return error")
	}
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{Mode: "dev", Driver: "postgres"}
	profile.FromEnv()
	if err := profile.Validate(); err == nil {
		t.Error("Validate() with postgres driver and empty DSN should return error")
	}
}
