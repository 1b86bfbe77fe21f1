package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/plantcare/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if cfg.Validate() == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestStoreConfig_RequiresURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.BaseURL = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "store") {
		t.Fatalf("missing store url should fail, got %v", err)
	}
	cfg.Store.BaseURL = "not a url"
	if cfg.Validate() == nil {
		t.Fatal("malformed store url should fail")
	}
}

func TestSpeciesConfig_EmptyKeyAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Species.APIKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty species key should be allowed: %v", err)
	}
}

func TestRemindersConfig_MinimumInterval(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Reminders.Interval = 10 * time.Millisecond
	if cfg.Validate() == nil {
		t.Fatal("sub-second reminder interval should fail")
	}
}

func TestInboxConfig_PathRequiredWhenEnabled(t *testing.T) {
	cfg := InboxConfig{Enabled: true}
	if cfg.Validate() == nil {
		t.Fatal("enabled inbox without path should fail")
	}
	cfg.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled inbox without path should pass: %v", err)
	}
}

func TestLoadYAMLWithEnv(t *testing.T) {
	t.Setenv("PERENUAL_API_KEY", "sk-test")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
store:
  base_url: https://store.example.com/api
  timeout: 5s
species:
  base_url: https://perenual.com/api
  api_key: ${PERENUAL_API_KEY}
reminders:
  interval: 2m
journal:
  path: ./test.db
inbox:
  enabled: true
  path: ./inbox
  settle: 250ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Species.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Species.APIKey)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.HTTP.EventThrottle != 2*time.Second {
		t.Errorf("http = %+v", cfg.App.HTTP)
	}
	if cfg.Reminders.Interval != 2*time.Minute || cfg.Inbox.Settle != 250*time.Millisecond {
		t.Errorf("durations = %v %v", cfg.Reminders.Interval, cfg.Inbox.Settle)
	}
	if cfg.Store.Timeout != 5*time.Second {
		t.Errorf("store timeout = %v", cfg.Store.Timeout)
	}
}

func TestValidateNamesFailingSection(t *testing.T) {
	tests := []struct {
		section string
		mutate  func(*Config)
	}{
		{"species", func(c *Config) { c.Species.BaseURL = "" }},
		{"reminders", func(c *Config) { c.Reminders.Interval = 0 }},
		{"inbox", func(c *Config) { c.Inbox = InboxConfig{Enabled: true} }},
		{"auth", func(c *Config) { c.Auth = AuthConfig{Mode: AuthModeToken} }},
	}
	for _, tt := range tests {
		t.Run(tt.section, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			var se *pkgconfig.SectionError
			if err := cfg.Validate(); !errors.As(err, &se) || se.Section != tt.section {
				t.Fatalf("err = %v, want failure in section %q", err, tt.section)
			}
		})
	}
}

func TestLoadReportsSectionAndUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("reminders:\n  interval: 10ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := pkgconfig.Load(bad, NewDefaultConfig())
	if err == nil || !strings.Contains(err.Error(), `section "reminders"`) {
		t.Fatalf("err = %v, want reminders section error", err)
	}

	typo := filepath.Join(dir, "typo.yaml")
	if err := os.WriteFile(typo, []byte("species:\n  apikey: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(typo, NewDefaultConfig()); err == nil {
		t.Fatal("misspelt key should be rejected")
	}
}
