package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"showcheck/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"), "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}
	if cfg.History.WindowDays != 30 || cfg.History.RetentionDays != 90 || cfg.History.RareThreshold != 3 {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("unexpected backend: %q", cfg.Storage.Backend)
	}
	if cfg.Run.Location == nil || cfg.Run.Location.String() != "America/Los_Angeles" {
		t.Errorf("unexpected location: %v", cfg.Run.Location)
	}
	if !cfg.Sources.HouseSeats.Enabled || !cfg.Sources.FirstTix.Enabled {
		t.Error("expected both sources enabled by default")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "showcheck.toml", `
[storage]
backend = "sqlite"
sqlite_path = "/tmp/state.db"

[history]
window_days = 14
retention_days = 60
rare_threshold = 2

[email]
provider = "brevo"
from = "alerts@example.com"

[sources.firsttix]
enabled = false

[logging]
level = "DEBUG"
`)
	t.Setenv("BREVO_API_KEY", "key")
	t.Setenv("NOTIFICATION_EMAIL", "me@example.com")
	t.Setenv("HOUSESEATS_PASSWORD", "secret")
	t.Setenv("PORT", "9090")

	cfg, exists, err := config.Load(path, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/tmp/state.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.History.WindowDays != 14 || cfg.History.RareThreshold != 2 {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Sources.FirstTix.Enabled {
		t.Error("firsttix should be disabled by file")
	}
	if cfg.Sources.HouseSeats.Password != "secret" || cfg.Email.To != "me@example.com" || cfg.Server.Port != "9090" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level not normalized: %q", cfg.Logging.Level)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "FIRSTTIX_EMAIL=file@example.com\nNTFY_TOPIC=https://ntfy.sh/from-file\n")
	t.Setenv("FIRSTTIX_EMAIL", "env@example.com")
	t.Setenv("NTFY_TOPIC", "")

	cfg, _, err := config.Load("", envPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sources.FirstTix.Email != "env@example.com" {
		t.Errorf("process env should win, got %q", cfg.Sources.FirstTix.Email)
	}
}

func TestStorageBucketSelectsGCS(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "shows-bucket")
	cfg, _, err := config.Load("", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.Bucket != "shows-bucket" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown backend", "[storage]\nbackend = \"s3\"\n", "storage.backend"},
		{"retention shorter than window", "[history]\nwindow_days = 30\nretention_days = 10\n", "retention_days"},
		{"zero threshold", "[history]\nrare_threshold = 0\n", "must be positive"},
		{"bad provider", "[email]\nprovider = \"pigeon\"\n", "email.provider"},
		{"gmail without recipient", "[email]\nprovider = \"gmail\"\n", "NOTIFICATION_EMAIL"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"bad timezone", "[run]\ntimezone = \"Mars/Olympus\"\n", "timezone"},
		{"unknown key", "[storage]\nbackedn = \"local\"\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NOTIFICATION_EMAIL", "")
			path := writeFile(t, t.TempDir(), "c.toml", tt.content)
			_, _, err := config.Load(path, "")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
