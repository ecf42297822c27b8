package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
download:
  maxRetries: 5
  backoffStep: 10s
scheduler:
  timezone: UTC
  download: "0 2 * * *"
`)

	cfg := LoadFrom(path)

	if cfg.Database.Driver != "memory" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Download.MaxRetries != 5 || cfg.Download.BackoffStep != 10*time.Second {
		t.Fatalf("unexpected download section: %+v", cfg.Download)
	}
	if cfg.Download.BatchSize != 50 || cfg.Enrich.PageSize != 1000 {
		t.Fatalf("defaults lost: download=%+v enrich=%+v", cfg.Download, cfg.Enrich)
	}
	if cfg.Scheduler.Location() != time.UTC || cfg.Scheduler.Download != "0 2 * * *" {
		t.Fatalf("unexpected scheduler: %+v", cfg.Scheduler)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestLoadFromFallsBackOnBadFile(t *testing.T) {
	cfg := LoadFrom(writeConfig(t, "download: [not a map"))
	if cfg.Download.MaxRetries != 3 {
		t.Fatalf("expected defaults, got %+v", cfg.Download)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(downloadDirEnv, "/data/docs")
	t.Setenv(telegramChatIDEnv, "99")

	cfg := LoadFrom("")
	if cfg.Database.DSN != "postgres://env" || cfg.Download.Dir != "/data/docs" {
		t.Fatalf("env not applied: %+v %+v", cfg.Database, cfg.Download)
	}
	if cfg.Notifications.Telegram.ChatID != "99" {
		t.Fatalf("chat id = %q", cfg.Notifications.Telegram.ChatID)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = ""
	cfg.Download.MaxRetries = 0

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
