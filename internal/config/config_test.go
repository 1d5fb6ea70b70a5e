package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  host: 127.0.0.1\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("server port = %d, want default 5000", cfg.Server.Port)
	}
	if cfg.Redis.DB != 1 {
		t.Errorf("redis db = %d, want default 1", cfg.Redis.DB)
	}
	if cfg.Training.MinSamples != 10000 {
		t.Errorf("training min_samples = %d, want default 10000", cfg.Training.MinSamples)
	}
	if cfg.Training.Window() != 24*time.Hour {
		t.Errorf("training window = %v, want 24h", cfg.Training.Window())
	}
	if cfg.Blacklist.BaseURL != "http://backend:3000" {
		t.Errorf("blacklist base url = %q", cfg.Blacklist.BaseURL)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, "database:\n  password: ${TEST_DB_PASSWORD}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("database password = %q, want expanded env value", cfg.Database.Password)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5000 || cfg.Training.KeepVersions != 5 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [not a mapping\n")); err == nil {
		t.Error("Load of malformed YAML: want error")
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "bot", Password: "pw",
		Database: "botscore", SSLMode: "disable",
	}
	want := "host=db port=5432 user=bot password=pw dbname=botscore sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
