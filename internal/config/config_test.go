package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath == "" {
		t.Error("expected a default db path")
	}
	if cfg.Timezone == "" {
		t.Error("expected a default timezone")
	}
	if !cfg.Notify {
		t.Error("notify should default to true")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "db: /tmp/conductor-test.db\ntimezone: America/New_York\nactor: amartin\nnotify: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/conductor-test.db" {
		t.Errorf("db = %q", cfg.DBPath)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Actor != "amartin" {
		t.Errorf("actor = %q", cfg.Actor)
	}
	if cfg.Notify {
		t.Error("notify should be false")
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CONDUCTOR_TIMEZONE", "UTC")
	t.Setenv("CONDUCTOR_ACTOR", "cron")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.Actor != "cron" {
		t.Errorf("actor = %q, want cron", cfg.Actor)
	}
}
