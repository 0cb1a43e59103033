package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.URL != "" {
		t.Fatalf("database url = %q", cfg.Database.URL)
	}
	if cfg.Auth.TokenTTL() != 24*time.Hour {
		t.Fatalf("ttl = %v", cfg.Auth.TokenTTL())
	}
	day, err := cfg.Scheduler.WeekStartDay()
	if err != nil || day != time.Monday {
		t.Fatalf("week start = %v, %v", day, err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ATTENDANCE_SERVER_ADDR", ":9999")
	t.Setenv("ATTENDANCE_SCHEDULER_WEEK_START", "sunday")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	day, _ := cfg.Scheduler.WeekStartDay()
	if day != time.Sunday {
		t.Fatalf("week start = %v", day)
	}
}

func TestLoadEnvOverrideForEmptyDefaults(t *testing.T) {
	// Keys whose default is the empty string must still pick up env
	// overrides.
	t.Setenv("ATTENDANCE_AUTH_BOOTSTRAP_USERNAME", "admin")
	t.Setenv("ATTENDANCE_AUTH_BOOTSTRAP_PASSWORD", "secret")
	t.Setenv("ATTENDANCE_AUTH_OIDC_ISSUER", "https://issuer.example")
	t.Setenv("ATTENDANCE_AUTH_OIDC_CLIENT_ID", "client")
	t.Setenv("ATTENDANCE_DATABASE_URL", "postgres://localhost/attendance")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.BootstrapUsername != "admin" || cfg.Auth.BootstrapPassword != "secret" {
		t.Fatalf("bootstrap = %q/%q", cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword)
	}
	if cfg.Auth.OIDC.Issuer != "https://issuer.example" || cfg.Auth.OIDC.ClientID != "client" {
		t.Fatalf("oidc = %+v", cfg.Auth.OIDC)
	}
	if cfg.Database.URL != "postgres://localhost/attendance" {
		t.Fatalf("database url = %q", cfg.Database.URL)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.yaml")
	data := []byte("server:\n  addr: \":7070\"\nlog:\n  format: console\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" || cfg.Log.Format != "console" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadRejectsBadWeekStart(t *testing.T) {
	t.Setenv("ATTENDANCE_SCHEDULER_WEEK_START", "someday")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid week_start")
	}
}
