package config

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "plumage.yaml")
	cfg := Default()
	cfg.Archive.Path = "/archives/export.zip"
	cfg.Credentials.BearerToken = "tok"
	cfg.Metrics.Addr = ":9090"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Archive.Path != cfg.Archive.Path {
		t.Fatalf("archive path: %q", got.Archive.Path)
	}
	if got.Credentials.BearerToken != "tok" {
		t.Fatalf("bearer token: %q", got.Credentials.BearerToken)
	}
	if got.Lookup.MaxAttempts != 5 || got.Lookup.RPS != 2.0 {
		t.Fatalf("lookup tuning: %+v", got.Lookup)
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_BEARER_TOKEN", "envtok")
	t.Setenv("METRICS_ADDR", ":9999")
	cfg := Default()
	cfg.ResolveEnv()
	if cfg.Credentials.BearerToken != "envtok" {
		t.Fatalf("bearer token: %q", cfg.Credentials.BearerToken)
	}
	if cfg.Metrics.Addr != ":9999" {
		t.Fatalf("metrics addr: %q", cfg.Metrics.Addr)
	}
	// Explicit values win over the environment.
	cfg.Credentials.BearerToken = "explicit"
	cfg.ResolveEnv()
	if cfg.Credentials.BearerToken != "explicit" {
		t.Fatalf("bearer token overwritten: %q", cfg.Credentials.BearerToken)
	}
}
