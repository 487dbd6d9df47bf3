package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8090" {
		t.Errorf("Port = %s, want 8090", cfg.Server.Port)
	}
	if cfg.Database.Type != "postgres" {
		t.Errorf("Database.Type = %s, want postgres", cfg.Database.Type)
	}
	if cfg.Poller.GetInitialInterval() != 2*time.Second {
		t.Errorf("initial poll interval = %v, want 2s", cfg.Poller.GetInitialInterval())
	}
	if cfg.Poller.GetMaxInterval() != 15*time.Second {
		t.Errorf("max poll interval = %v, want 15s", cfg.Poller.GetMaxInterval())
	}
	if cfg.Poller.GetMaxDuration() != 10*time.Minute {
		t.Errorf("max poll duration = %v, want 10m", cfg.Poller.GetMaxDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfigOverlaysPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9000"
worker:
  step_delay_millis: 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %s, want overlay value 9000", cfg.Server.Port)
	}
	if cfg.Worker.GetStepDelay() != 50*time.Millisecond {
		t.Errorf("step delay = %v, want 50ms", cfg.Worker.GetStepDelay())
	}
	// Untouched sections keep defaults.
	if cfg.Storage.UploadsBucket != "stage-uploads" {
		t.Errorf("UploadsBucket = %s, want default", cfg.Storage.UploadsBucket)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MEILISEARCH_HOST", "http://search:7700")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != "9999" {
		t.Errorf("Port = %s, want env override 9999", cfg.Server.Port)
	}
	if cfg.Search.Meilisearch.Host != "http://search:7700" {
		t.Errorf("Meilisearch host = %s, want env override", cfg.Search.Meilisearch.Host)
	}
	// Unset variables leave file/default values alone.
	if cfg.Database.Type != "postgres" {
		t.Errorf("Database.Type = %s, want untouched default", cfg.Database.Type)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Type = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown database type accepted")
	}

	cfg = DefaultConfig()
	cfg.Worker.PollIntervalSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero worker poll interval accepted")
	}

	cfg = DefaultConfig()
	cfg.Poller.InitialIntervalSeconds = 30
	cfg.Poller.MaxIntervalSeconds = 15
	if err := cfg.Validate(); err == nil {
		t.Error("poller cap below initial interval accepted")
	}
}

func TestWatchDeliversReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("server:\n  port: \"9100\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != "9100" {
			t.Errorf("reloaded Port = %s, want 9100", cfg.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}
