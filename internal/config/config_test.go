package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.Name != "rya:jobs" {
		t.Fatalf("queue name = %q", cfg.Queue.Name)
	}
	if cfg.Jobs.TTLHours != 24 {
		t.Fatalf("ttl hours = %d", cfg.Jobs.TTLHours)
	}
	if got := len(cfg.Providers.Tiers); got != 3 {
		t.Fatalf("tier count = %d, want 3", got)
	}
	if cfg.Providers.Tiers[0].Name != "pollinations" {
		t.Fatalf("first tier = %q, want pollinations", cfg.Providers.Tiers[0].Name)
	}
	if cfg.Script.WordsPerSecond != 2.5 {
		t.Fatalf("pace = %v", cfg.Script.WordsPerSecond)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
queue:
  name: custom:queue
pipeline:
  max_parallel_visuals: 5
  music_dir: /srv/music
providers:
  tiers:
    - name: replicate
      timeout_seconds: 30
storage:
  provider: gdrive
  local_root: /srv/artifacts
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.Name != "custom:queue" {
		t.Fatalf("queue name = %q", cfg.Queue.Name)
	}
	if cfg.Pipeline.MaxParallelVisuals != 5 {
		t.Fatalf("parallel visuals = %d", cfg.Pipeline.MaxParallelVisuals)
	}
	if len(cfg.Providers.Tiers) != 1 || cfg.Providers.Tiers[0].Name != "replicate" {
		t.Fatalf("tiers = %+v", cfg.Providers.Tiers)
	}
	if cfg.Pipeline.MusicDir != "/srv/music" {
		t.Fatalf("music dir = %q", cfg.Pipeline.MusicDir)
	}
	if cfg.Storage.Provider != "gdrive" || cfg.Storage.LocalRoot != "/srv/artifacts" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	// Untouched sections keep defaults.
	if cfg.Jobs.TTLHours != 24 {
		t.Fatalf("ttl hours = %d", cfg.Jobs.TTLHours)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("JOB_QUEUE_NAME", "env:queue")
	t.Setenv("REPLICATE_API_TOKEN", "tok-123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.Name != "env:queue" {
		t.Fatalf("queue name = %q", cfg.Queue.Name)
	}
	for _, tier := range cfg.Providers.Tiers {
		if tier.Name == "replicate" && tier.APIKey != "tok-123" {
			t.Fatalf("replicate key = %q", tier.APIKey)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
