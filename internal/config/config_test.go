package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
registry:
  base_url: https://register.test
  search_url: https://register.test/search
  timeout_seconds: 20
  user_agents:
    - agent-a
    - agent-b
  rotate_every: 5
discovery:
  mode: multi
  max_depth: 3
  pagination_limit: 20
  include_suburbs: true
  retry_delay_seconds: 2
extraction:
  save_interval: 25
  csv_path: out/records.csv
throttle:
  base_delay_seconds: 10
  short_threshold: 2
checkpoint:
  dir: out/checkpoints
export:
  backend: gcs
  gcs_bucket: artifacts
db:
  enabled: true
  dsn: postgres://localhost/regharvest
pubsub:
  enabled: true
  project_id: my-project
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Registry.SearchURL != "https://register.test/search" {
		t.Fatalf("expected search URL override, got %q", cfg.Registry.SearchURL)
	}
	if len(cfg.Registry.UserAgents) != 2 || cfg.Registry.RotateEvery != 5 {
		t.Fatalf("expected user agent overrides to apply: %+v", cfg.Registry)
	}
	if cfg.Discovery.Mode != "multi" || !cfg.Discovery.IncludeSuburbs {
		t.Fatalf("expected discovery overrides to apply: %+v", cfg.Discovery)
	}
	if cfg.Discovery.MaxRetries != 2 {
		t.Fatalf("expected default max retries, got %d", cfg.Discovery.MaxRetries)
	}
	if cfg.Extraction.SaveInterval != 25 || cfg.Extraction.CSVPath != "out/records.csv" {
		t.Fatalf("expected extraction overrides to apply: %+v", cfg.Extraction)
	}
	if cfg.Extraction.BackupPath != "data/practitioners.jsonl" {
		t.Fatalf("expected default backup path, got %q", cfg.Extraction.BackupPath)
	}
	if cfg.Throttle.BaseDelaySeconds != 10 || cfg.Throttle.LongThreshold != 3 {
		t.Fatalf("expected throttle merge of overrides and defaults: %+v", cfg.Throttle)
	}
	if cfg.Export.Backend != "gcs" || cfg.Export.GCSBucket != "artifacts" {
		t.Fatalf("expected export overrides to apply: %+v", cfg.Export)
	}
	if cfg.DB.Table != "practitioners" {
		t.Fatalf("expected default db table, got %q", cfg.DB.Table)
	}
	if got := cfg.RetryDelay(); got != 2*time.Second {
		t.Fatalf("expected retry delay 2s, got %v", got)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discovery.Mode != "adaptive" || cfg.Discovery.MaxDepth != 4 {
		t.Fatalf("expected discovery defaults: %+v", cfg.Discovery)
	}
	if cfg.Throttle.BaseDelaySeconds != 15 || cfg.Throttle.MinDelaySeconds != 13 {
		t.Fatalf("expected throttle defaults: %+v", cfg.Throttle)
	}
	if cfg.Checkpoint.SaveInterval != 50 {
		t.Fatalf("expected checkpoint save interval default, got %d", cfg.Checkpoint.SaveInterval)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Registry: RegistryConfig{
			BaseURL:   "https://register.test",
			SearchURL: "https://register.test/search",
		},
		Discovery:  DiscoveryConfig{Mode: "adaptive", MaxDepth: 4},
		Throttle:   ThrottleConfig{BaseDelaySeconds: 15},
		Checkpoint: CheckpointConfig{Dir: "data/checkpoints"},
		Export:     ExportConfig{Backend: "local"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "missing search url",
			cfg: func() Config {
				c := base
				c.Registry.SearchURL = ""
				return c
			}(),
			want: "registry.search_url",
		},
		{
			name: "unknown mode",
			cfg: func() Config {
				c := base
				c.Discovery.Mode = "exhaustive"
				return c
			}(),
			want: "discovery.mode",
		},
		{
			name: "invalid max depth",
			cfg: func() Config {
				c := base
				c.Discovery.MaxDepth = 0
				return c
			}(),
			want: "discovery.max_depth",
		},
		{
			name: "db enabled without dsn",
			cfg: func() Config {
				c := base
				c.DB.Enabled = true
				return c
			}(),
			want: "db.dsn",
		},
		{
			name: "pubsub enabled without project",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				return c
			}(),
			want: "pubsub.project_id",
		},
		{
			name: "gcs backend without bucket",
			cfg: func() Config {
				c := base
				c.Export.Backend = "gcs"
				return c
			}(),
			want: "export.gcs_bucket",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
