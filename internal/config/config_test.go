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
  timeout_seconds: 30
crawler:
  user_agent: docs-agent
  max_pages_default: 50
  strict_budget: true
  respect_robots: false
  fetch_timeout_seconds: 10
  workers: 4
storage:
  backend: local
  local_dir: /tmp/artifacts
  artifact_ttl_minutes: 120
queue:
  backend: memory
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
	if cfg.Crawler.MaxPagesDefault != 50 || !cfg.Crawler.StrictBudget {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Storage.Backend != "local" || cfg.Storage.LocalDir != "/tmp/artifacts" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if got := cfg.ArtifactTTL(); got != 2*time.Hour {
		t.Fatalf("expected artifact TTL 2h, got %v", got)
	}
	if got := cfg.ServerTimeout(); got != 30*time.Second {
		t.Fatalf("expected server timeout 30s, got %v", got)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxPagesDefault != 100 {
		t.Fatalf("expected default page budget 100, got %d", cfg.Crawler.MaxPagesDefault)
	}
	if cfg.Storage.Backend != "memory" || cfg.Queue.Backend != "memory" {
		t.Fatalf("expected in-memory defaults: %+v %+v", cfg.Storage, cfg.Queue)
	}
	if got := cfg.SweepInterval(); got != 10*time.Minute {
		t.Fatalf("expected default sweep interval 10m, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{MaxPagesDefault: 100, Workers: 2},
		Storage: StorageConfig{Backend: "memory"},
		Queue:   QueueConfig{Backend: "memory"},
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
			name: "invalid page budget",
			cfg: func() Config {
				c := base
				c.Crawler.MaxPagesDefault = 0
				return c
			}(),
			want: "crawler.max_pages_default",
		},
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Crawler.Workers = 0
				return c
			}(),
			want: "crawler.workers",
		},
		{
			name: "local backend missing dir",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "local"
				return c
			}(),
			want: "storage.local_dir",
		},
		{
			name: "gcs backend missing bucket",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "gcs"
				return c
			}(),
			want: "storage.gcs_bucket",
		},
		{
			name: "unknown storage backend",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "s3"
				return c
			}(),
			want: "storage.backend",
		},
		{
			name: "pubsub missing project",
			cfg: func() Config {
				c := base
				c.Queue.Backend = "pubsub"
				return c
			}(),
			want: "queue.project_id",
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
