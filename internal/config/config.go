// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	MaxPagesDefault int    `mapstructure:"max_pages_default"`
	StrictBudget    bool   `mapstructure:"strict_budget"`
	RespectRobots   bool   `mapstructure:"respect_robots"`
	FetchTimeoutSec int    `mapstructure:"fetch_timeout_seconds"`
	Workers         int    `mapstructure:"workers"`
	QueueDepth      int    `mapstructure:"queue_depth"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"` // memory, local, gcs
	LocalDir         string `mapstructure:"local_dir"`
	GCSBucket        string `mapstructure:"gcs_bucket"`
	ArtifactTTLMin   int    `mapstructure:"artifact_ttl_minutes"`
	SweepIntervalMin int    `mapstructure:"sweep_interval_minutes"`
}

// DBConfig controls the optional Postgres job store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// QueueConfig selects the job queue backend.
type QueueConfig struct {
	Backend        string `mapstructure:"backend"` // memory, pubsub
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OMNIDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("crawler.user_agent", "omnidocs-bot/0.1")
	v.SetDefault("crawler.max_pages_default", 100)
	v.SetDefault("crawler.strict_budget", false)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.fetch_timeout_seconds", 20)
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "./artifacts")
	v.SetDefault("storage.artifact_ttl_minutes", 60)
	v.SetDefault("storage.sweep_interval_minutes", 10)
	v.SetDefault("db.table", "jobs")
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Queue.Backend {
	case "memory":
	case "pubsub":
		if c.Queue.ProjectID == "" || c.Queue.TopicID == "" {
			return fmt.Errorf("queue.project_id and queue.topic_id must be set for pubsub")
		}
	default:
		return fmt.Errorf("unknown queue.backend %q", c.Queue.Backend)
	}
	return nil
}

// ArtifactTTL returns the artifact retention window.
func (c Config) ArtifactTTL() time.Duration {
	return time.Duration(c.Storage.ArtifactTTLMin) * time.Minute
}

// SweepInterval returns how often the expiry sweeper runs.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Storage.SweepIntervalMin) * time.Minute
}

// ServerTimeout returns the per-request handler timeout.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.FetchTimeoutSec) * time.Second
}
