// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Export     ExportConfig     `mapstructure:"export"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RegistryConfig points at the public register and tunes how it is fetched.
type RegistryConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	SearchURL         string   `mapstructure:"search_url"`
	DetailPath        string   `mapstructure:"detail_path"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	NavTimeoutSeconds int      `mapstructure:"nav_timeout_seconds"`
	UserAgents        []string `mapstructure:"user_agents"`
	RotateEvery       int      `mapstructure:"rotate_every"`
}

// DiscoveryConfig governs the search phase.
type DiscoveryConfig struct {
	Mode              string `mapstructure:"mode"`
	MaxDepth          int    `mapstructure:"max_depth"`
	PageLimit         int    `mapstructure:"page_limit"`
	PaginationLimit   int    `mapstructure:"pagination_limit"`
	IncludeSuburbs    bool   `mapstructure:"include_suburbs"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
}

// ExtractionConfig governs the detail extraction phase.
type ExtractionConfig struct {
	SaveInterval int    `mapstructure:"save_interval"`
	CSVPath      string `mapstructure:"csv_path"`
	BackupPath   string `mapstructure:"backup_path"`
}

// ThrottleConfig tunes request pacing and cooldowns.
type ThrottleConfig struct {
	BaseDelaySeconds     int `mapstructure:"base_delay_seconds"`
	FailureStepSeconds   int `mapstructure:"failure_step_seconds"`
	JitterSeconds        int `mapstructure:"jitter_seconds"`
	MinDelaySeconds      int `mapstructure:"min_delay_seconds"`
	ShortThreshold       int `mapstructure:"short_threshold"`
	ShortCooldownMinutes int `mapstructure:"short_cooldown_minutes"`
	LongThreshold        int `mapstructure:"long_threshold"`
	LongCooldownMinutes  int `mapstructure:"long_cooldown_minutes"`
}

// CheckpointConfig locates progress files.
type CheckpointConfig struct {
	Dir          string `mapstructure:"dir"`
	SaveInterval int    `mapstructure:"save_interval"`
}

// ExportConfig selects the blob backend for run artifacts.
type ExportConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres record store.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// PubSubConfig holds metadata for record event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REGHARVEST")
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
	v.SetDefault("registry.base_url", "https://register.example.gov.au")
	v.SetDefault("registry.search_url", "https://register.example.gov.au/search")
	v.SetDefault("registry.detail_path", "/registers/practitioner/")
	v.SetDefault("registry.timeout_seconds", 30)
	v.SetDefault("registry.nav_timeout_seconds", 45)
	v.SetDefault("registry.rotate_every", 10)
	v.SetDefault("discovery.mode", "adaptive")
	v.SetDefault("discovery.max_depth", 4)
	v.SetDefault("discovery.page_limit", 100)
	v.SetDefault("discovery.pagination_limit", 10)
	v.SetDefault("discovery.include_suburbs", false)
	v.SetDefault("discovery.max_retries", 2)
	v.SetDefault("discovery.retry_delay_seconds", 5)
	v.SetDefault("extraction.save_interval", 50)
	v.SetDefault("extraction.csv_path", "data/practitioners.csv")
	v.SetDefault("extraction.backup_path", "data/practitioners.jsonl")
	v.SetDefault("throttle.base_delay_seconds", 15)
	v.SetDefault("throttle.failure_step_seconds", 5)
	v.SetDefault("throttle.jitter_seconds", 2)
	v.SetDefault("throttle.min_delay_seconds", 13)
	v.SetDefault("throttle.short_threshold", 3)
	v.SetDefault("throttle.short_cooldown_minutes", 5)
	v.SetDefault("throttle.long_threshold", 3)
	v.SetDefault("throttle.long_cooldown_minutes", 30)
	v.SetDefault("checkpoint.dir", "data/checkpoints")
	v.SetDefault("checkpoint.save_interval", 50)
	v.SetDefault("export.backend", "local")
	v.SetDefault("export.local_dir", "data/exports")
	v.SetDefault("export.prefix", "runs")
	v.SetDefault("db.table", "practitioners")
	v.SetDefault("pubsub.topic", "practitioner-records")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Registry.SearchURL == "" {
		return fmt.Errorf("registry.search_url must be set")
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url must be set")
	}
	switch c.Discovery.Mode {
	case "adaptive", "comprehensive", "multi":
	default:
		return fmt.Errorf("discovery.mode must be adaptive, comprehensive, or multi")
	}
	if c.Discovery.MaxDepth <= 0 {
		return fmt.Errorf("discovery.max_depth must be > 0")
	}
	if c.Throttle.BaseDelaySeconds <= 0 {
		return fmt.Errorf("throttle.base_delay_seconds must be > 0")
	}
	if c.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint.dir must be set")
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db is enabled")
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
	}
	switch c.Export.Backend {
	case "local", "gcs":
	default:
		return fmt.Errorf("export.backend must be local or gcs")
	}
	if c.Export.Backend == "gcs" && c.Export.GCSBucket == "" {
		return fmt.Errorf("export.gcs_bucket must be set for the gcs backend")
	}
	return nil
}

// RetryDelay converts the discovery retry knob into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Discovery.RetryDelaySeconds) * time.Second
}
