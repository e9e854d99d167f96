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
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig selects and configures the persistence backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// FetchConfig governs the polite fetcher.
type FetchConfig struct {
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
	Retries               int     `mapstructure:"retries"`
	UserAgent             string  `mapstructure:"user_agent"`
	RobotsCacheTTLSeconds int     `mapstructure:"robots_cache_ttl_seconds"`
	DomainQPS             float64 `mapstructure:"domain_qps"`
	MaxBodyBytes          int64   `mapstructure:"max_body_bytes"`
}

// DedupConfig tunes duplicate detection.
type DedupConfig struct {
	SimhashHammingThreshold int  `mapstructure:"simhash_hamming_threshold"`
	NearDuplicateCheck      bool `mapstructure:"near_duplicate_check"`
	FingerprintWindow       int  `mapstructure:"fingerprint_window"`
}

// EnrichConfig tunes the enrichment step.
type EnrichConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	SummaryMaxChars int  `mapstructure:"summary_max_chars"`
	KeywordTopK     int  `mapstructure:"keyword_top_k"`
	TimeoutSeconds  int  `mapstructure:"timeout_seconds"`
}

// EmbedConfig is consumed by the external embedding subsystem; the core only
// validates and passes it through.
type EmbedConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// SchedulerConfig controls the periodic ingest-all trigger.
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
}

// NotifierConfig selects the new-article notification provider.
type NotifierConfig struct {
	Provider   string       `mapstructure:"provider"`
	WebhookURL string       `mapstructure:"webhook_url"`
	PubSub     PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSINGEST")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("fetch.timeout_seconds", 8)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.user_agent", "hua-news-fetcher/0.1")
	v.SetDefault("fetch.robots_cache_ttl_seconds", 3600)
	v.SetDefault("fetch.domain_qps", 1.0)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)
	v.SetDefault("dedup.simhash_hamming_threshold", 4)
	v.SetDefault("dedup.near_duplicate_check", false)
	v.SetDefault("dedup.fingerprint_window", 200)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.summary_max_chars", 200)
	v.SetDefault("enrich.keyword_top_k", 8)
	v.SetDefault("enrich.timeout_seconds", 5)
	v.SetDefault("embed.chunk_size", 800)
	v.SetDefault("embed.chunk_overlap", 120)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_seconds", 3600)
	v.SetDefault("notifier.provider", "noop")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown db.provider: %s", c.DB.Provider)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must be >= 0")
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	if c.Fetch.DomainQPS <= 0 {
		return fmt.Errorf("fetch.domain_qps must be > 0")
	}
	if c.Dedup.SimhashHammingThreshold < 0 || c.Dedup.SimhashHammingThreshold > 64 {
		return fmt.Errorf("dedup.simhash_hamming_threshold must be in [0, 64]")
	}
	if c.Dedup.FingerprintWindow <= 0 {
		return fmt.Errorf("dedup.fingerprint_window must be > 0")
	}
	if c.Enrich.SummaryMaxChars <= 0 {
		return fmt.Errorf("enrich.summary_max_chars must be > 0")
	}
	if c.Enrich.KeywordTopK <= 0 {
		return fmt.Errorf("enrich.keyword_top_k must be > 0")
	}
	if c.Embed.ChunkSize <= 0 || c.Embed.ChunkOverlap < 0 || c.Embed.ChunkOverlap >= c.Embed.ChunkSize {
		return fmt.Errorf("embed.chunk_overlap must be in [0, embed.chunk_size)")
	}
	if c.Scheduler.Enabled && c.Scheduler.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.interval_seconds must be > 0 when the scheduler is enabled")
	}
	switch c.Notifier.Provider {
	case "noop":
	case "webhook":
		if c.Notifier.WebhookURL == "" {
			return fmt.Errorf("notifier.webhook_url must be set when notifier.provider is webhook")
		}
	case "pubsub":
		if c.Notifier.PubSub.ProjectID == "" || c.Notifier.PubSub.Topic == "" {
			return fmt.Errorf("notifier.pubsub.project_id and topic must be set when notifier.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notifier.provider: %s", c.Notifier.Provider)
	}
	return nil
}

// FetchTimeout returns the HTTP timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RobotsCacheTTL returns the robots cache lifetime as a duration.
func (c Config) RobotsCacheTTL() time.Duration {
	return time.Duration(c.Fetch.RobotsCacheTTLSeconds) * time.Second
}

// EnrichTimeout returns the per-item enrichment budget as a duration.
func (c Config) EnrichTimeout() time.Duration {
	return time.Duration(c.Enrich.TimeoutSeconds) * time.Second
}

// SchedulerInterval returns the periodic trigger interval as a duration.
func (c Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}
