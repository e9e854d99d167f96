package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "memory", cfg.DB.Provider)
	require.Equal(t, 8*time.Second, cfg.FetchTimeout())
	require.Equal(t, 3, cfg.Fetch.Retries)
	require.Equal(t, time.Hour, cfg.RobotsCacheTTL())
	require.Equal(t, 1.0, cfg.Fetch.DomainQPS)
	require.Equal(t, 4, cfg.Dedup.SimhashHammingThreshold)
	require.False(t, cfg.Dedup.NearDuplicateCheck)
	require.True(t, cfg.Enrich.Enabled)
	require.Equal(t, 200, cfg.Enrich.SummaryMaxChars)
	require.Equal(t, 8, cfg.Enrich.KeywordTopK)
	require.Equal(t, 800, cfg.Embed.ChunkSize)
	require.Equal(t, 120, cfg.Embed.ChunkOverlap)
	require.Equal(t, time.Hour, cfg.SchedulerInterval())
	require.Equal(t, "noop", cfg.Notifier.Provider)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NEWSINGEST_FETCH_TIMEOUT_SECONDS", "20")
	t.Setenv("NEWSINGEST_FETCH_DOMAIN_QPS", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 20*time.Second, cfg.FetchTimeout())
	require.Equal(t, 0.5, cfg.Fetch.DomainQPS)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown db provider", func(c *Config) { c.DB.Provider = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.DB.Provider = "postgres"; c.DB.DSN = "" }},
		{"zero fetch timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }},
		{"negative retries", func(c *Config) { c.Fetch.Retries = -1 }},
		{"empty user agent", func(c *Config) { c.Fetch.UserAgent = "" }},
		{"zero qps", func(c *Config) { c.Fetch.DomainQPS = 0 }},
		{"threshold too large", func(c *Config) { c.Dedup.SimhashHammingThreshold = 65 }},
		{"overlap >= chunk size", func(c *Config) { c.Embed.ChunkOverlap = c.Embed.ChunkSize }},
		{"webhook without url", func(c *Config) { c.Notifier.Provider = "webhook" }},
		{"pubsub without topic", func(c *Config) { c.Notifier.Provider = "pubsub" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
