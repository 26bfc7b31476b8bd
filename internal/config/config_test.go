package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
	assert.Equal(t, 100, cfg.Server.RatePerMinute)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "openai", cfg.Analysis.Provider)
	assert.Equal(t, "24h", cfg.Views.TrendingDefaultPeriod)
	assert.Equal(t, 5, cfg.Similarity.MaxMatches)
	assert.InDelta(t, 0.82, cfg.Similarity.MinSimilarity, 0.001)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9191
analysis:
  provider: anthropic
views:
  trending_default_period: 7d
  cache_ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Analysis.Provider)
	assert.Equal(t, "7d", cfg.Views.TrendingDefaultPeriod)
	assert.Equal(t, time.Minute, cfg.Views.CacheTTL.Duration())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o600))

	t.Setenv("WARDEND_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_RejectsBadProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  provider: cohere\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis provider")
}

func TestValidate_TrendingPeriod(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)
	cfg.Views.TrendingDefaultPeriod = "48h"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trending default period")
}

func TestValidate_Telemetry(t *testing.T) {
	base := func() Config {
		var cfg Config
		applyDefaults(&cfg)
		cfg.Telemetry.Enabled = true
		return cfg
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Telemetry.Endpoint = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")

	cfg = base()
	cfg.Telemetry.Endpoint = "collector.example.com:4317"
	cfg.Telemetry.Insecure = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure")

	cfg = base()
	cfg.Telemetry.Sampling.Rate = 1.5
	require.Error(t, cfg.Validate())

	// Disabled telemetry skips all checks.
	cfg = base()
	cfg.Telemetry.Enabled = false
	cfg.Telemetry.Endpoint = ""
	require.NoError(t, cfg.Validate())
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
