// Package config provides configuration loading for wardend.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. This package covers server, logging, analysis provider,
// embedding, similarity, store, and read-view settings.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the complete wardend configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Analysis   AnalysisConfig   `koanf:"analysis"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Store      StoreConfig      `koanf:"store"`
	Views      ViewsConfig      `koanf:"views"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	CORSOrigin      string   `koanf:"cors_origin"`
	RatePerMinute   int      `koanf:"rate_per_minute"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"`
	Fields map[string]string `koanf:"fields"`
}

// AnalysisConfig holds LLM analysis provider configuration.
//
// Provider selects the backend for the classifier, the content-policy
// validator, and the template generator: "anthropic" or "openai".
type AnalysisConfig struct {
	Provider  string                    `koanf:"provider"`
	Timeout   Duration                  `koanf:"timeout"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

// ProviderConfig holds per-provider LLM settings.
type ProviderConfig struct {
	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// EmbeddingsConfig holds embedding API configuration.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// SimilarityConfig holds the near-duplicate index configuration.
type SimilarityConfig struct {
	Path          string  `koanf:"path"`
	Collection    string  `koanf:"collection"`
	MaxMatches    int     `koanf:"max_matches"`
	MinSimilarity float32 `koanf:"min_similarity"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// ViewsConfig holds read-path configuration.
type ViewsConfig struct {
	TrendingDefaultPeriod string   `koanf:"trending_default_period"`
	CacheTTL              Duration `koanf:"cache_ttl"`
}

// TelemetryConfig holds OpenTelemetry export configuration. Telemetry is
// disabled by default; enabling it requires an OTLP collector endpoint.
type TelemetryConfig struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	Protocol       string         `koanf:"protocol"`
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	// Insecure disables TLS; only allowed for local endpoints.
	Insecure      bool           `koanf:"insecure"`
	TLSSkipVerify bool           `koanf:"tls_skip_verify"`
	Sampling      SamplingConfig `koanf:"sampling"`
	Metrics       MetricsConfig  `koanf:"metrics"`
	Shutdown      ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"`
}

// MetricsConfig controls OTLP metrics export.
type MetricsConfig struct {
	Enabled        bool     `koanf:"enabled"`
	ExportInterval Duration `koanf:"export_interval"`
}

// ShutdownConfig controls telemetry flush on shutdown.
type ShutdownConfig struct {
	Timeout Duration `koanf:"timeout"`
}

// Validate checks telemetry configuration invariants.
func (c *TelemetryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("telemetry service_name is required when telemetry is enabled")
	}
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint")
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("telemetry sampling rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("telemetry metrics export_interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("telemetry shutdown timeout must be positive")
	}
	return nil
}

// isLocalEndpoint checks if the endpoint is a local address.
func (c *TelemetryConfig) isLocalEndpoint() bool {
	host := c.Endpoint
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else if strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	} else if strings.Count(host, ":") == 1 {
		if idx := strings.LastIndex(host, ":"); idx != -1 {
			host = host[:idx]
		}
	}

	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(c.Endpoint, "::1")
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Server.RatePerMinute == 0 {
		cfg.Server.RatePerMinute = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = map[string]string{"service": "wardend"}
	}
	if cfg.Analysis.Provider == "" {
		cfg.Analysis.Provider = "openai"
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = Duration(60 * time.Second)
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Similarity.Path == "" {
		cfg.Similarity.Path = "~/.local/share/wardend/index"
	}
	if cfg.Similarity.Collection == "" {
		cfg.Similarity.Collection = "claims"
	}
	if cfg.Similarity.MaxMatches == 0 {
		cfg.Similarity.MaxMatches = 5
	}
	if cfg.Similarity.MinSimilarity == 0 {
		cfg.Similarity.MinSimilarity = 0.82
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.local/share/wardend/wardend.db"
	}
	if cfg.Views.TrendingDefaultPeriod == "" {
		cfg.Views.TrendingDefaultPeriod = "24h"
	}
	if cfg.Views.CacheTTL == 0 {
		cfg.Views.CacheTTL = Duration(30 * time.Second)
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "wardend"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.Sampling.Rate == 0 {
		cfg.Telemetry.Sampling.Rate = 1.0
	}
	if cfg.Telemetry.Metrics.ExportInterval == 0 {
		cfg.Telemetry.Metrics.ExportInterval = Duration(15 * time.Second)
	}
	if cfg.Telemetry.Shutdown.Timeout == 0 {
		cfg.Telemetry.Shutdown.Timeout = Duration(5 * time.Second)
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Analysis.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("analysis provider must be 'anthropic' or 'openai', got %q", c.Analysis.Provider)
	}
	switch c.Views.TrendingDefaultPeriod {
	case "24h", "7d", "30d", "all":
	default:
		return fmt.Errorf("trending default period must be one of 24h/7d/30d/all, got %q", c.Views.TrendingDefaultPeriod)
	}
	if c.Similarity.MinSimilarity < 0 || c.Similarity.MinSimilarity > 1 {
		return fmt.Errorf("similarity threshold must be in [0,1], got %v", c.Similarity.MinSimilarity)
	}
	if c.Similarity.MaxMatches < 1 {
		return fmt.Errorf("similarity max matches must be >= 1, got %d", c.Similarity.MaxMatches)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	return nil
}
