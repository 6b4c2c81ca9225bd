package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Fetcher   FetcherConfig
	Merger    MergerConfig
	Batch     BatchConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// FetcherConfig holds rendition fetch configuration
type FetcherConfig struct {
	ConnectTimeout time.Duration
	FetchTimeout   time.Duration
	UserAgent      string
}

// MergerConfig holds external merge process configuration
type MergerConfig struct {
	FFmpegPath   string
	WorkDir      string
	MergeTimeout time.Duration
}

// BatchConfig holds batch coordinator configuration
type BatchConfig struct {
	Workers int
}

// CacheConfig holds the descriptor reference store configuration
type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	RefTTL   time.Duration
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	RPS   int
	Burst int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "30s")
	// Large merged files can take a while to stream out.
	viper.SetDefault("server.writeTimeout", "10m")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Fetcher defaults
	viper.SetDefault("fetcher.connectTimeout", "10s")
	viper.SetDefault("fetcher.fetchTimeout", "5m")
	viper.SetDefault("fetcher.userAgent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// Merger defaults
	viper.SetDefault("merger.ffmpegPath", "ffmpeg")
	viper.SetDefault("merger.workDir", "")
	viper.SetDefault("merger.mergeTimeout", "5m")

	// Batch defaults
	viper.SetDefault("batch.workers", 3)

	// Cache defaults
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.refTTL", "15m")

	// Rate limit defaults
	viper.SetDefault("ratelimit.rps", 5)
	viper.SetDefault("ratelimit.burst", 20)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "media-downloader")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
