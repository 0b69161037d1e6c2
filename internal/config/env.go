package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// CompressionConfig defines compression defaults and limits.
type CompressionConfig struct {
	DefaultTolerance string
	DefaultTarget    string
	MaxUploadBytes   int64
	PreviewDPI       int
	PreviewQuality   int
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
	Concurrency        int
	JobTimeout         time.Duration
	JobMaxAttempts     int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// StorageConfig defines where inputs are fetched and results land.
type StorageConfig struct {
	InputDir   string
	ResultDir  string
	S3Bucket   string
	S3Region   string
	S3Prefix   string
	ResultTTL  time.Duration
	CleanEvery time.Duration
}

// ConverterConfig defines office-to-PDF conversion settings.
type ConverterConfig struct {
	SofficePath string
	Timeout     time.Duration
}

// ServerConfig defines the HTTP listener and dashboard access.
type ServerConfig struct {
	Addr              string
	DashboardUser     string
	DashboardPassHash string
	WebhookSecret     string
}

// Config is the top-level configuration.
type Config struct {
	Logging     LoggingConfig
	Axiom       AxiomConfig
	Compression CompressionConfig
	Worker      WorkerConfig
	Queue       QueueConfig
	Storage     StorageConfig
	Converter   ConverterConfig
	Server      ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfsqueeze.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfsqueeze",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Compression defaults
	cfg.Compression = CompressionConfig{
		DefaultTolerance: getEnv("DEFAULT_TOLERANCE", "balanced"),
		DefaultTarget:    getEnv("DEFAULT_TARGET_SIZE", "2MB"),
		MaxUploadBytes:   parseInt64(getEnv("MAX_UPLOAD_BYTES", "104857600"), 100*1024*1024),
		PreviewDPI:       parseInt(getEnv("PREVIEW_DPI", "96"), 96),
		PreviewQuality:   parseInt(getEnv("PREVIEW_QUALITY", "80"), 80),
	}

	// Worker defaults
	cfg.Worker = WorkerConfig{
		Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
		JobTimeout:         parseDuration(getEnv("JOB_TIMEOUT", "10m"), 10*time.Minute),
		JobMaxAttempts:     parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
		RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
		RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
	}

	// Queue defaults
	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:pdf:compress"),
		Group:        getEnv("QUEUE_GROUP", "workers:compress"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	// Storage defaults
	cfg.Storage = StorageConfig{
		InputDir:   getEnv("INPUT_DIR", "data/input"),
		ResultDir:  getEnv("RESULT_DIR", "data/results"),
		S3Bucket:   getEnv("S3_BUCKET", ""),
		S3Region:   getEnv("S3_REGION", "us-east-1"),
		S3Prefix:   getEnv("S3_PREFIX", "pdfsqueeze/results"),
		ResultTTL:  parseDuration(getEnv("RESULT_TTL", "24h"), 24*time.Hour),
		CleanEvery: parseDuration(getEnv("CLEANUP_INTERVAL", "1h"), time.Hour),
	}

	// Converter defaults
	cfg.Converter = ConverterConfig{
		SofficePath: getEnv("SOFFICE_PATH", "soffice"),
		Timeout:     parseDuration(getEnv("CONVERT_TIMEOUT", "2m"), 2*time.Minute),
	}

	// Server defaults
	cfg.Server = ServerConfig{
		Addr:              getEnv("LISTEN_ADDR", ":8080"),
		DashboardUser:     getEnv("DASHBOARD_USER", "admin"),
		DashboardPassHash: getEnv("DASHBOARD_PASS_HASH", ""),
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
