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

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig defines the local HTTP host for the toolkit page.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	MaxUploadMB     int
	DownloadTTL     time.Duration // unfetched outputs are dropped after this
}

// RenderConfig controls thumbnail rasterization.
type RenderConfig struct {
	DPI      float64
	MaxWidth int
	Quality  int
	Color    string // "rgb"|"gray"
}

// IngestConfig controls how uploads are read and inspected.
type IngestConfig struct {
	Concurrency int
}

// AssemblyConfig controls pdfcpu behaviour.
type AssemblyConfig struct {
	Validation string // "relaxed"|"strict"
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Render   RenderConfig
	Ingest   IngestConfig
	Assembly AssemblyConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/neatpdf.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_neatpdf",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
		DownloadTTL:     parseDuration(getEnv("DOWNLOAD_TTL", "15m"), 15*time.Minute),
	}

	// 36 DPI is half of the 72pt user space, the scale the page grid was designed around.
	cfg.Render = RenderConfig{
		DPI:      parseFloat(getEnv("THUMBNAIL_DPI", "36"), 36),
		MaxWidth: parseInt(getEnv("THUMBNAIL_MAX_WIDTH", "240"), 240),
		Quality:  parseInt(getEnv("THUMBNAIL_QUALITY", "80"), 80),
		Color:    strings.ToLower(getEnv("THUMBNAIL_COLOR", "rgb")),
	}
	if cfg.Render.Quality < 1 || cfg.Render.Quality > 100 {
		cfg.Render.Quality = 80
	}

	cfg.Ingest = IngestConfig{
		Concurrency: parseInt(getEnv("INGEST_CONCURRENCY", "4"), 4),
	}
	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = 1
	}

	cfg.Assembly = AssemblyConfig{
		Validation: strings.ToLower(getEnv("PDF_VALIDATION", "relaxed")),
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
