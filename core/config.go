package core

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Buffer, chunk and threshold limits.
const (
	DefaultBufferSizeKB = 8
	MinBufferSizeKB     = 8
	MaxBufferSizeKB     = 1024

	DefaultChunkSizeMB = 1
	// MaxChunkSize caps a single chunk held in memory.
	MaxChunkSize = 4 * BytesPerMB

	DefaultRedirectThresholdMB = 10
	DefaultMaxFileSizeMB       = 2048
)

// Config holds all configuration values
type Config struct {
	// Media
	MediaRoot         string   // Directory holding the audio files; every served path must lie inside it
	PublicBaseURL     string   // Base URL of direct file hosting, used for redirects and resolve-id
	CatalogPath       string   // Optional YAML catalog with titles for the indexer
	AllowedExtensions []string // Lowercase extensions without dots

	// Delivery policy
	EnableStreaming     bool
	MaxFileSizeMB       int64
	RedirectEnabled     bool
	RedirectThresholdMB int64 // Single value for every call site

	// Streaming engine
	BufferSizeKB        int
	ThrottleBytesPerSec int64 // 0 disables throttling

	// Chunk cache
	ChunkSizeMB       int64
	ChunkCacheTTL     time.Duration
	ChunkCacheEntries int

	// Log sink
	LogRetentionEntries int
	LogRetentionDays    int

	// Storage
	DatabasePath string

	// HTTP server
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AdminPasswordHash string // bcrypt hash; empty disables the admin endpoints

	// Logging
	LogLevel string
	LogFile  string
	DevMode  bool
}

// LoadConfig reads the configuration from environment variables and
// validates it. godotenv is expected to have populated the environment
// from .env before this is called.
func LoadConfig() (*Config, error) {
	cfg := ReadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig reads the configuration without validating it, for the
// validate command to report on.
func ReadConfig() *Config {
	port := ParseIntEnv("PORT", 8080)

	return &Config{
		MediaRoot:         strings.TrimSpace(os.Getenv("MEDIA_ROOT")),
		PublicBaseURL:     GetEnvOrDefault("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d/media/", port)),
		CatalogPath:       os.Getenv("CATALOG_PATH"),
		AllowedExtensions: ParseListEnv("ALLOWED_EXTENSIONS", DefaultAllowedExtensions),

		EnableStreaming:     ParseBoolEnv("ENABLE_STREAMING", true),
		MaxFileSizeMB:       ParseInt64Env("MAX_FILE_SIZE_MB", DefaultMaxFileSizeMB),
		RedirectEnabled:     ParseBoolEnv("REDIRECT_ENABLED", true),
		RedirectThresholdMB: ParseInt64Env("REDIRECT_THRESHOLD_MB", DefaultRedirectThresholdMB),

		BufferSizeKB:        ParseIntEnv("BUFFER_SIZE_KB", DefaultBufferSizeKB),
		ThrottleBytesPerSec: ParseInt64Env("THROTTLE_BYTES_PER_SEC", 0),

		ChunkSizeMB:       ParseInt64Env("CHUNK_SIZE_MB", DefaultChunkSizeMB),
		ChunkCacheTTL:     ParseDurationEnv("CHUNK_CACHE_TTL_SECONDS", 300),
		ChunkCacheEntries: ParseIntEnv("CHUNK_CACHE_ENTRIES", 256),

		LogRetentionEntries: ParseIntEnv("LOG_RETENTION_ENTRIES", 100),
		LogRetentionDays:    ParseIntEnv("LOG_RETENTION_DAYS", 30),

		DatabasePath: GetEnvOrDefault("DATABASE_PATH", "data/audiostream.db"),

		Host:              os.Getenv("HOST"),
		Port:              port,
		ReadHeaderTimeout: ParseDurationEnv("READ_HEADER_TIMEOUT", 10),
		IdleTimeout:       ParseDurationEnv("IDLE_TIMEOUT", 120),
		ShutdownTimeout:   ParseDurationEnv("SHUTDOWN_TIMEOUT", 30),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		LogLevel: os.Getenv("LOG_LEVEL"),
		LogFile:  GetEnvOrDefault("LOG_FILE", "audiostream.log"),
		DevMode:  ParseBoolEnv("DEV_MODE", false),
	}
}

// Validate checks ranges and required values. It does not touch the
// filesystem; directory checks belong to the startup validation suite.
func (c *Config) Validate() error {
	if c.MediaRoot == "" {
		return ErrMissingConfig("MEDIA_ROOT")
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil {
		return ErrInvalidURL(c.PublicBaseURL, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL(c.PublicBaseURL, "scheme must be http or https")
	}
	if u.Host == "" {
		return ErrInvalidURL(c.PublicBaseURL, "missing host")
	}

	if len(c.AllowedExtensions) == 0 {
		return ErrInvalidValue("ALLOWED_EXTENSIONS", "", "a comma-separated list such as mp3,wav")
	}
	if c.MaxFileSizeMB < 1 {
		return ErrInvalidValue("MAX_FILE_SIZE_MB", c.MaxFileSizeMB, "a positive number of MiB")
	}
	if c.RedirectThresholdMB < 0 {
		return ErrInvalidValue("REDIRECT_THRESHOLD_MB", c.RedirectThresholdMB, "zero or a positive number of MiB")
	}
	if c.BufferSizeKB < MinBufferSizeKB || c.BufferSizeKB > MaxBufferSizeKB {
		return ErrInvalidValue("BUFFER_SIZE_KB", c.BufferSizeKB,
			fmt.Sprintf("a value between %d and %d", MinBufferSizeKB, MaxBufferSizeKB))
	}
	if c.ThrottleBytesPerSec < 0 {
		return ErrInvalidValue("THROTTLE_BYTES_PER_SEC", c.ThrottleBytesPerSec, "zero (disabled) or a positive rate")
	}
	if c.ChunkSizeMB < 1 {
		return ErrInvalidValue("CHUNK_SIZE_MB", c.ChunkSizeMB, "a positive number of MiB")
	}
	if c.ChunkCacheTTL <= 0 {
		return ErrInvalidValue("CHUNK_CACHE_TTL_SECONDS", c.ChunkCacheTTL, "a positive number of seconds")
	}
	if c.ChunkCacheEntries < 1 {
		return ErrInvalidValue("CHUNK_CACHE_ENTRIES", c.ChunkCacheEntries, "at least 1")
	}
	if c.LogRetentionEntries < 1 {
		return ErrInvalidValue("LOG_RETENTION_ENTRIES", c.LogRetentionEntries, "at least 1")
	}
	if c.LogRetentionDays < 1 {
		return ErrInvalidValue("LOG_RETENTION_DAYS", c.LogRetentionDays, "at least 1")
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("PORT", c.Port, "a port between 1 and 65535")
	}
	if c.DatabasePath == "" {
		return ErrMissingConfig("DATABASE_PATH")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BufferSize returns the streaming buffer size in bytes.
func (c *Config) BufferSize() int {
	return c.BufferSizeKB * int(BytesPerKB)
}

// MaxFileSize returns the largest streamable resource in bytes.
func (c *Config) MaxFileSize() int64 {
	return c.MaxFileSizeMB * BytesPerMB
}

// RedirectThreshold returns the size below which eligible files are
// redirected. Zero when redirects are disabled.
func (c *Config) RedirectThreshold() int64 {
	if !c.RedirectEnabled {
		return 0
	}
	return c.RedirectThresholdMB * BytesPerMB
}

// ChunkSize returns the chunk size in bytes, capped at MaxChunkSize.
func (c *Config) ChunkSize() int64 {
	size := c.ChunkSizeMB * BytesPerMB
	if size > MaxChunkSize {
		return MaxChunkSize
	}
	return size
}

// IsExtensionAllowed reports whether ext (with or without a dot) is on the
// allow-list.
func (c *Config) IsExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}
