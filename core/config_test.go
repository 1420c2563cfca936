package core

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		MediaRoot:           "/srv/audio",
		PublicBaseURL:       "http://localhost:8080/media/",
		AllowedExtensions:   []string{"mp3", "wav"},
		EnableStreaming:     true,
		MaxFileSizeMB:       2048,
		RedirectEnabled:     true,
		RedirectThresholdMB: 10,
		BufferSizeKB:        8,
		ChunkSizeMB:         1,
		ChunkCacheTTL:       5 * time.Minute,
		ChunkCacheEntries:   256,
		LogRetentionEntries: 100,
		LogRetentionDays:    30,
		DatabasePath:        "data/audiostream.db",
		Port:                8080,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "/srv/audio")
	for _, key := range []string{
		"PUBLIC_BASE_URL", "ALLOWED_EXTENSIONS", "MAX_FILE_SIZE_MB", "REDIRECT_THRESHOLD_MB",
		"BUFFER_SIZE_KB", "CHUNK_SIZE_MB", "CHUNK_CACHE_TTL_SECONDS", "PORT", "ENABLE_STREAMING",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.PublicBaseURL != "http://localhost:8080/media/" {
		t.Errorf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.BufferSize() != 8*1024 {
		t.Errorf("BufferSize() = %d, want %d", cfg.BufferSize(), 8*1024)
	}
	if cfg.RedirectThreshold() != 10*BytesPerMB {
		t.Errorf("RedirectThreshold() = %d, want %d", cfg.RedirectThreshold(), 10*BytesPerMB)
	}
	if cfg.MaxFileSize() != 2048*BytesPerMB {
		t.Errorf("MaxFileSize() = %d", cfg.MaxFileSize())
	}
	if cfg.ChunkSize() != BytesPerMB {
		t.Errorf("ChunkSize() = %d, want %d", cfg.ChunkSize(), BytesPerMB)
	}
	if cfg.ChunkCacheTTL != 5*time.Minute {
		t.Errorf("ChunkCacheTTL = %v, want 5m", cfg.ChunkCacheTTL)
	}
	if !cfg.EnableStreaming {
		t.Error("EnableStreaming should default to true")
	}
	for _, ext := range DefaultAllowedExtensions {
		if !cfg.IsExtensionAllowed(ext) {
			t.Errorf("extension %q should be allowed by default", ext)
		}
	}
}

func TestLoadConfigMissingMediaRoot(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "")

	_, err := LoadConfig()
	if GetErrorCode(err) != ErrCodeMissingConfig {
		t.Fatalf("LoadConfig() error = %v, want %s", err, ErrCodeMissingConfig)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		wantCode string
	}{
		{"valid", func(c *Config) {}, ""},
		{"buffer too small", func(c *Config) { c.BufferSizeKB = 4 }, ErrCodeInvalidValue},
		{"buffer too large", func(c *Config) { c.BufferSizeKB = 2048 }, ErrCodeInvalidValue},
		{"buffer at max", func(c *Config) { c.BufferSizeKB = 1024 }, ""},
		{"relative base url", func(c *Config) { c.PublicBaseURL = "/media/" }, ErrCodeInvalidURL},
		{"ftp base url", func(c *Config) { c.PublicBaseURL = "ftp://host/media/" }, ErrCodeInvalidURL},
		{"no extensions", func(c *Config) { c.AllowedExtensions = nil }, ErrCodeInvalidValue},
		{"zero max size", func(c *Config) { c.MaxFileSizeMB = 0 }, ErrCodeInvalidValue},
		{"negative threshold", func(c *Config) { c.RedirectThresholdMB = -1 }, ErrCodeInvalidValue},
		{"zero threshold", func(c *Config) { c.RedirectThresholdMB = 0 }, ""},
		{"negative throttle", func(c *Config) { c.ThrottleBytesPerSec = -1 }, ErrCodeInvalidValue},
		{"zero chunk", func(c *Config) { c.ChunkSizeMB = 0 }, ErrCodeInvalidValue},
		{"zero ttl", func(c *Config) { c.ChunkCacheTTL = 0 }, ErrCodeInvalidValue},
		{"bad port", func(c *Config) { c.Port = 70000 }, ErrCodeInvalidValue},
		{"no database", func(c *Config) { c.DatabasePath = "" }, ErrCodeMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if got := GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Validate() code = %q, want %q (err = %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestConfigDerivedValues(t *testing.T) {
	cfg := validConfig()

	cfg.ChunkSizeMB = 64
	if cfg.ChunkSize() != MaxChunkSize {
		t.Errorf("ChunkSize() = %d, want cap %d", cfg.ChunkSize(), MaxChunkSize)
	}

	cfg.RedirectEnabled = false
	if cfg.RedirectThreshold() != 0 {
		t.Errorf("RedirectThreshold() with redirects disabled = %d, want 0", cfg.RedirectThreshold())
	}

	if !cfg.IsExtensionAllowed(".MP3") {
		t.Error("IsExtensionAllowed should ignore case and dot")
	}
	if cfg.IsExtensionAllowed("flac") {
		t.Error("flac is not on this allow-list")
	}

	cfg.Host = "127.0.0.1"
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}
