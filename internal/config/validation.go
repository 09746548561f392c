package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	errNoDirectoryURL      = errors.New("directory base URL is required")
	errInvalidChunkSize    = errors.New("chunk size must be positive")
	errInvalidThreshold    = errors.New("chunk threshold must be positive")
	errThresholdBelowChunk = errors.New("chunk threshold must not be smaller than the chunk size")
)

// validate checks the merged configuration for internal consistency.
func (c *Config) validate() error {
	if c.Directory.BaseURL == "" {
		return errNoDirectoryURL
	}
	if c.Files.ChunkSize <= 0 {
		return errInvalidChunkSize
	}
	if c.Files.ChunkThreshold <= 0 {
		return errInvalidThreshold
	}
	if c.Files.ChunkThreshold < c.Files.ChunkSize {
		return errThresholdBelowChunk
	}
	return nil
}

// defaultConfig is the lowest-priority configuration source.
func defaultConfig() *Config {
	return &Config{
		Directory: Directory{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
			MaxRetries:     2,
		},
		Storage: Storage{
			PeerDB: ":memory:",
		},
		Files: Files{
			ChunkSize:      512 * 1024,
			ChunkThreshold: 5 * 1024 * 1024,
		},
		Workers: Workers{
			BackupRecheckDelay: 30 * time.Second,
		},
	}
}

// parseDuration parses a Go duration string, wrapping the error with the
// offending value for clearer config diagnostics.
func parseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return d, nil
}
