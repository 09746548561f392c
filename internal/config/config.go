// Package config assembles the e2ee client configuration from environment
// variables, command-line flags, and an optional JSON file, merged in that
// order with defaults applied last.
package config

import "time"

// Config is the top-level configuration container for the e2ee client.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type Config struct {
	// Directory holds network settings for the key directory service.
	Directory Directory `envPrefix:"DIRECTORY_" json:"directory,omitempty"`

	// Storage holds local persistence settings: the secure keystore
	// directory and the peer-key database.
	Storage Storage `envPrefix:"STORAGE_" json:"storage,omitempty"`

	// Files holds the chunked file cipher tuning.
	Files Files `envPrefix:"FILES_" json:"files,omitempty"`

	// Workers holds background job settings.
	Workers Workers `envPrefix:"WORKERS_" json:"workers,omitempty"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c / -config
	// flag; when non-empty the file is parsed and merged on top of the
	// values already loaded.
	JSONFilePath string `env:"CONFIG" json:"-"`
}

// Directory holds network settings for the key directory service.
type Directory struct {
	// BaseURL is the root URL of the key directory REST API.
	// Env: DIRECTORY_BASE_URL
	BaseURL string `env:"BASE_URL" json:"base_url"`

	// RequestTimeout is the per-request timeout (e.g. "15s").
	// Env: DIRECTORY_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout"`

	// MaxRetries caps retry attempts for transient failures.
	// Env: DIRECTORY_MAX_RETRIES
	MaxRetries uint64 `env:"MAX_RETRIES" json:"max_retries"`
}

// Storage holds local persistence settings.
type Storage struct {
	// KeysDir is the directory backing the secure key store. Empty selects
	// the in-memory store (keys do not survive a restart).
	// Env: STORAGE_KEYS_DIR
	KeysDir string `env:"KEYS_DIR" json:"keys_dir"`

	// PeerDB is the SQLite DSN for the persisted peer-key store.
	// Env: STORAGE_PEER_DB_DSN
	PeerDB string `env:"PEER_DB_DSN" json:"peer_db_dsn"`
}

// Files holds the chunked file cipher tuning.
type Files struct {
	// ChunkSize is the pre-encryption chunk size in bytes.
	// Env: FILES_CHUNK_SIZE
	ChunkSize int `env:"CHUNK_SIZE" json:"chunk_size"`

	// ChunkThreshold is the attachment size in bytes at or below which the
	// non-chunked envelope path is used.
	// Env: FILES_CHUNK_THRESHOLD
	ChunkThreshold int `env:"CHUNK_THRESHOLD" json:"chunk_threshold"`
}

// Workers holds background job settings.
type Workers struct {
	// BackupRecheckDelay is how long the legacy-user path waits before
	// re-verifying backup absence (e.g. "30s").
	// Env: WORKERS_BACKUP_RECHECK_DELAY
	BackupRecheckDelay time.Duration `env:"BACKUP_RECHECK_DELAY" json:"backup_recheck_delay"`
}

// GetConfig loads, merges, and validates the client configuration from all
// available sources in the following priority order (first non-zero value
// wins):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *Config or an error if any source fails to load
// or the final config fails validation.
func GetConfig() (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
