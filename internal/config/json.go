package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// parseJSON reads the JSON configuration file at path and decodes it into a
// *Config. Field names follow the json tags on [Config] and its nested
// types; durations use Go duration strings (e.g. "30s").
func parseJSON(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json config %q: %w", path, err)
	}

	var aux struct {
		Directory struct {
			BaseURL        string `json:"base_url"`
			RequestTimeout string `json:"request_timeout"`
			MaxRetries     uint64 `json:"max_retries"`
		} `json:"directory"`
		Storage Storage `json:"storage"`
		Files   Files   `json:"files"`
		Workers struct {
			BackupRecheckDelay string `json:"backup_recheck_delay"`
		} `json:"workers"`
	}
	if err = json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode json config %q: %w", path, err)
	}

	cfg := &Config{
		Directory: Directory{
			BaseURL:    aux.Directory.BaseURL,
			MaxRetries: aux.Directory.MaxRetries,
		},
		Storage: aux.Storage,
		Files:   aux.Files,
	}

	if aux.Directory.RequestTimeout != "" {
		cfg.Directory.RequestTimeout, err = parseDuration(aux.Directory.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("json config directory.request_timeout: %w", err)
		}
	}
	if aux.Workers.BackupRecheckDelay != "" {
		cfg.Workers.BackupRecheckDelay, err = parseDuration(aux.Workers.BackupRecheckDelay)
		if err != nil {
			return nil, fmt.Errorf("json config workers.backup_recheck_delay: %w", err)
		}
	}

	return cfg, nil
}
