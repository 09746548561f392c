package config

import (
	"flag"
	"time"
)

// parseFlags parses all configuration flags.
//
// Flags:
//
//	-a directory service base URL
//	-k secure keystore directory
//	-d peer-key database DSN
//	-c/-config json file path with configs
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-chunk-size chunk size in bytes for large attachments
//	-chunk-threshold attachment size in bytes above which files are chunked
//	-backup-recheck-delay delay before legacy backup re-verification
func parseFlags() *Config {
	var directoryURL string
	var keysDir string
	var peerDB string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var chunkSize int
	var chunkThreshold int
	var backupRecheckDelay time.Duration

	flag.StringVar(&directoryURL, "a", "", "Key directory base URL")
	flag.StringVar(&keysDir, "k", "", "Secure keystore directory")
	flag.StringVar(&peerDB, "d", "", "Peer-key database DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.IntVar(&chunkSize, "chunk-size", 0, "Chunk size in bytes")
	flag.IntVar(&chunkThreshold, "chunk-threshold", 0, "Chunking threshold in bytes")
	flag.DurationVar(&backupRecheckDelay, "backup-recheck-delay", 0, "Delay before legacy backup re-verification")

	flag.Parse()

	return &Config{
		Directory: Directory{
			BaseURL:        directoryURL,
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{
			KeysDir: keysDir,
			PeerDB:  peerDB,
		},
		Files: Files{
			ChunkSize:      chunkSize,
			ChunkThreshold: chunkThreshold,
		},
		Workers: Workers{
			BackupRecheckDelay: backupRecheckDelay,
		},
		JSONFilePath: jsonConfigPath,
	}
}
