// Package client assembles the e2ee subsystem from its parts: secure key
// store, peer-key persistence, directory client, key cache, and the service
// layer. It is the composition root used by cmd/e2ee-client and by host
// applications embedding the subsystem.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/config"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/internal/keystore"
	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/internal/service"
	"github.com/mirrochat/e2ee-client/internal/store"
)

// App owns the assembled e2ee subsystem and its resources.
type App struct {
	Services  *service.Services
	KeyCache  *keycache.Cache
	Directory adapter.DirectoryClient

	db  *sql.DB
	log *logger.Logger
}

// NewApp builds the subsystem from configuration. The prompter is the UI
// collaborator that asks for backup passwords; token is the bearer
// credential obtained from the host application's auth layer.
func NewApp(ctx context.Context, cfg *config.Config, prompter service.Prompter, token string, log *logger.Logger) (*App, error) {
	var secureStore keystore.SecureStore
	var err error
	if cfg.Storage.KeysDir != "" {
		secureStore, err = keystore.NewFileStore(cfg.Storage.KeysDir)
		if err != nil {
			return nil, fmt.Errorf("create secure store: %w", err)
		}
	} else {
		secureStore = keystore.NewMemoryStore()
	}

	db, err := store.OpenSQLite(ctx, cfg.Storage.PeerDB, log)
	if err != nil {
		return nil, fmt.Errorf("open peer key store: %w", err)
	}

	directory := adapter.NewHTTPDirectoryClient(adapter.HTTPClientConfig{
		BaseURL:    cfg.Directory.BaseURL,
		Timeout:    cfg.Directory.RequestTimeout,
		MaxRetries: cfg.Directory.MaxRetries,
	}, log.GetChildLogger())
	directory.SetToken(token)

	cache := keycache.New(secureStore, store.NewPeerKeyRepository(db, log.GetChildLogger()), directory, log.GetChildLogger())

	services := service.NewServices(cache, directory, prompter, service.Options{
		ChunkSize:          cfg.Files.ChunkSize,
		ChunkThreshold:     cfg.Files.ChunkThreshold,
		BackupRecheckDelay: cfg.Workers.BackupRecheckDelay,
	}, log)

	return &App{
		Services:  services,
		KeyCache:  cache,
		Directory: directory,
		db:        db,
		log:       log,
	}, nil
}

// Run drives lifecycle initialisation for an authenticated session and
// reports the resulting state.
func (a *App) Run(ctx context.Context) error {
	state, err := a.Services.Lifecycle.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle init (state %s): %w", state, err)
	}

	a.log.Info().
		Str("state", string(state)).
		Str("user_id", a.Directory.UserID()).
		Bool("has_backup", a.Services.Lifecycle.HasBackup()).
		Msg("e2ee subsystem ready")
	return nil
}

// Close releases background jobs and storage handles.
func (a *App) Close() error {
	a.Services.Lifecycle.Close()
	return a.db.Close()
}
