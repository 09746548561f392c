package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/models"
)

// minBackupPasswordLen mirrors the UI-boundary rule; re-checked here so a
// misbehaving caller cannot produce a weakly wrapped backup.
const minBackupPasswordLen = 8

type backupService struct {
	cache     *keycache.Cache
	directory adapter.DirectoryClient
	keychain  crypto.KeyChainService
	log       *logger.Logger
}

// NewBackupService constructs the [BackupService].
func NewBackupService(cache *keycache.Cache, directory adapter.DirectoryClient, keychain crypto.KeyChainService, log *logger.Logger) BackupService {
	return &backupService{cache: cache, directory: directory, keychain: keychain, log: log}
}

func (b *backupService) CreateBackup(ctx context.Context, password string) error {
	if len(password) < minBackupPasswordLen {
		return ErrBackupPasswordTooShort
	}

	deviceKey, err := b.cache.OwnKey(ctx)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	salt, err := b.keychain.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate backup salt: %w", err)
	}

	wrappingKey := b.keychain.DeriveWrappingKey(password, salt)
	wrapped, err := b.keychain.WrapKey(deviceKey, wrappingKey)
	if err != nil {
		return fmt.Errorf("wrap device key: %w", err)
	}

	blob := models.BackupBlob{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		WrappedKey: base64.StdEncoding.EncodeToString(wrapped),
		CreatedAt:  time.Now().UTC(),
	}

	if err = b.directory.UploadBackup(ctx, blob); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	b.log.Info().Msg("key backup created")
	return nil
}

func (b *backupService) Restore(ctx context.Context, password string) ([]byte, error) {
	blob, err := b.directory.FetchBackup(ctx)
	if errors.Is(err, adapter.ErrNotFound) {
		return nil, ErrNoBackup
	}
	if err != nil {
		return nil, fmt.Errorf("fetch backup: %w", err)
	}

	// From here on every failure collapses into ErrInvalidBackupPassword: a
	// wrong password and a corrupted blob are indistinguishable to the
	// caller, and neither may install a key.
	salt, err := base64.StdEncoding.DecodeString(blob.Salt)
	if err != nil {
		return nil, ErrInvalidBackupPassword
	}
	wrapped, err := base64.StdEncoding.DecodeString(blob.WrappedKey)
	if err != nil {
		return nil, ErrInvalidBackupPassword
	}

	wrappingKey := b.keychain.DeriveWrappingKey(password, salt)
	deviceKey, err := b.keychain.UnwrapKey(wrapped, wrappingKey)
	if err != nil {
		return nil, ErrInvalidBackupPassword
	}

	if err = b.cache.SetOwnKey(deviceKey); err != nil {
		return nil, fmt.Errorf("install restored key: %w", err)
	}

	b.log.Info().Msg("device key restored from backup")
	return deviceKey, nil
}

func (b *backupService) HasBackup(ctx context.Context) (bool, error) {
	return b.directory.CheckBackup(ctx)
}
