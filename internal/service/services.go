package service

import (
	"time"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/internal/logger"
)

// Services is the composition root of the e2ee subsystem. Everything is
// constructor-injected; there is no package-level state.
type Services struct {
	Backup        BackupService
	Lifecycle     KeyLifecycle
	Messages      MessageService
	Notifications NotificationService
}

// Options tunes the assembled services; zero values select defaults.
type Options struct {
	// ChunkSize is the pre-encryption chunk size for large attachments.
	ChunkSize int
	// ChunkThreshold is the attachment size at or below which the
	// non-chunked envelope path is used.
	ChunkThreshold int
	// BackupRecheckDelay spaces the legacy-user backup re-verification.
	BackupRecheckDelay time.Duration
}

// NewServices wires the service layer on top of the key cache and the
// directory client.
func NewServices(cache *keycache.Cache, directory adapter.DirectoryClient, prompter Prompter, opts Options, log *logger.Logger) *Services {
	keychain := crypto.NewKeyChainService()
	msgCipher := crypto.NewMessageCipher()
	fileCipher := crypto.NewFileCipher(opts.ChunkSize)

	backup := NewBackupService(cache, directory, keychain, log.GetChildLogger())
	lifecycle := NewKeyLifecycle(cache, directory, backup, keychain, prompter, opts.BackupRecheckDelay, log.GetChildLogger())

	return &Services{
		Backup:        backup,
		Lifecycle:     lifecycle,
		Messages:      NewMessageService(cache, lifecycle, msgCipher, fileCipher, opts.ChunkThreshold),
		Notifications: NewNotificationService(directory, msgCipher),
	}
}
