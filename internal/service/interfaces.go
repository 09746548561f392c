// Package service wires the e2ee building blocks — key cache, ciphers,
// directory client — into the operations the application calls: lifecycle
// initialisation, message and attachment encryption, key backup, and the
// push-notification decrypt path.
package service

import (
	"context"

	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/services_mock.go -package=mock

// BackupService wraps the device key under a user password and round-trips
// it through the directory's blind blob store.
type BackupService interface {
	// CreateBackup derives a wrapping key from password (at least 8
	// characters, re-checked here defensively), wraps the device key, and
	// uploads the blob keyed to the authenticated user.
	CreateBackup(ctx context.Context, password string) error

	// Restore fetches the blob, unwraps the device key with the
	// password-derived key, persists it into the secure store, and returns
	// it. Any failure — wrong password or corrupted blob — signals
	// [ErrInvalidBackupPassword] without partially installing a key; a
	// missing blob signals [ErrNoBackup].
	Restore(ctx context.Context, password string) ([]byte, error)

	// HasBackup is a side-effect-free existence probe, safe to call
	// repeatedly.
	HasBackup(ctx context.Context) (bool, error)
}

// Prompter is the UI collaborator that asks the user for backup passwords.
// The e2ee subsystem never renders UI itself.
type Prompter interface {
	// RestorePassword asks for the password of an existing backup.
	RestorePassword(ctx context.Context) (string, error)

	// NewBackupPassword asks a new user to choose a backup password.
	// Skipping is allowed: ok is false when the user declines.
	NewBackupPassword(ctx context.Context) (password string, ok bool, err error)

	// OfferBackup surfaces a non-blocking prompt offering on-demand backup
	// creation to a legacy user without one. The user acts on it later via
	// [KeyLifecycle.CreateBackupNow].
	OfferBackup(ctx context.Context)
}

// KeyLifecycle drives device-key initialisation on each authenticated
// session start and exposes the subsystem's readiness.
type KeyLifecycle interface {
	// Initialize inspects local and server key state and runs one of the
	// four scenarios: new user, restorable backup, complete user, or legacy
	// user without backup. Failures fall back to whatever local key exists;
	// with no local key at all the subsystem stays non-ready and all
	// encryption operations fail with [ErrEncryptionNotReady].
	Initialize(ctx context.Context) (State, error)

	// IsReady reports whether a device key is installed and operations may
	// proceed.
	IsReady() bool

	// HasBackup reports whether a server-side backup is known to exist.
	HasBackup() bool

	// CreateBackupNow creates a backup on demand, e.g. after the legacy-user
	// offer.
	CreateBackupNow(ctx context.Context, password string) error

	// Close stops any background re-verification work.
	Close()
}

// MessageService encrypts and decrypts chat payloads with a single
// symmetric key-resolution policy: both directions resolve the
// conversation's shared key through the key cache.
type MessageService interface {
	// EncryptMessage encrypts plaintext for peerID using the peer's shared
	// key.
	EncryptMessage(ctx context.Context, peerID string, plaintext []byte) (models.EncryptedEnvelope, error)

	// DecryptMessage decrypts an envelope from peerID using the same shared
	// key that encrypted it.
	DecryptMessage(ctx context.Context, peerID string, envelope models.EncryptedEnvelope) ([]byte, error)

	// EncryptAttachment encrypts a file payload under the device key. Files
	// at or below the configured threshold travel as one envelope; larger
	// ones use the chunked file cipher. Progress callbacks fire for the
	// chunked path.
	EncryptAttachment(ctx context.Context, fileName, fileType string, data []byte, progress crypto.ProgressFunc) (models.EncryptedAttachment, error)

	// DecryptAttachment inverts EncryptAttachment. senderID selects the key:
	// empty means the device's own key, otherwise the sender's shared key is
	// resolved through the cache. A chunked file that fails its integrity
	// check against a cached peer key triggers one forced key refresh, so a
	// rotated key is picked up before the failure is surfaced.
	DecryptAttachment(ctx context.Context, senderID string, attachment models.EncryptedAttachment, progress crypto.ProgressFunc) ([]byte, error)
}

// NotificationService decrypts message previews delivered by push
// notifications, using the per-message key endpoint.
type NotificationService interface {
	// DecryptNotification fetches the per-message key and decrypts the
	// serialized envelope carried in the notification payload.
	DecryptNotification(ctx context.Context, conversationID, messageID, rawEnvelope string) (string, error)
}
