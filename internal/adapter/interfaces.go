// Package adapter provides the transport layer for the key directory
// service.
//
// The primary abstraction is [DirectoryClient], which decouples the key
// cache and the lifecycle manager from the wire protocol. The package ships
// an HTTP/REST implementation ([NewHTTPDirectoryClient]) built on resty.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling: [ErrNotFound] for 404, [ErrNotAuthenticated] for 401, and
// [ErrTransient] for network faults and 5xx responses.
package adapter

import (
	"context"

	"github.com/mirrochat/e2ee-client/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/directory_client_mock.go -package=mock

// DirectoryClient defines transport-agnostic communication with the key
// directory service. Implementations are responsible for serialisation,
// bearer-token management, and mapping transport-level errors to the
// sentinel values defined in this package.
type DirectoryClient interface {
	// SetToken stores the bearer credential attached to all subsequent
	// requests. An empty token makes every call fail with
	// [ErrNotAuthenticated] before touching the network.
	SetToken(token string)

	// Token returns the bearer credential currently stored in the client,
	// or an empty string if none has been set.
	Token() string

	// UserID returns the subject of the stored bearer token, or an empty
	// string if no token is set or the token cannot be parsed. The directory
	// keys backups by this identity.
	UserID() string

	// PublishKey uploads the device's symmetric key to the directory.
	// Republishing the same key is a no-op from the directory's perspective.
	PublishKey(ctx context.Context, key []byte) error

	// FetchPeerKey fetches the published key of userID. Returns
	// [ErrNotFound] (wrapped) when the user has no published key — callers
	// rely on this distinction for negative caching — or [ErrTransient] for
	// network faults and 5xx responses.
	FetchPeerKey(ctx context.Context, userID string) ([]byte, error)

	// CheckBackup probes whether a key backup exists for the authenticated
	// user. The probe is side-effect free and safe to call repeatedly.
	CheckBackup(ctx context.Context) (bool, error)

	// UploadBackup stores the password-wrapped key backup server-side. The
	// server treats the blob as opaque.
	UploadBackup(ctx context.Context, backup models.BackupBlob) error

	// FetchBackup retrieves the stored backup blob. Returns [ErrNotFound]
	// (wrapped) when no backup exists.
	FetchBackup(ctx context.Context) (models.BackupBlob, error)

	// FetchMessageKey fetches the per-message decryption key used by the
	// push-notification decrypt path.
	FetchMessageKey(ctx context.Context, conversationID, messageID string) ([]byte, error)
}
