// Package store persists peer key material across process restarts.
//
// The key cache treats this package as its durable middle layer: memory
// first, then the SQLite repository here, then the key directory over the
// network. Entries are written once on first successful directory fetch and
// only removed by an explicit per-user forget operation.
package store

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mock/peer_key_repository_mock.go -package=mock

// PeerKeyRepository is the contract for durable peer-key storage.
type PeerKeyRepository interface {
	// Get returns the key material stored for userID, or [ErrPeerKeyNotFound]
	// if the peer has never been persisted.
	Get(ctx context.Context, userID string) ([]byte, error)

	// Put stores key material for userID, replacing any previous entry.
	Put(ctx context.Context, userID string, key []byte) error

	// Delete removes the entry for userID. Deleting a missing entry is a
	// no-op.
	Delete(ctx context.Context, userID string) error
}
