// Package keycache minimises key-directory round-trips while keeping cached
// key material durable across process restarts.
//
// Lookup order for a peer key: in-memory map, then the SQLite repository,
// then the directory service — each layer back-fills the next-faster one on
// success. Failed directory lookups for absent users are memoised in a
// negative cache so repeated prefetches do not hammer the directory; the
// marker is dropped the moment a fetch for that user succeeds, and can be
// cleared wholesale when the app learns a peer may have since published a
// key.
//
// The cache is constructor-injected (no package-level state); concurrent
// callers never observe a torn entry — all slot updates happen under the
// cache mutex.
package keycache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/keystore"
	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/internal/store"
)

// prefetchConcurrency bounds the number of simultaneous directory fetches
// issued by Prefetch.
const prefetchConcurrency = 8

var (
	ErrNotInitialized  = errors.New("device key not initialized")
	ErrPeerKeyNotFound = errors.New("peer has no published key")
)

// Cache is the process-wide key cache. Create one per composition root with
// [New] and share it by pointer.
type Cache struct {
	secureStore keystore.SecureStore
	peerRepo    store.PeerKeyRepository
	directory   adapter.DirectoryClient
	log         *logger.Logger

	mu     sync.RWMutex
	ownKey []byte
	peers  map[string][]byte
	failed map[string]struct{}
}

// New constructs an empty Cache wired to the given layers.
func New(secureStore keystore.SecureStore, peerRepo store.PeerKeyRepository, directory adapter.DirectoryClient, log *logger.Logger) *Cache {
	return &Cache{
		secureStore: secureStore,
		peerRepo:    peerRepo,
		directory:   directory,
		log:         log,
		peers:       make(map[string][]byte),
		failed:      make(map[string]struct{}),
	}
}

// OwnKey returns the device's own symmetric key: memory first, then the
// secure store (populating memory on a hit). Returns [ErrNotInitialized] if
// no device key has been generated yet.
func (c *Cache) OwnKey(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	key := c.ownKey
	c.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	stored, err := c.secureStore.Get(keystore.DeviceKeyName)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("read device key: %w", err)
	}

	c.mu.Lock()
	c.ownKey = stored
	c.mu.Unlock()
	return stored, nil
}

// SetOwnKey persists the device key to the secure store and caches it in
// memory. Used by the lifecycle manager after key generation or restore.
func (c *Cache) SetOwnKey(key []byte) error {
	if err := c.secureStore.Set(keystore.DeviceKeyName, key); err != nil {
		return fmt.Errorf("persist device key: %w", err)
	}

	c.mu.Lock()
	c.ownKey = key
	c.mu.Unlock()
	return nil
}

// PeerKey resolves userID's key: memory, then the persisted store, then the
// directory, each layer back-filling the faster one. A directory 404 records
// the negative marker and returns [ErrPeerKeyNotFound]; transient failures
// are returned as-is and leave no marker.
func (c *Cache) PeerKey(ctx context.Context, userID string) ([]byte, error) {
	c.mu.RLock()
	key, ok := c.peers[userID]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	if stored, err := c.peerRepo.Get(ctx, userID); err == nil {
		c.storePeer(userID, stored)
		return stored, nil
	} else if !errors.Is(err, store.ErrPeerKeyNotFound) {
		return nil, fmt.Errorf("read persisted peer key: %w", err)
	}

	return c.fetchPeer(ctx, userID)
}

// RefreshPeerKey forces a directory fetch for userID, bypassing both cache
// layers. File operations use it to pick up rotated keys.
func (c *Cache) RefreshPeerKey(ctx context.Context, userID string) ([]byte, error) {
	return c.fetchPeer(ctx, userID)
}

// Prefetch resolves all uncached, not-previously-failed ids concurrently.
// Partial failures are tolerated: one peer's failure never aborts the rest.
// Each NotFound outcome is recorded in the negative cache and skipped on
// subsequent calls until ClearFailedMarkers is invoked.
func (c *Cache) Prefetch(ctx context.Context, userIDs []string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	for _, userID := range userIDs {
		if c.isCached(userID) || c.isMarkedFailed(userID) {
			continue
		}

		userID := userID
		g.Go(func() error {
			if _, err := c.PeerKey(ctx, userID); err != nil {
				c.log.Debug().Str("user_id", userID).Err(err).Msg("prefetch miss")
			}
			return nil
		})
	}

	_ = g.Wait()
}

// ClearFailedMarkers wholesale-clears the negative cache. Call after any
// event implying a peer may have newly published a key, e.g. receiving a
// message from a previously unresolvable sender.
func (c *Cache) ClearFailedMarkers() {
	c.mu.Lock()
	c.failed = make(map[string]struct{})
	c.mu.Unlock()
}

// ForgetPeer removes one peer from memory and from the persisted store.
func (c *Cache) ForgetPeer(ctx context.Context, userID string) error {
	c.mu.Lock()
	delete(c.peers, userID)
	delete(c.failed, userID)
	c.mu.Unlock()

	if err := c.peerRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("forget peer %q: %w", userID, err)
	}
	return nil
}

// Reset clears the in-memory caches and the negative markers. Persisted
// per-user keys are left intact; they remain valid across resets.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.ownKey = nil
	c.peers = make(map[string][]byte)
	c.failed = make(map[string]struct{})
	c.mu.Unlock()
}

func (c *Cache) fetchPeer(ctx context.Context, userID string) ([]byte, error) {
	key, err := c.directory.FetchPeerKey(ctx, userID)
	if errors.Is(err, adapter.ErrNotFound) {
		c.markFailed(userID)
		return nil, fmt.Errorf("%w: %s", ErrPeerKeyNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	if err = c.peerRepo.Put(ctx, userID, key); err != nil {
		// Persistence is best-effort here: the key is valid and usable even
		// if the durable layer write fails.
		c.log.Warn().Str("user_id", userID).Err(err).Msg("persist peer key failed")
	}
	c.storePeer(userID, key)
	return key, nil
}

func (c *Cache) storePeer(userID string, key []byte) {
	c.mu.Lock()
	c.peers[userID] = key
	delete(c.failed, userID)
	c.mu.Unlock()
}

func (c *Cache) markFailed(userID string) {
	c.mu.Lock()
	c.failed[userID] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) isCached(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.peers[userID]
	return ok
}

func (c *Cache) isMarkedFailed(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.failed[userID]
	return ok
}
