package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/internal/keystore"
	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/internal/store"
	"github.com/mirrochat/e2ee-client/models"
)

// fakeDirectory is an in-memory key directory: peer keys, the backup blob
// store, and per-message keys all live in maps guarded by one mutex.
type fakeDirectory struct {
	mu        sync.Mutex
	peerKeys  map[string][]byte
	msgKeys   map[string][]byte
	backup    *models.BackupBlob
	published [][]byte

	checkErr   error
	publishErr error
	uploadErr  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		peerKeys: make(map[string][]byte),
		msgKeys:  make(map[string][]byte),
	}
}

func (f *fakeDirectory) SetToken(string) {}
func (f *fakeDirectory) Token() string   { return "fake" }
func (f *fakeDirectory) UserID() string  { return "self" }

func (f *fakeDirectory) PublishKey(_ context.Context, key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, key)
	return nil
}

func (f *fakeDirectory) FetchPeerKey(_ context.Context, userID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.peerKeys[userID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	return key, nil
}

func (f *fakeDirectory) CheckBackup(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.backup != nil, nil
}

func (f *fakeDirectory) UploadBackup(_ context.Context, backup models.BackupBlob) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.backup = &backup
	return nil
}

func (f *fakeDirectory) FetchBackup(context.Context) (models.BackupBlob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.backup == nil {
		return models.BackupBlob{}, adapter.ErrNotFound
	}
	return *f.backup, nil
}

func (f *fakeDirectory) FetchMessageKey(_ context.Context, conversationID, messageID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.msgKeys[conversationID+"/"+messageID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	return key, nil
}

func (f *fakeDirectory) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func (f *fakeDirectory) hasBackup() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backup != nil
}

// fakeBackupBlob marks backup existence in tests that never restore it.
var fakeBackupBlob = models.BackupBlob{Salt: "c2FsdA==", WrappedKey: "d3JhcHBlZA=="}

// fakePrompter plays scripted answers to the lifecycle's password prompts
// and signals when the backup offer fires.
type fakePrompter struct {
	restorePassword string
	newPassword     string
	newPasswordOK   bool

	offered chan struct{}
}

func newFakePrompter() *fakePrompter {
	return &fakePrompter{offered: make(chan struct{}, 1)}
}

func (p *fakePrompter) RestorePassword(context.Context) (string, error) {
	return p.restorePassword, nil
}

func (p *fakePrompter) NewBackupPassword(context.Context) (string, bool, error) {
	return p.newPassword, p.newPasswordOK, nil
}

func (p *fakePrompter) OfferBackup(context.Context) {
	select {
	case p.offered <- struct{}{}:
	default:
	}
}

// fakePeerRepo is the in-memory stand-in for the SQLite peer key repository.
type fakePeerRepo struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func newFakePeerRepo() *fakePeerRepo {
	return &fakePeerRepo{keys: make(map[string][]byte)}
}

func (f *fakePeerRepo) Get(_ context.Context, userID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[userID]
	if !ok {
		return nil, store.ErrPeerKeyNotFound
	}
	return key, nil
}

func (f *fakePeerRepo) Put(_ context.Context, userID string, key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[userID] = key
	return nil
}

func (f *fakePeerRepo) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, userID)
	return nil
}

func newTestCache(t *testing.T, directory *fakeDirectory) *keycache.Cache {
	t.Helper()
	return keycache.New(keystore.NewMemoryStore(), newFakePeerRepo(), directory, logger.Nop())
}
