package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/internal/keystore"
	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/internal/service"
)

// faultyStore simulates a secure store whose backing files exist but cannot
// be read, e.g. a corrupted keystore entry.
type faultyStore struct {
	sets int
}

func (s *faultyStore) Get(string) ([]byte, error) { return nil, keystore.ErrStorageUnavailable }
func (s *faultyStore) Set(string, []byte) error   { s.sets++; return nil }
func (s *faultyStore) Delete(string) error        { return nil }

type lifecycleFixture struct {
	lifecycle service.KeyLifecycle
	backup    service.BackupService
	cache     *keycache.Cache
	directory *fakeDirectory
	prompter  *fakePrompter
}

func newLifecycleFixture(t *testing.T, recheckDelay time.Duration) *lifecycleFixture {
	t.Helper()

	directory := newFakeDirectory()
	cache := newTestCache(t, directory)
	prompter := newFakePrompter()
	keychain := crypto.NewKeyChainService()
	backup := service.NewBackupService(cache, directory, keychain, logger.Nop())

	lifecycle := service.NewKeyLifecycle(cache, directory, backup, keychain, prompter, recheckDelay, logger.Nop())
	t.Cleanup(lifecycle.Close)

	return &lifecycleFixture{
		lifecycle: lifecycle,
		backup:    backup,
		cache:     cache,
		directory: directory,
		prompter:  prompter,
	}
}

func TestLifecycle_NewUser_WithBackup(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)
	f.prompter.newPassword = "strong password"
	f.prompter.newPasswordOK = true

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateReady, state)
	assert.True(t, f.lifecycle.IsReady())
	assert.True(t, f.lifecycle.HasBackup())

	// The generated key is installed, published, and backed up.
	own, err := f.cache.OwnKey(context.Background())
	require.NoError(t, err)
	assert.Len(t, own, 32)
	assert.Equal(t, 1, f.directory.publishedCount())
	assert.True(t, f.directory.hasBackup())
}

func TestLifecycle_NewUser_SkipsBackup(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)
	f.prompter.newPasswordOK = false

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateReady, state)
	assert.True(t, f.lifecycle.IsReady())
	assert.False(t, f.lifecycle.HasBackup())
	assert.False(t, f.directory.hasBackup())
}

func TestLifecycle_NewUser_PublishFailureAbsorbed(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)
	f.directory.publishErr = errors.New("directory down")
	f.prompter.newPasswordOK = false

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateReady, state)
	assert.True(t, f.lifecycle.IsReady())

	// The key stays locally usable even though publication failed.
	_, err = f.cache.OwnKey(context.Background())
	require.NoError(t, err)
}

func TestLifecycle_RestoreFromBackup(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)

	// Seed a backup made by a previous device.
	deviceKey, err := crypto.NewKeyChainService().GenerateDeviceKey()
	require.NoError(t, err)
	require.NoError(t, f.cache.SetOwnKey(deviceKey))
	require.NoError(t, f.backup.CreateBackup(context.Background(), "strong password"))

	// A second fixture plays the new device: same server-side backup, empty
	// local state.
	f2 := newLifecycleFixture(t, time.Hour)
	f2.directory.mu.Lock()
	f2.directory.backup = f.directory.backup
	f2.directory.mu.Unlock()
	f2.prompter.restorePassword = "strong password"

	state, err := f2.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateReady, state)
	assert.True(t, f2.lifecycle.IsReady())
	assert.True(t, f2.lifecycle.HasBackup())

	own, err := f2.cache.OwnKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, deviceKey, own)
}

func TestLifecycle_RestoreWrongPassword_StaysNotReady(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)

	deviceKey, err := crypto.NewKeyChainService().GenerateDeviceKey()
	require.NoError(t, err)
	require.NoError(t, f.cache.SetOwnKey(deviceKey))
	require.NoError(t, f.backup.CreateBackup(context.Background(), "right password"))

	f2 := newLifecycleFixture(t, time.Hour)
	f2.directory.mu.Lock()
	f2.directory.backup = f.directory.backup
	f2.directory.mu.Unlock()
	f2.prompter.restorePassword = "wrong password"

	state, err := f2.lifecycle.Initialize(context.Background())
	require.ErrorIs(t, err, service.ErrInvalidBackupPassword)
	assert.Equal(t, service.StateNeedsRestore, state)
	assert.False(t, f2.lifecycle.IsReady())
}

func TestLifecycle_CompleteUser_ReadyWithoutPrompts(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)

	require.NoError(t, f.cache.SetOwnKey([]byte("existing device key")))
	f.directory.mu.Lock()
	f.directory.backup = &fakeBackupBlob
	f.directory.mu.Unlock()

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateReadyNoPrompt, state)
	assert.True(t, f.lifecycle.IsReady())
	assert.True(t, f.lifecycle.HasBackup())
}

func TestLifecycle_LegacyUser_OfferedBackupAfterRecheck(t *testing.T) {
	f := newLifecycleFixture(t, 20*time.Millisecond)
	require.NoError(t, f.cache.SetOwnKey([]byte("existing device key")))

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateLegacyNoBackup, state)
	assert.True(t, f.lifecycle.IsReady())
	assert.False(t, f.lifecycle.HasBackup())

	select {
	case <-f.prompter.offered:
	case <-time.After(2 * time.Second):
		t.Fatal("backup offer never surfaced")
	}
}

func TestLifecycle_LegacyUser_NoOfferWhenBackupAppears(t *testing.T) {
	f := newLifecycleFixture(t, 20*time.Millisecond)
	require.NoError(t, f.cache.SetOwnKey([]byte("existing device key")))

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateLegacyNoBackup, state)

	// A backup created on another device lands before the re-verification.
	f.directory.mu.Lock()
	f.directory.backup = &fakeBackupBlob
	f.directory.mu.Unlock()

	select {
	case <-f.prompter.offered:
		t.Fatal("offer must not fire when a backup exists")
	case <-time.After(200 * time.Millisecond):
	}
	assert.True(t, f.lifecycle.HasBackup())
}

func TestLifecycle_LegacyUser_CloseCancelsRecheck(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)
	require.NoError(t, f.cache.SetOwnKey([]byte("existing device key")))

	_, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)

	// Close must return promptly despite the pending hour-long timer.
	done := make(chan struct{})
	go func() {
		f.lifecycle.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the recheck job")
	}
}

func TestLifecycle_CreateBackupNow(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)
	require.NoError(t, f.cache.SetOwnKey([]byte("existing device key")))

	_, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, f.lifecycle.HasBackup())

	require.NoError(t, f.lifecycle.CreateBackupNow(context.Background(), "strong password"))
	assert.True(t, f.lifecycle.HasBackup())
	assert.True(t, f.directory.hasBackup())
}

func TestLifecycle_StorageFault_NeverRegeneratesKey(t *testing.T) {
	directory := newFakeDirectory()
	secureStore := &faultyStore{}
	cache := keycache.New(secureStore, newFakePeerRepo(), directory, logger.Nop())
	keychain := crypto.NewKeyChainService()
	backup := service.NewBackupService(cache, directory, keychain, logger.Nop())
	prompter := newFakePrompter()
	prompter.newPassword = "strong password"
	prompter.newPasswordOK = true

	lifecycle := service.NewKeyLifecycle(cache, directory, backup, keychain, prompter, time.Hour, logger.Nop())
	t.Cleanup(lifecycle.Close)

	state, err := lifecycle.Initialize(context.Background())
	require.ErrorIs(t, err, keystore.ErrStorageUnavailable)
	assert.Equal(t, service.StateUninitialized, state)
	assert.False(t, lifecycle.IsReady())

	// The unreadable key must be neither overwritten nor republished.
	assert.Zero(t, secureStore.sets)
	assert.Zero(t, directory.publishedCount())

	// Ciphers keep failing closed while the store is unreadable.
	messages := service.NewMessageService(cache, lifecycle,
		crypto.NewMessageCipher(), crypto.NewFileCipher(1024), testThreshold)
	_, err = messages.EncryptMessage(context.Background(), "alice", []byte("hi"))
	require.ErrorIs(t, err, service.ErrEncryptionNotReady)
}

func TestLifecycle_BackupProbeFailure_LocalKeyStillReady(t *testing.T) {
	f := newLifecycleFixture(t, time.Hour)
	require.NoError(t, f.cache.SetOwnKey([]byte("existing device key")))
	f.directory.checkErr = errors.New("directory unreachable")

	state, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.StateLegacyNoBackup, state)
	assert.True(t, f.lifecycle.IsReady())
}
