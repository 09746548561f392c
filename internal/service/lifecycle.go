package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/internal/logger"
)

// State labels the outcome of lifecycle initialisation.
type State string

const (
	StateUninitialized  State = "uninitialized"
	StateNewUser        State = "new_user"
	StateNeedsRestore   State = "needs_restore"
	StateLegacyNoBackup State = "legacy_no_backup"
	StateReadyNoPrompt  State = "ready_no_prompt"
	StateReady          State = "ready"
)

// defaultBackupRecheckDelay spaces the legacy-user re-verification far
// enough from session start to avoid racing a backup that was just created
// on another device.
const defaultBackupRecheckDelay = 30 * time.Second

type keyLifecycle struct {
	cache     *keycache.Cache
	directory adapter.DirectoryClient
	backup    BackupService
	keychain  crypto.KeyChainService
	prompter  Prompter
	log       *logger.Logger

	recheckDelay time.Duration

	mu        sync.Mutex
	state     State
	ready     bool
	hasBackup bool

	jobCancel context.CancelFunc
	jobWG     sync.WaitGroup
}

// NewKeyLifecycle constructs the [KeyLifecycle]. recheckDelay controls how
// long the legacy-user path waits before re-verifying backup absence; zero
// or negative selects the default.
func NewKeyLifecycle(cache *keycache.Cache, directory adapter.DirectoryClient, backup BackupService, keychain crypto.KeyChainService, prompter Prompter, recheckDelay time.Duration, log *logger.Logger) KeyLifecycle {
	if recheckDelay <= 0 {
		recheckDelay = defaultBackupRecheckDelay
	}
	return &keyLifecycle{
		cache:        cache,
		directory:    directory,
		backup:       backup,
		keychain:     keychain,
		prompter:     prompter,
		recheckDelay: recheckDelay,
		log:          log,
		state:        StateUninitialized,
	}
}

func (l *keyLifecycle) Initialize(ctx context.Context) (State, error) {
	hasLocalKey := false
	if _, err := l.cache.OwnKey(ctx); err == nil {
		hasLocalKey = true
	} else if !errors.Is(err, keycache.ErrNotInitialized) {
		// A read fault is not proof of key absence. Running the new-user path
		// here would overwrite a key that still exists and orphan everything
		// encrypted under it, so the subsystem stays non-ready instead; the
		// ciphers keep failing closed until a later session can read the store.
		l.setState(StateUninitialized, false, false)
		return StateUninitialized, fmt.Errorf("local key probe: %w", err)
	}

	hasServerBackup := false
	backupKnown := true
	if has, err := l.backup.HasBackup(ctx); err != nil {
		backupKnown = false
		l.log.Warn().Err(err).Msg("backup probe failed")
	} else {
		hasServerBackup = has
	}

	switch {
	case !hasLocalKey && hasServerBackup:
		return l.restoreFromBackup(ctx)

	case !hasLocalKey:
		return l.provisionNewUser(ctx)

	case hasServerBackup:
		l.setState(StateReadyNoPrompt, true, true)
		return StateReadyNoPrompt, nil

	default:
		l.setState(StateLegacyNoBackup, true, false)
		if backupKnown {
			l.startBackupRecheck(ctx)
		}
		return StateLegacyNoBackup, nil
	}
}

// restoreFromBackup handles hasServerBackup ∧ ¬hasLocalKey: prompt for the
// backup password, unwrap the device key, persist it, and become ready.
func (l *keyLifecycle) restoreFromBackup(ctx context.Context) (State, error) {
	l.setState(StateNeedsRestore, false, true)

	password, err := l.prompter.RestorePassword(ctx)
	if err != nil {
		return StateNeedsRestore, fmt.Errorf("restore password prompt: %w", err)
	}

	if _, err = l.backup.Restore(ctx, password); err != nil {
		return StateNeedsRestore, fmt.Errorf("restore backup: %w", err)
	}

	l.setState(StateReady, true, true)
	return StateReady, nil
}

// provisionNewUser handles ¬hasLocalKey ∧ ¬hasServerBackup: generate the
// device key, publish it, and optionally create a backup. The backup
// password prompt is optional — skipping is allowed.
func (l *keyLifecycle) provisionNewUser(ctx context.Context) (State, error) {
	l.setState(StateNewUser, false, false)

	deviceKey, err := l.keychain.GenerateDeviceKey()
	if err != nil {
		return StateNewUser, fmt.Errorf("generate device key: %w", err)
	}
	if err = l.cache.SetOwnKey(deviceKey); err != nil {
		return StateNewUser, fmt.Errorf("persist device key: %w", err)
	}

	if err = l.directory.PublishKey(ctx, deviceKey); err != nil {
		// Publication can be retried on the next session; the local key is
		// installed and the app stays usable.
		l.log.Warn().Err(err).Msg("publish device key failed")
	}

	withBackup := false
	password, ok, err := l.prompter.NewBackupPassword(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("backup password prompt failed")
	} else if ok {
		if err = l.backup.CreateBackup(ctx, password); err != nil {
			l.log.Warn().Err(err).Msg("backup creation failed")
		} else {
			withBackup = true
		}
	}

	l.setState(StateReady, true, withBackup)
	return StateReady, nil
}

// startBackupRecheck re-verifies backup absence in the background before
// surfacing the legacy-user offer, so a backup created moments ago on
// another device does not trigger a false prompt.
func (l *keyLifecycle) startBackupRecheck(ctx context.Context) {
	l.stopBackupRecheck()

	jobCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.jobCancel = cancel
	l.mu.Unlock()

	l.jobWG.Add(1)
	go func() {
		defer l.jobWG.Done()

		t := time.NewTimer(l.recheckDelay)
		defer t.Stop()

		select {
		case <-jobCtx.Done():
			return
		case <-t.C:
		}

		has, err := l.backup.HasBackup(jobCtx)
		if err != nil {
			l.log.Warn().Err(err).Msg("backup re-verification failed")
			return
		}
		if has {
			l.mu.Lock()
			l.hasBackup = true
			l.mu.Unlock()
			return
		}

		l.prompter.OfferBackup(jobCtx)
	}()
}

func (l *keyLifecycle) stopBackupRecheck() {
	l.mu.Lock()
	cancel := l.jobCancel
	l.jobCancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.jobWG.Wait()
}

func (l *keyLifecycle) IsReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

func (l *keyLifecycle) HasBackup() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasBackup
}

func (l *keyLifecycle) CreateBackupNow(ctx context.Context, password string) error {
	if err := l.backup.CreateBackup(ctx, password); err != nil {
		return err
	}

	l.mu.Lock()
	l.hasBackup = true
	l.mu.Unlock()
	return nil
}

func (l *keyLifecycle) Close() {
	l.stopBackupRecheck()
}

func (l *keyLifecycle) setState(state State, ready, hasBackup bool) {
	l.mu.Lock()
	l.state = state
	l.ready = ready
	l.hasBackup = hasBackup
	l.mu.Unlock()

	l.log.Debug().Str("state", string(state)).Bool("ready", ready).Msg("lifecycle transition")
}
