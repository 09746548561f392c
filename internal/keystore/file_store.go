package keystore

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fileStore keeps one 0600 file per entry under a private directory. It
// stands in for the platform keychain on hosts where no native secure
// storage is wired up; the contents are base64 so the files survive naive
// text-mode copies.
type fileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore returns a [SecureStore] rooted at dir, creating the directory
// with 0700 permissions if it does not exist.
func NewFileStore(dir string) (SecureStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty keystore directory", ErrStorageUnavailable)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create keystore dir: %v", ErrStorageUnavailable, err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) Get(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: read %q: %v", ErrStorageUnavailable, name, err)
	}

	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", ErrStorageUnavailable, name, err)
	}
	return value, nil
}

func (s *fileStore) Set(name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded := base64.StdEncoding.EncodeToString(value)
	if err := os.WriteFile(s.path(name), []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrStorageUnavailable, name, err)
	}
	return nil
}

func (s *fileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %q: %v", ErrStorageUnavailable, name, err)
	}
	return nil
}

// path maps an entry name to a file path. Slashes and dot-dots are flattened
// so an odd entry name cannot escape the keystore directory.
func (s *fileStore) path(name string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
	return filepath.Join(s.dir, safe)
}
