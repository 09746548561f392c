// Package keystore wraps the platform secure storage that holds the device's
// own symmetric key. Peer keys live in the SQLite repository, not here.
//
// All operations are local and synchronous from the caller's perspective. A
// value once set must be retrievable until explicitly deleted or the OS wipes
// the device storage. A backend that cannot be reached reports
// [ErrStorageUnavailable]; callers must not silently continue with an empty
// key.
package keystore

//go:generate mockgen -source=interfaces.go -destination=../mock/secure_store_mock.go -package=mock

// DeviceKeyName is the fixed storage name under which the device's own
// symmetric key is persisted.
const DeviceKeyName = "device_key"

// SecureStore is the contract for the local secure storage backend.
type SecureStore interface {
	// Get returns the value stored under name. Returns [ErrKeyNotFound] if
	// no value has been set, or [ErrStorageUnavailable] if the backend
	// cannot be reached.
	Get(name string) ([]byte, error)

	// Set stores value under name, replacing any previous value.
	Set(name string, value []byte) error

	// Delete removes the value stored under name. Deleting a missing entry
	// is a no-op.
	Delete(name string) error
}
