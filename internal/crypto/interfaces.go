// Package crypto implements the cryptographic core of the e2ee client:
// device-key generation, password-based key wrapping for backups, the
// message keystream cipher, and the chunked file cipher.
//
// The package knows nothing about the network, storage, or users. Key
// resolution is the caller's job; every operation here takes explicit key
// material.
package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/keychain_service_mock.go -package=mock

// KeyChainService generates and protects key material.
//
// Backup scheme:
//
//	salt       = GenerateSalt()
//	wrappingK  = DeriveWrappingKey(password, salt)
//	wrapped    = WrapKey(deviceKey, wrappingK)     → stored server-side
//	deviceKey  = UnwrapKey(wrapped, wrappingK)     → restore path
type KeyChainService interface {
	// GenerateDeviceKey returns a fresh 256-bit random device key. Generated
	// once per installation; never regenerated while valid local state
	// exists.
	GenerateDeviceKey() ([]byte, error)

	// GenerateSalt returns a random 16-byte Argon2id salt. The salt is not a
	// secret and is stored alongside the wrapped key.
	GenerateSalt() ([]byte, error)

	// DeriveWrappingKey derives a 256-bit key from the backup password and
	// salt using Argon2id. The result exists only in client memory.
	DeriveWrappingKey(password string, salt []byte) []byte

	// WrapKey encrypts the device key under the wrapping key with
	// AES-256-GCM. The returned blob is nonce || ciphertext and is safe to
	// store server-side.
	WrapKey(deviceKey, wrappingKey []byte) ([]byte, error)

	// UnwrapKey inverts WrapKey. Returns an error if the blob is malformed
	// or the wrapping key is wrong (authentication-tag mismatch).
	UnwrapKey(wrapped, wrappingKey []byte) ([]byte, error)
}
