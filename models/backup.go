package models

import "time"

// BackupBlob is the password-wrapped copy of the device key held by the
// backend for recovery. The server never decrypts it; it is a blind blob
// store keyed by the authenticated user.
type BackupBlob struct {
	// Salt is the base64 16-byte Argon2id salt used to derive the wrapping
	// key from the backup password. The salt is not a secret.
	Salt string `json:"salt"`

	// WrappedKey is the base64 blob nonce || ciphertext produced by wrapping
	// the device key with AES-256-GCM under the password-derived key.
	WrappedKey string `json:"wrapped_key"`

	// CreatedAt records when the backup was produced.
	CreatedAt time.Time `json:"created_at"`
}
