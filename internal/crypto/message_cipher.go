package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mirrochat/e2ee-client/models"
)

// messageIVSize is the per-message IV length in bytes.
const messageIVSize = 16

var ErrMissingKey = errors.New("no key material for cipher operation")

// MessageCipher encrypts and decrypts short text payloads with a shared
// symmetric key. The keystream is SHA-256 counter expansion of key ⊕ IV and
// the ciphertext is a plain XOR against it.
//
// The envelope carries no authentication tag: tampered ciphertext decrypts
// to garbage without error signalling. This is a designed limitation of the
// message layer, documented in [models.EncryptedEnvelope]; attachments use
// the authenticated chunked file cipher instead.
type MessageCipher struct{}

// NewMessageCipher returns a stateless message cipher.
func NewMessageCipher() *MessageCipher {
	return &MessageCipher{}
}

// Encrypt produces an envelope for plaintext under the shared key. A fresh
// 16-byte IV is generated per call, so encrypting the same plaintext twice
// yields different ciphertexts.
func (m *MessageCipher) Encrypt(key []byte, plaintext []byte) (models.EncryptedEnvelope, error) {
	if len(key) == 0 {
		return models.EncryptedEnvelope{}, ErrMissingKey
	}

	iv := make([]byte, messageIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return models.EncryptedEnvelope{}, fmt.Errorf("generate iv: %w", err)
	}

	ciphertext := xorKeystream(key, iv, plaintext)
	return models.EncryptedEnvelope{
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt inverts Encrypt. The same shared key that produced the envelope
// must be supplied; a wrong key yields garbage, not an error.
func (m *MessageCipher) Decrypt(envelope models.EncryptedEnvelope, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}

	iv, err := base64.StdEncoding.DecodeString(envelope.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	if len(iv) != messageIVSize {
		return nil, fmt.Errorf("invalid iv length: %d", len(iv))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	return xorKeystream(key, iv, ciphertext), nil
}

// xorKeystream XORs data against a keystream derived from key and iv. The
// seed is the key with the IV folded in cyclically; keystream block i is
// SHA-256(seed ‖ i). Encryption and decryption are the same operation.
func xorKeystream(key, iv, data []byte) []byte {
	seed := make([]byte, len(key))
	copy(seed, key)
	for i := range seed {
		seed[i] ^= iv[i%len(iv)]
	}

	out := make([]byte, len(data))
	var counter [4]byte
	for offset := 0; offset < len(data); offset += sha256.Size {
		binary.BigEndian.PutUint32(counter[:], uint32(offset/sha256.Size))

		h := sha256.New()
		h.Write(seed)
		h.Write(counter[:])
		block := h.Sum(nil)

		for i := 0; i < sha256.Size && offset+i < len(data); i++ {
			out[offset+i] = data[offset+i] ^ block[i]
		}
	}
	return out
}
