package models

// Chunk is one fixed-size slice of a large encrypted file.
type Chunk struct {
	// Index is the zero-based position of the chunk within the file.
	// Chunks must be ordered by Index with no gaps.
	Index int `json:"index"`

	// IV is the base64 16-byte initialisation vector used for this chunk.
	IV string `json:"iv"`

	// AuthTag is the hex HMAC-SHA256 tag binding the chunk ciphertext to the
	// file ID, the chunk index, and the file key.
	AuthTag string `json:"auth_tag"`

	// EncryptedData is the base64 AES-CBC ciphertext of the chunk.
	EncryptedData string `json:"encrypted_data"`

	// OriginalSize is the plaintext byte length of the chunk.
	OriginalSize int `json:"original_size"`

	// EncryptedSize is the ciphertext byte length (padding included).
	EncryptedSize int `json:"encrypted_size"`
}

// ChunkedFile is the in-memory/wire structure for an encrypted attachment.
// It is handed to the transport layer for upload as-is; this subsystem defines
// no on-disk format for it.
type ChunkedFile struct {
	// FileID is a random UUID assigned at encryption time. It is mixed into
	// every integrity tag, so tags from one file cannot be replayed in another.
	FileID string `json:"file_id"`

	// FileName is the original (unencrypted) file name.
	FileName string `json:"file_name"`

	// FileType is the MIME type of the original file.
	FileType string `json:"file_type"`

	// TotalChunks is the number of entries in Chunks.
	TotalChunks int `json:"total_chunks"`

	// OriginalSize is the total plaintext size in bytes.
	OriginalSize int `json:"original_size"`

	// EncryptedSize is the total ciphertext size in bytes.
	EncryptedSize int `json:"encrypted_size"`

	// MasterIV is a random IV slot kept for envelope-format symmetry.
	// It is not consumed during decryption.
	MasterIV string `json:"master_iv"`

	// MasterAuthTag is the hex HMAC-SHA256 tag over the ordered list of all
	// chunk tags. It binds chunk order and count for the whole file.
	MasterAuthTag string `json:"master_auth_tag"`

	// Chunks holds the encrypted chunks ordered by Index.
	Chunks []Chunk `json:"chunks"`
}
