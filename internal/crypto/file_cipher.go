package crypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mirrochat/e2ee-client/models"
)

// DefaultChunkSize is the pre-encryption chunk size: 512 KiB.
const DefaultChunkSize = 512 * 1024

var (
	ErrEmptyFile               = errors.New("empty file rejected")
	ErrMasterIntegrityMismatch = errors.New("file master integrity check failed")
	ErrChunkIntegrityMismatch  = errors.New("chunk integrity check failed")
)

// ProgressPhase labels the three observable stages of a chunked file
// operation.
type ProgressPhase string

const (
	PhaseReading    ProgressPhase = "reading"
	PhaseEncrypting ProgressPhase = "encrypting"
	PhaseDecrypting ProgressPhase = "decrypting"
	PhaseFinalizing ProgressPhase = "finalizing"
)

// ProgressFunc receives progress callbacks so callers can drive a progress
// UI: reading covers 0–10%, the per-chunk phase (encrypting or decrypting)
// 10–95% proportional to the chunk index, finalizing lands on 100%. The
// callbacks are a required observable side effect of the cipher, not
// optional telemetry. A nil ProgressFunc disables reporting.
type ProgressFunc func(phase ProgressPhase, percent int)

// FileCipher splits large binary payloads into fixed-size chunks and
// encrypts and integrity-tags each chunk plus the whole file.
//
// Chunk boundaries are byte-accurate: the raw bytes are sliced before
// encryption and each chunk ciphertext is base64-encoded independently, so
// no chunk boundary ever lands inside a base64 group. Each chunk is
// AES-256-CBC with PKCS#7 padding under a digest-derived file key; the
// per-chunk tag is HMAC-SHA256 over the file ID, the chunk index, and the
// ciphertext, and the master tag binds the ordered list of all chunk tags.
type FileCipher struct {
	chunkSize int
}

// NewFileCipher returns a FileCipher with the given pre-encryption chunk
// size; zero or negative selects [DefaultChunkSize].
func NewFileCipher(chunkSize int) *FileCipher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FileCipher{chunkSize: chunkSize}
}

// EncryptFile encrypts data into a [models.ChunkedFile]. The whole payload
// is held in memory; the caller accepts that cost in exchange for simple
// random access to chunk boundaries. Encryption is sequential and checks
// ctx between chunks, so a long-running call aborts promptly when the user
// navigates away.
func (f *FileCipher) EncryptFile(ctx context.Context, key []byte, fileName, fileType string, data []byte, progress ProgressFunc) (models.ChunkedFile, error) {
	if len(key) == 0 {
		return models.ChunkedFile{}, ErrMissingKey
	}
	if len(data) == 0 {
		return models.ChunkedFile{}, ErrEmptyFile
	}

	report(progress, PhaseReading, 0)

	fileKey := deriveFileKey(key)
	fileID := uuid.NewString()
	totalChunks := (len(data) + f.chunkSize - 1) / f.chunkSize

	report(progress, PhaseReading, 10)

	out := models.ChunkedFile{
		FileID:       fileID,
		FileName:     fileName,
		FileType:     fileType,
		TotalChunks:  totalChunks,
		OriginalSize: len(data),
		Chunks:       make([]models.Chunk, 0, totalChunks),
	}

	for i := 0; i < totalChunks; i++ {
		if err := ctx.Err(); err != nil {
			return models.ChunkedFile{}, fmt.Errorf("encrypt file cancelled: %w", err)
		}

		start := i * f.chunkSize
		end := min(start+f.chunkSize, len(data))
		plain := data[start:end]

		iv := make([]byte, aes.BlockSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return models.ChunkedFile{}, fmt.Errorf("generate chunk iv: %w", err)
		}

		ciphertext, err := encryptCBC(fileKey, iv, plain)
		if err != nil {
			return models.ChunkedFile{}, fmt.Errorf("encrypt chunk %d: %w", i, err)
		}

		out.Chunks = append(out.Chunks, models.Chunk{
			Index:         i,
			IV:            base64.StdEncoding.EncodeToString(iv),
			AuthTag:       chunkTag(fileKey, fileID, i, ciphertext),
			EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
			OriginalSize:  len(plain),
			EncryptedSize: len(ciphertext),
		})
		out.EncryptedSize += len(ciphertext)

		report(progress, PhaseEncrypting, 10+(85*(i+1))/totalChunks)
	}

	masterIV := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, masterIV); err != nil {
		return models.ChunkedFile{}, fmt.Errorf("generate master iv: %w", err)
	}
	out.MasterIV = base64.StdEncoding.EncodeToString(masterIV)
	out.MasterAuthTag = masterTag(fileKey, fileID, out.Chunks)

	report(progress, PhaseFinalizing, 100)
	return out, nil
}

// DecryptFile inverts EncryptFile. The master tag is verified first and
// fails closed: no per-chunk work happens when the whole-file integrity
// check fails, and no partial plaintext is ever returned. Each chunk's tag
// is then verified before that chunk is decrypted.
func (f *FileCipher) DecryptFile(ctx context.Context, key []byte, file models.ChunkedFile, progress ProgressFunc) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	if file.TotalChunks == 0 || len(file.Chunks) == 0 {
		return nil, ErrEmptyFile
	}
	if len(file.Chunks) != file.TotalChunks {
		return nil, fmt.Errorf("%w: expected %d chunks, got %d", ErrMasterIntegrityMismatch, file.TotalChunks, len(file.Chunks))
	}

	report(progress, PhaseReading, 0)

	fileKey := deriveFileKey(key)
	if !tagsEqual(file.MasterAuthTag, masterTag(fileKey, file.FileID, file.Chunks)) {
		return nil, ErrMasterIntegrityMismatch
	}

	report(progress, PhaseReading, 10)

	out := make([]byte, 0, file.OriginalSize)
	for i, chunk := range file.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("decrypt file cancelled: %w", err)
		}
		if chunk.Index != i {
			return nil, fmt.Errorf("%w: chunk %d out of order", ErrChunkIntegrityMismatch, chunk.Index)
		}

		ciphertext, err := base64.StdEncoding.DecodeString(chunk.EncryptedData)
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", i, err)
		}
		if !tagsEqual(chunk.AuthTag, chunkTag(fileKey, file.FileID, i, ciphertext)) {
			return nil, fmt.Errorf("%w: chunk %d", ErrChunkIntegrityMismatch, i)
		}

		iv, err := base64.StdEncoding.DecodeString(chunk.IV)
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d iv: %w", i, err)
		}

		plain, err := decryptCBC(fileKey, iv, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt chunk %d: %w", i, err)
		}
		out = append(out, plain...)

		report(progress, PhaseDecrypting, 10+(85*(i+1))/len(file.Chunks))
	}

	report(progress, PhaseFinalizing, 100)
	return out, nil
}

// deriveFileKey derives the chunk encryption/MAC key from the device or
// peer key via a fixed-output digest.
func deriveFileKey(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

// chunkTag computes the per-chunk integrity tag: HMAC-SHA256 keyed with the
// file key over fileID ‖ index ‖ ciphertext. Mixing in the file ID and the
// index prevents replaying a chunk into another file or position.
func chunkTag(fileKey []byte, fileID string, index int, ciphertext []byte) string {
	mac := hmac.New(sha256.New, fileKey)
	mac.Write([]byte(fileID))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.Itoa(index)))
	mac.Write([]byte(":"))
	mac.Write(ciphertext)
	return hex.EncodeToString(mac.Sum(nil))
}

// masterTag binds the ordered concatenation of all chunk tags, fixing both
// chunk order and chunk count for the file.
func masterTag(fileKey []byte, fileID string, chunks []models.Chunk) string {
	tags := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		tags = append(tags, chunk.AuthTag)
	}

	mac := hmac.New(sha256.New, fileKey)
	mac.Write([]byte(fileID))
	mac.Write([]byte(":master:"))
	mac.Write([]byte(strings.Join(tags, ":")))
	return hex.EncodeToString(mac.Sum(nil))
}

func tagsEqual(a, b string) bool {
	rawA, errA := hex.DecodeString(a)
	rawB, errB := hex.DecodeString(b)
	if errA != nil || errB != nil {
		return false
	}
	return hmac.Equal(rawA, rawB)
}

func encryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := padPKCS7(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func decryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv length: %d", len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("invalid ciphertext length: %d", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpadPKCS7(out, aes.BlockSize)
}

func padPKCS7(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}

func report(progress ProgressFunc, phase ProgressPhase, percent int) {
	if progress != nil {
		progress(phase, percent)
	}
}
