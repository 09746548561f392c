package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/internal/keycache"
	"github.com/mirrochat/e2ee-client/models"
)

// DefaultChunkThreshold is the attachment size at or below which the
// non-chunked envelope path is used: 5 MiB.
const DefaultChunkThreshold = 5 * 1024 * 1024

type messageService struct {
	cache      *keycache.Cache
	lifecycle  KeyLifecycle
	msgCipher  *crypto.MessageCipher
	fileCipher *crypto.FileCipher
	threshold  int
}

// NewMessageService constructs the [MessageService]. threshold is the
// attachment size cut-off for the chunked path; zero or negative selects
// [DefaultChunkThreshold].
func NewMessageService(cache *keycache.Cache, lifecycle KeyLifecycle, msgCipher *crypto.MessageCipher, fileCipher *crypto.FileCipher, threshold int) MessageService {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	return &messageService{
		cache:      cache,
		lifecycle:  lifecycle,
		msgCipher:  msgCipher,
		fileCipher: fileCipher,
		threshold:  threshold,
	}
}

func (m *messageService) EncryptMessage(ctx context.Context, peerID string, plaintext []byte) (models.EncryptedEnvelope, error) {
	key, err := m.resolveKey(ctx, peerID)
	if err != nil {
		return models.EncryptedEnvelope{}, err
	}
	return m.msgCipher.Encrypt(key, plaintext)
}

func (m *messageService) DecryptMessage(ctx context.Context, peerID string, envelope models.EncryptedEnvelope) ([]byte, error) {
	// Same resolution as EncryptMessage: the conversation's shared key.
	key, err := m.resolveKey(ctx, peerID)
	if err != nil {
		return nil, err
	}
	return m.msgCipher.Decrypt(envelope, key)
}

func (m *messageService) EncryptAttachment(ctx context.Context, fileName, fileType string, data []byte, progress crypto.ProgressFunc) (models.EncryptedAttachment, error) {
	key, err := m.resolveKey(ctx, "")
	if err != nil {
		return models.EncryptedAttachment{}, err
	}

	out := models.EncryptedAttachment{FileName: fileName, FileType: fileType}

	if len(data) <= m.threshold {
		envelope, err := m.msgCipher.Encrypt(key, data)
		if err != nil {
			return models.EncryptedAttachment{}, fmt.Errorf("encrypt attachment: %w", err)
		}
		out.Envelope = &envelope
		return out, nil
	}

	file, err := m.fileCipher.EncryptFile(ctx, key, fileName, fileType, data, progress)
	if err != nil {
		return models.EncryptedAttachment{}, fmt.Errorf("encrypt attachment: %w", err)
	}
	out.File = &file
	return out, nil
}

func (m *messageService) DecryptAttachment(ctx context.Context, senderID string, attachment models.EncryptedAttachment, progress crypto.ProgressFunc) ([]byte, error) {
	key, err := m.resolveKey(ctx, senderID)
	if err != nil {
		return nil, err
	}

	switch {
	case attachment.File != nil:
		plain, err := m.fileCipher.DecryptFile(ctx, key, *attachment.File, progress)
		if err != nil && senderID != "" && isIntegrityMismatch(err) {
			// A rotated peer key fails the integrity check the same way as
			// tampering. One forced directory fetch rules the rotation out
			// before the failure is surfaced.
			refreshed, rerr := m.cache.RefreshPeerKey(ctx, senderID)
			if rerr != nil {
				return nil, err
			}
			return m.fileCipher.DecryptFile(ctx, refreshed, *attachment.File, progress)
		}
		return plain, err
	case attachment.Envelope != nil:
		return m.msgCipher.Decrypt(*attachment.Envelope, key)
	default:
		return nil, fmt.Errorf("attachment carries neither envelope nor chunked file")
	}
}

func isIntegrityMismatch(err error) bool {
	return errors.Is(err, crypto.ErrMasterIntegrityMismatch) ||
		errors.Is(err, crypto.ErrChunkIntegrityMismatch)
}

// resolveKey is the single key-resolution policy: the device's own key for
// an empty peer ID, otherwise the peer's shared key through the cache. All
// cipher operations fail closed while the lifecycle is not ready.
func (m *messageService) resolveKey(ctx context.Context, peerID string) ([]byte, error) {
	if !m.lifecycle.IsReady() {
		return nil, ErrEncryptionNotReady
	}

	if peerID == "" {
		key, err := m.cache.OwnKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve own key: %w", err)
		}
		return key, nil
	}

	key, err := m.cache.PeerKey(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("resolve peer key: %w", err)
	}
	return key, nil
}
