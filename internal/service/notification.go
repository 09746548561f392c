package service

import (
	"context"
	"fmt"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/crypto"
	"github.com/mirrochat/e2ee-client/models"
)

type notificationService struct {
	directory adapter.DirectoryClient
	cipher    *crypto.MessageCipher
}

// NewNotificationService constructs the [NotificationService] used by the
// push-notification decrypt trigger.
func NewNotificationService(directory adapter.DirectoryClient, cipher *crypto.MessageCipher) NotificationService {
	return &notificationService{directory: directory, cipher: cipher}
}

func (n *notificationService) DecryptNotification(ctx context.Context, conversationID, messageID, rawEnvelope string) (string, error) {
	key, err := n.directory.FetchMessageKey(ctx, conversationID, messageID)
	if err != nil {
		return "", fmt.Errorf("fetch message key: %w", err)
	}

	envelope, err := models.ParseEnvelope(rawEnvelope)
	if err != nil {
		return "", fmt.Errorf("parse notification envelope: %w", err)
	}

	plaintext, err := n.cipher.Decrypt(envelope, key)
	if err != nil {
		return "", fmt.Errorf("decrypt notification: %w", err)
	}
	return string(plaintext), nil
}
