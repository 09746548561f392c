package service

import "errors"

var (
	ErrEncryptionNotReady     = errors.New("encryption subsystem not ready")
	ErrInvalidBackupPassword  = errors.New("invalid backup password")
	ErrBackupPasswordTooShort = errors.New("backup password must be at least 8 characters")
	ErrNoBackup               = errors.New("no key backup exists")
)
