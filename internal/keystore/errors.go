package keystore

import "errors"

var (
	ErrKeyNotFound        = errors.New("key not found in secure storage")
	ErrStorageUnavailable = errors.New("secure storage unavailable")
)
