package store

import "errors"

var ErrPeerKeyNotFound = errors.New("peer key not found in local store")
