package adapter

import "errors"

var (
	ErrNotAuthenticated = errors.New("no bearer credential set")
	ErrNotFound         = errors.New("not found in key directory")
	ErrTransient        = errors.New("transient directory failure")
)
