package storage

import "errors"

// Sentinel errors returned by the store.
var (
	ErrOpen     = errors.New("open run store")
	ErrNotFound = errors.New("run not found")
)
