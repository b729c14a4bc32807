package storage

import "errors"

// Error definitions for the storage package.
var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)
