package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrEmptyAudio        = errors.New("audio input is empty")
	ErrUnsupportedAudio  = errors.New("audio encoding is not supported")
)
