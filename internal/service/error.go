package service

import "errors"

// Error definitions for the service package.
var (
	ErrAudioNotFound       = errors.New("audio file not found")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrTranscriptStorage   = errors.New("failed to store transcript")
	ErrNullReplies         = errors.New("conversational server returned null instead of a reply list")
)

// TranscriptionError wraps a speech engine failure. Its message is the
// engine's own message; errors.Is matches ErrTranscriptionFailed.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return e.Err.Error()
}

func (e *TranscriptionError) Unwrap() []error {
	return []error{ErrTranscriptionFailed, e.Err}
}
