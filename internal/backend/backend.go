package backend

import (
	"context"
	"io"
	"time"
)

// Provider is a string identifier for a speech engine provider.
type Provider string

const (
	ProviderWhisperCPP Provider = "whisper.cpp"
	ProviderOpenAI     Provider = "openai"
	ProviderGoogle     Provider = "google"
)

// Backend is a speech-to-text engine. Implementations must be safe for
// concurrent use; the process builds exactly one and shares it.
type Backend interface {
	// Provider returns the engine identifier.
	Provider() Provider

	// Transcribe turns the audio in req into text.
	Transcribe(ctx context.Context, req *Request) (*Response, error)

	// Close releases engine resources.
	Close() error
}

// Request encapsulates one transcription call.
type Request struct {
	// Filename is the stored audio name. Engines use its extension to guess the encoding.
	Filename string

	// Audio is the raw audio stream.
	Audio io.Reader

	// Language is an optional language hint ("en", "en-US").
	Language string

	// Parameters contains engine-specific options.
	Parameters map[string]any
}

// Response is the result of a transcription.
type Response struct {
	Text     string
	Metadata *ResponseMetadata
}

// ResponseMetadata describes how a transcript was produced.
type ResponseMetadata struct {
	Provider        Provider       `json:"provider"`
	Model           string         `json:"model"`
	Timestamp       time.Time      `json:"timestamp"`
	DurationSeconds float64        `json:"duration_seconds"`
	BackendSpecific map[string]any `json:"backend_specific,omitempty"`
}
