package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/storage"
	"github.com/ekisa-team/voxa/internal/xfs"
)

// TranscriptResult is the outcome of a successful transcription.
type TranscriptResult struct {
	AudioName      string
	TranscriptPath string
	Text           string
}

// Transcription turns stored audio into stored transcripts using one shared
// speech engine. Engine calls are bounded by a fixed number of workers.
type Transcription struct {
	store    *storage.Store
	engine   backend.Backend
	workers  *semaphore.Weighted
	timeout  time.Duration
	language string
	params   map[string]any
	logger   *slog.Logger
}

// TranscriptionOption configures a Transcription.
type TranscriptionOption func(*Transcription)

// WithWorkers sets how many engine calls may run at once.
func WithWorkers(n int) TranscriptionOption {
	return func(t *Transcription) {
		if n > 0 {
			t.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout bounds each engine call.
func WithTimeout(d time.Duration) TranscriptionOption {
	return func(t *Transcription) { t.timeout = d }
}

// WithLanguage sets the language hint passed to the engine.
func WithLanguage(lang string) TranscriptionOption {
	return func(t *Transcription) { t.language = lang }
}

// WithParameters sets engine-specific decoding options sent with every call.
func WithParameters(params map[string]any) TranscriptionOption {
	return func(t *Transcription) { t.params = maps.Clone(params) }
}

// WithTranscriptionLogger sets the logger.
func WithTranscriptionLogger(l *slog.Logger) TranscriptionOption {
	return func(t *Transcription) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTranscription creates a transcription service.
func NewTranscription(store *storage.Store, engine backend.Backend, opts ...TranscriptionOption) *Transcription {
	t := &Transcription{
		store:   store,
		engine:  engine,
		workers: semaphore.NewWeighted(1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "transcription")
	return t
}

// Transcribe transcribes the uploaded audio called name and stores the
// transcript as <stem>.txt, replacing any earlier one.
func (t *Transcription) Transcribe(ctx context.Context, name string) (*TranscriptResult, error) {
	audio, err := t.store.OpenAudio(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return nil, fmt.Errorf("%w: %s: %w", ErrAudioNotFound, name, err)
		}
		return nil, &TranscriptionError{Err: err}
	}
	defer audio.Close()

	if err := t.workers.Acquire(ctx, 1); err != nil {
		return nil, &TranscriptionError{Err: err}
	}
	defer t.workers.Release(1)

	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()

	resp, err := t.engine.Transcribe(callCtx, &backend.Request{
		Filename:   name,
		Audio:      audio,
		Language:   t.language,
		Parameters: maps.Clone(t.params),
	})
	if err != nil {
		t.logger.Error("Transcription failed", "file", name, "provider", t.engine.Provider(), "error", err)
		return nil, &TranscriptionError{Err: err}
	}

	stem := xfs.Stem(name)

	path, err := t.store.SaveTranscript(stem, resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptStorage, err)
	}

	text, err := t.store.ReadTranscript(stem)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptStorage, err)
	}

	t.logger.Info("Transcription completed",
		"file", name,
		"provider", t.engine.Provider(),
		"elapsed", time.Since(start),
		"chars", len(text),
	)

	return &TranscriptResult{
		AudioName:      name,
		TranscriptPath: path,
		Text:           text,
	}, nil
}
