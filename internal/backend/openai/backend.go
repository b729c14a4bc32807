package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/config"
	"github.com/ekisa-team/voxa/internal/mapsafe"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is not configured")

// Backend implements backend.Backend with the OpenAI audio transcription API.
type Backend struct {
	client   *goopenai.Client
	model    string
	language string
	logger   *slog.Logger
}

// New creates an OpenAI transcription backend.
func New(cfg config.OpenAIConfig, logger *slog.Logger) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = goopenai.Whisper1
	}

	return &Backend{
		client:   goopenai.NewClientWithConfig(clientCfg),
		model:    model,
		language: cfg.Language,
		logger:   logger.With("backend", string(backend.ProviderOpenAI)),
	}, nil
}

// Factory adapts New to backend.Factory.
func Factory(cfg config.SpeechConfig, deps backend.Deps) (backend.Backend, error) {
	return New(cfg.OpenAI, deps.Logger)
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.Provider {
	return backend.ProviderOpenAI
}

// Close implements backend.Backend. The HTTP client holds nothing to release.
func (b *Backend) Close() error {
	return nil
}

// Transcribe implements backend.Backend.
func (b *Backend) Transcribe(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	language := req.Language
	if language == "" {
		language = b.language
	}

	start := time.Now()

	resp, err := b.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:       b.model,
		FilePath:    filepath.Base(req.Filename),
		Reader:      req.Audio,
		Prompt:      mapsafe.Get(req.Parameters, "prompt", ""),
		Temperature: float32(mapsafe.Get(req.Parameters, "temperature", 0.0)),
		Language:    language,
		Format:      goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 400 {
			return nil, fmt.Errorf("openai: %w: %s", backend.ErrUnsupportedAudio, apiErr.Message)
		}
		return nil, fmt.Errorf("openai: transcription request failed: %w", err)
	}

	elapsed := time.Since(start).Seconds()
	b.logger.Debug("Transcription finished", "file", req.Filename, "seconds", elapsed)

	return &backend.Response{
		Text: strings.TrimSpace(resp.Text),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           b.model,
			Timestamp:       time.Now(),
			DurationSeconds: elapsed,
			BackendSpecific: map[string]any{
				"language": resp.Language,
				"duration": resp.Duration,
			},
		},
	}, nil
}
