package google

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/config"
)

// Recognizer is the subset of the Cloud Speech client the backend needs.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Backend implements backend.Backend with Google Cloud Speech-to-Text.
type Backend struct {
	client   Recognizer
	language string
	rate     int32
	logger   *slog.Logger
}

// New creates a Google Speech backend using Application Default Credentials.
func New(ctx context.Context, cfg config.GoogleConfig, logger *slog.Logger) (*Backend, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google: failed to create speech client: %w", err)
	}
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing recognizer.
func NewWithClient(client Recognizer, cfg config.GoogleConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		client:   client,
		language: cfg.LanguageCode,
		rate:     cfg.SampleRateHertz,
		logger:   logger.With("backend", string(backend.ProviderGoogle)),
	}
}

// Factory adapts New to backend.Factory.
func Factory(cfg config.SpeechConfig, deps backend.Deps) (backend.Backend, error) {
	return New(context.Background(), cfg.Google, deps.Logger)
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.Provider {
	return backend.ProviderGoogle
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Transcribe implements backend.Backend.
func (b *Backend) Transcribe(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	audio, err := io.ReadAll(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("google: failed to read audio input: %w", err)
	}
	if len(audio) == 0 {
		return nil, backend.ErrEmptyAudio
	}

	language := req.Language
	if language == "" {
		language = b.language
	}

	rc := &speechpb.RecognitionConfig{
		Encoding:                   EncodingFor(req.Filename),
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	if b.rate > 0 {
		rc.SampleRateHertz = b.rate
	}

	start := time.Now()

	resp, err := b.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: rc,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("google: %w: %s", backend.ErrUnsupportedAudio, status.Convert(err).Message())
		}
		return nil, fmt.Errorf("google: recognize failed: %w", err)
	}

	elapsed := time.Since(start).Seconds()

	var (
		parts  []string
		spoken time.Duration
	)
	for _, result := range resp.GetResults() {
		if end := result.GetResultEndTime(); end != nil {
			spoken = max(spoken, end.AsDuration())
		}
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}

	b.logger.Debug("Transcription finished", "file", req.Filename, "seconds", elapsed, "results", len(parts))

	return &backend.Response{
		Text: strings.Join(parts, " "),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           "default",
			Timestamp:       time.Now(),
			DurationSeconds: elapsed,
			BackendSpecific: map[string]any{
				"encoding":      rc.GetEncoding().String(),
				"language":      language,
				"audio_seconds": spoken.Seconds(),
			},
		},
	}, nil
}

// EncodingFor guesses the recognition encoding from a file extension.
func EncodingFor(filename string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3", ".mpeg":
		return speechpb.RecognitionConfig_MP3
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
