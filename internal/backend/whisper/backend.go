package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/config"
	"github.com/ekisa-team/voxa/internal/mapsafe"
	"github.com/ekisa-team/voxa/internal/xfs"
)

const (
	inferencePath = "/inference"
	serverName    = "whisper.cpp"
)

// Backend implements backend.Backend against a whisper.cpp server.
type Backend struct {
	cfg       config.WhisperConfig
	baseURL   string
	client    *http.Client
	servers   *backend.ServerManager
	converter *backend.Executor
	logger    *slog.Logger
}

// TranscriptionResponse is the JSON body returned by whisper-server.
type TranscriptionResponse struct {
	Text     string              `json:"text"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration,omitempty"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
}

// TranscriptSegment is a timed span of the transcript.
type TranscriptSegment struct {
	ID    int     `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// errorResponse is what whisper-server sends on failure.
type errorResponse struct {
	Error string `json:"error"`
}

// New creates a whisper.cpp backend. When cfg.BinPath is set the server is
// spawned through servers on first use; otherwise cfg.URL must point at a
// running instance.
func New(cfg config.WhisperConfig, servers *backend.ServerManager, converter *backend.Executor, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	if cfg.BinPath != "" {
		if servers == nil {
			return nil, fmt.Errorf("whisper: bin_path set without a server manager")
		}
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("whisper: model_path is required when bin_path is set")
		}
		baseURL = backend.ServerConfig{Port: cfg.Port}.BaseURL()
	}
	if baseURL == "" {
		return nil, fmt.Errorf("whisper: url is required")
	}
	if cfg.Convert && converter == nil {
		return nil, fmt.Errorf("whisper: convert enabled without an ffmpeg executor")
	}

	return &Backend{
		cfg:       cfg,
		baseURL:   baseURL,
		client:    &http.Client{},
		servers:   servers,
		converter: converter,
		logger:    logger.With("backend", serverName),
	}, nil
}

// Factory adapts New to backend.Factory.
func Factory(cfg config.SpeechConfig, deps backend.Deps) (backend.Backend, error) {
	return New(cfg.Whisper, deps.Servers, deps.Executor, deps.Logger)
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.Provider {
	return backend.ProviderWhisperCPP
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	if b.cfg.BinPath == "" || !b.servers.Running(serverName, b.cfg.Port) {
		return nil
	}
	return b.servers.StopServer(serverName, b.cfg.Port)
}

// Transcribe implements backend.Backend.
func (b *Backend) Transcribe(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if err := b.ensureServer(ctx); err != nil {
		return nil, err
	}

	audio, filename, err := b.prepareAudio(ctx, req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := b.buildForm(req, filename, audio)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+inferencePath, body)
	if err != nil {
		return nil, fmt.Errorf("whisper: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	start := time.Now()

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Seconds()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: request failed with status code %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var errResp errorResponse
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		return nil, fmt.Errorf("whisper: server error: %s", errResp.Error)
	}

	var tr TranscriptionResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("whisper: failed to decode response: %w", err)
	}

	text := strings.TrimSpace(tr.Text)
	b.logger.Debug("Transcription finished", "file", req.Filename, "seconds", elapsed, "chars", len(text))

	return &backend.Response{
		Text: text,
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           filepath.Base(b.cfg.ModelPath),
			Timestamp:       time.Now(),
			DurationSeconds: elapsed,
			BackendSpecific: map[string]any{
				"language": tr.Language,
				"segments": len(tr.Segments),
			},
		},
	}, nil
}

func (b *Backend) ensureServer(ctx context.Context) error {
	if b.cfg.BinPath == "" {
		return nil
	}

	err := b.servers.StartServer(ctx, backend.ServerConfig{
		Name:    serverName,
		BinPath: b.cfg.BinPath,
		Args: []string{
			"--model", b.cfg.ModelPath,
			"--host", "127.0.0.1",
			"--port", strconv.Itoa(b.cfg.Port),
		},
		Port:       b.cfg.Port,
		HealthPath: "/", // whisper-server has no dedicated health endpoint
	})
	if err != nil {
		return fmt.Errorf("whisper: failed to start server: %w", err)
	}
	return nil
}

// prepareAudio reads the request audio, converting it to WAV when enabled.
func (b *Backend) prepareAudio(ctx context.Context, req *backend.Request) ([]byte, string, error) {
	filename := filepath.Base(req.Filename)
	if filename == "." || filename == "/" {
		filename = "audio.wav"
	}

	if b.cfg.Convert {
		wav, err := b.converter.ConvertToWAV(ctx, req.Audio)
		if err != nil {
			return nil, "", fmt.Errorf("whisper: %w", err)
		}
		return wav, xfs.Stem(filename) + ".wav", nil
	}

	audio, err := io.ReadAll(req.Audio)
	if err != nil {
		return nil, "", fmt.Errorf("whisper: failed to read audio input: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", backend.ErrEmptyAudio
	}
	return audio, filename, nil
}

func (b *Backend) buildForm(req *backend.Request, filename string, audio []byte) (io.Reader, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("whisper: failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("whisper: failed to write audio data: %w", err)
	}

	for key, value := range b.formFields(req) {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("whisper: failed to write field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: failed to close multipart writer: %w", err)
	}

	return &body, w.FormDataContentType(), nil
}

// formFields maps request options onto whisper-server form fields.
func (b *Backend) formFields(req *backend.Request) map[string]string {
	p := req.Parameters

	language := req.Language
	if language == "" {
		language = b.cfg.Language
	}
	if language == "" {
		language = "auto"
	}

	fields := map[string]string{
		"response_format": "json",
		"language":        language,
		"temperature":     strconv.FormatFloat(mapsafe.Get(p, "temperature", 0.0), 'f', 2, 64),
	}

	if v := mapsafe.Get(p, "beam_size", -1); v > 0 {
		fields["beam_size"] = strconv.Itoa(v)
	}
	if v := mapsafe.Get(p, "best_of", 0); v > 0 {
		fields["best_of"] = strconv.Itoa(v)
	}
	if v := mapsafe.Get(p, "prompt", ""); v != "" {
		fields["prompt"] = v
	}
	if mapsafe.Get(p, "translate", false) {
		fields["translate"] = "true"
	}

	return fields
}
