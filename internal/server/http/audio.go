package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/voxa/internal/service"
	"github.com/ekisa-team/voxa/internal/storage"
)

// UploadContentTypes are the declared MIME types accepted by the upload endpoint.
var UploadContentTypes = []string{
	"audio/wav",
	"audio/mpeg",
	"audio/mp3",
	"audio/ogg",
	"audio/webm",
	"audio/webm;codecs=opus",
	"audio/x-wav",
	"audio/x-mpeg",
	"audio/mpeg3",
	"video/mpeg",
}

// LiveContentTypes are the declared MIME types accepted for live recordings.
var LiveContentTypes = []string{
	"audio/webm",
	"audio/wav",
	"audio/ogg",
}

const (
	uploadField     = "file"
	liveField       = "audio_data"
	liveNameLayout  = "20060102_150405"
	uploadReadLimit = 2 * time.Minute
)

// Transcriber transcribes stored audio by name.
type Transcriber interface {
	Transcribe(ctx context.Context, name string) (*service.TranscriptResult, error)
}

// AudioStore persists uploaded audio.
type AudioStore interface {
	SaveAudio(name string, r io.Reader) (string, error)
}

type (
	// UploadAudioInput is the multipart body of the upload operation.
	UploadAudioInput struct {
		RawBody multipart.Form
	}

	// UploadAudioOutput is the response of the upload operation.
	UploadAudioOutput struct {
		Body struct {
			Message  string `json:"message"`
			FilePath string `json:"file_path"`
		}
	}

	// TranscribeInput names the uploaded file to transcribe.
	TranscribeInput struct {
		FileName string `path:"file_name" doc:"Name of a previously uploaded audio file"`
	}

	// TranscribeOutput is the response of the transcribe operation.
	TranscribeOutput struct {
		Body struct {
			Message           string `json:"message"`
			TranscriptionPath string `json:"transcription_path"`
			TranscriptionText string `json:"transcription_text"`
		}
	}

	// RecordLiveInput is the multipart body of the live recording operation.
	RecordLiveInput struct {
		RawBody multipart.Form
	}

	// RecordLiveOutput is the response of the live recording operation.
	RecordLiveOutput struct {
		Body struct {
			Message           string `json:"message"`
			TranscriptionText string `json:"transcription_text"`
			AudioFile         string `json:"audio_file"`
			TranscriptionPath string `json:"transcription_path"`
		}
	}
)

// AudioOptions configure the audio handler.
type AudioOptions struct {
	MaxUploadBytes int64
	Now            func() time.Time
	Logger         *slog.Logger
}

// AudioHandler handles audio upload and transcription requests.
type AudioHandler struct {
	transcriber Transcriber
	store       AudioStore
	maxBytes    int64
	now         func() time.Time
	logger      *slog.Logger
}

// NewAudioHandler registers the audio operations on api.
func NewAudioHandler(api huma.API, transcriber Transcriber, store AudioStore, opts AudioOptions) *AudioHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &AudioHandler{
		transcriber: transcriber,
		store:       store,
		maxBytes:    opts.MaxUploadBytes,
		now:         opts.Now,
		logger:      opts.Logger,
	}

	huma.Register(api, huma.Operation{
		OperationID:     "upload-audio",
		Method:          http.MethodPost,
		Path:            "/audio/upload-audio",
		Summary:         "Upload an audio file",
		Tags:            []string{"Audio"},
		BodyReadTimeout: uploadReadLimit,
		MaxBodyBytes:    h.bodyLimit(),
	}, h.handleUpload)

	huma.Register(api, huma.Operation{
		OperationID: "transcribe-audio",
		Method:      http.MethodPost,
		Path:        "/audio/transcribe/{file_name}",
		Summary:     "Transcribe an uploaded audio file",
		Tags:        []string{"Audio"},
	}, h.handleTranscribe)

	huma.Register(api, huma.Operation{
		OperationID:     "record-live",
		Method:          http.MethodPost,
		Path:            "/audio/record-live",
		Summary:         "Record and transcribe live audio",
		Tags:            []string{"Audio"},
		BodyReadTimeout: uploadReadLimit,
		MaxBodyBytes:    h.bodyLimit(),
	}, h.handleRecordLive)

	return h
}

// bodyLimit leaves room for multipart framing around the file itself.
func (h *AudioHandler) bodyLimit() int64 {
	if h.maxBytes <= 0 {
		return -1
	}
	return h.maxBytes + 1<<20
}

func (h *AudioHandler) handleUpload(ctx context.Context, input *UploadAudioInput) (*UploadAudioOutput, error) {
	fh, err := formFile(&input.RawBody, uploadField)
	if err != nil {
		return nil, err
	}

	contentType := fh.Header.Get("Content-Type")
	if !slices.Contains(UploadContentTypes, contentType) {
		return nil, huma.Error400BadRequest(fmt.Sprintf(
			"Invalid file type: %s. Supported formats are: WAV, MP3, MPEG, OGG, and WebM.", contentType))
	}

	if err := h.checkSize(fh); err != nil {
		return nil, err
	}

	path, err := h.save(fh, fh.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("Invalid file name: %q", fh.Filename))
		}
		h.logger.Error("Failed to save upload", "file", fh.Filename, "error", err)
		return nil, huma.Error500InternalServerError(fmt.Sprintf("Failed to save audio file: %s", err))
	}

	h.logger.Info("Audio uploaded", "file", fh.Filename, "content_type", contentType, "bytes", fh.Size)

	out := &UploadAudioOutput{}
	out.Body.Message = fmt.Sprintf("File '%s' uploaded successfully!", fh.Filename)
	out.Body.FilePath = path
	return out, nil
}

func (h *AudioHandler) handleTranscribe(ctx context.Context, input *TranscribeInput) (*TranscribeOutput, error) {
	res, err := h.transcriber.Transcribe(ctx, input.FileName)
	if err != nil {
		if errors.Is(err, service.ErrAudioNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf(
				"File '%s' not found in the uploads directory. Please upload the file first.", input.FileName))
		}
		return nil, huma.Error500InternalServerError(fmt.Sprintf(
			"An error occurred during transcription: %s", err))
	}

	out := &TranscribeOutput{}
	out.Body.Message = fmt.Sprintf("Transcription completed for file '%s'.", input.FileName)
	out.Body.TranscriptionPath = res.TranscriptPath
	out.Body.TranscriptionText = res.Text
	return out, nil
}

func (h *AudioHandler) handleRecordLive(ctx context.Context, input *RecordLiveInput) (*RecordLiveOutput, error) {
	fh, err := formFile(&input.RawBody, liveField)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(LiveContentTypes, fh.Header.Get("Content-Type")) {
		return nil, huma.Error400BadRequest("Invalid audio format. Please use WebM, WAV, or OGG format.")
	}

	if err := h.checkSize(fh); err != nil {
		return nil, err
	}

	name := LiveRecordingName(h.now())

	if _, err := h.save(fh, name); err != nil {
		h.logger.Error("Failed to save live recording", "file", name, "error", err)
		return nil, huma.Error500InternalServerError(fmt.Sprintf("Failed to save audio file: %s", err))
	}

	res, err := h.transcriber.Transcribe(ctx, name)
	if err != nil {
		return nil, huma.Error500InternalServerError(fmt.Sprintf("Transcription failed: %s", err))
	}

	out := &RecordLiveOutput{}
	out.Body.Message = "Live audio transcribed successfully"
	out.Body.TranscriptionText = res.Text
	out.Body.AudioFile = name
	out.Body.TranscriptionPath = res.TranscriptPath
	return out, nil
}

// LiveRecordingName derives the stored name of a live recording from t.
func LiveRecordingName(t time.Time) string {
	return "live_recording_" + t.Format(liveNameLayout) + ".webm"
}

func (h *AudioHandler) checkSize(fh *multipart.FileHeader) error {
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return huma.NewError(http.StatusRequestEntityTooLarge, fmt.Sprintf(
			"File too large: %d bytes. Maximum allowed size is %d bytes.", fh.Size, h.maxBytes))
	}
	return nil
}

func (h *AudioHandler) save(fh *multipart.FileHeader, name string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	return h.store.SaveAudio(name, f)
}

// formFile returns the first file sent under field, or a 422 naming the field.
func formFile(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	if form != nil {
		if files := form.File[field]; len(files) > 0 {
			return files[0], nil
		}
	}
	return nil, huma.Error422UnprocessableEntity("validation failed", &huma.ErrorDetail{
		Message:  "Field required",
		Location: "body." + field,
	})
}
