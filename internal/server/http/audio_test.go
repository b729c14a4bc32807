package http

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/storage"
)

func TestUploadAudio_AcceptsAllowList(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for i, ct := range UploadContentTypes {
		t.Run(ct, func(t *testing.T) {
			name := "clip" + string(rune('a'+i)) + ".bin"
			resp, body := env.upload(t, name, ct, []byte("audio"))

			require.Equal(t, http.StatusOK, resp.StatusCode, body)
			assert.Equal(t, "File '"+name+"' uploaded successfully!", body["message"])
			assert.Equal(t, filepath.Join(env.store.UploadsDir(), name), body["file_path"])

			got, err := env.store.ReadAudio(name)
			require.NoError(t, err)
			assert.Equal(t, "audio", string(got))
		})
	}
}

func TestUploadAudio_RejectsOtherTypes(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, ct := range []string{"text/plain", "AUDIO/WAV", "audio/flac", "application/octet-stream"} {
		t.Run(ct, func(t *testing.T) {
			resp, body := env.upload(t, "notes.txt", ct, []byte("hello"))

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t,
				"Invalid file type: "+ct+". Supported formats are: WAV, MP3, MPEG, OGG, and WebM.",
				body["detail"])
			assert.False(t, env.store.HasAudio("notes.txt"))
		})
	}
}

func TestUploadAudio_MissingFile(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	body, ct := multipartBody(t, "other", "a.wav", "audio/wav", []byte("x"))
	resp, _ := env.post(t, "/audio/upload-audio", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadAudio_TooLarge(t *testing.T) {
	env := newTestEnv(t, envOptions{maxUpload: 8})

	resp, _ := env.upload(t, "big.wav", "audio/wav", []byte(strings.Repeat("x", 64)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.False(t, env.store.HasAudio("big.wav"))
}

func TestUploadAudio_Overwrites(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, _ := env.upload(t, "same.mp3", "audio/mpeg", []byte("first"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.upload(t, "same.mp3", "audio/mpeg", []byte("second"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := env.store.ReadAudio("same.mp3")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestTranscribe_NotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.post(t, "/audio/transcribe/never-uploaded.wav", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t,
		"File 'never-uploaded.wav' not found in the uploads directory. Please upload the file first.",
		body["detail"])
	env.engine.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
}

func TestTranscribe_PersistsEngineText(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.On("Transcribe", mock.Anything, mock.MatchedBy(func(req *backend.Request) bool {
		return req.Filename == "test_audio.wav"
	})).Return(&backend.Response{Text: "Mock transcription text."}, nil)

	resp, _ := env.upload(t, "test_audio.wav", "audio/wav", []byte("RIFF"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.post(t, "/audio/transcribe/test_audio.wav", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	wantPath := filepath.Join(env.store.TranscriptsDir(), "test_audio.txt")
	assert.Equal(t, "Transcription completed for file 'test_audio.wav'.", body["message"])
	assert.Equal(t, "Mock transcription text.", body["transcription_text"])
	assert.Equal(t, wantPath, body["transcription_path"])

	onDisk, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Equal(t, "Mock transcription text.", string(onDisk))
}

func TestTranscribe_Idempotent(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.On("Transcribe", mock.Anything, mock.Anything).Return(&backend.Response{Text: "same words"}, nil)

	resp, _ := env.upload(t, "again.ogg", "audio/ogg", []byte("ogg"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for range 2 {
		resp, body := env.post(t, "/audio/transcribe/again.ogg", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "same words", body["transcription_text"])
	}

	entries, err := os.ReadDir(env.store.TranscriptsDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTranscribe_EngineFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.On("Transcribe", mock.Anything, mock.Anything).Return(nil, errors.New("model exploded"))

	resp, _ := env.upload(t, "boom.wav", "audio/wav", []byte("RIFF"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.post(t, "/audio/transcribe/boom.wav", nil, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "An error occurred during transcription: model exploded", body["detail"])

	_, err := env.store.ReadTranscript("boom")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

var liveNamePattern = regexp.MustCompile(`^live_recording_\d{8}_\d{6}\.webm$`)

func TestRecordLive(t *testing.T) {
	fixed := time.Date(2025, 3, 9, 14, 5, 7, 0, time.Local)
	env := newTestEnv(t, envOptions{now: func() time.Time { return fixed }})
	env.engine.On("Transcribe", mock.Anything, mock.Anything).Return(&backend.Response{Text: "live words"}, nil)

	body, ct := multipartBody(t, "audio_data", "blob", "audio/webm", []byte("webm"))
	resp, out := env.post(t, "/audio/record-live", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	name, _ := out["audio_file"].(string)
	assert.Equal(t, "live_recording_20250309_140507.webm", name)
	assert.Regexp(t, liveNamePattern, name)
	assert.Equal(t, "Live audio transcribed successfully", out["message"])
	assert.Equal(t, "live words", out["transcription_text"])
	assert.Equal(t, filepath.Join(env.store.TranscriptsDir(), "live_recording_20250309_140507.txt"), out["transcription_path"])

	// The stored recording can be transcribed again by name.
	resp, again := env.post(t, "/audio/transcribe/"+name, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "live words", again["transcription_text"])
}

func TestRecordLive_DefaultClockName(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.On("Transcribe", mock.Anything, mock.Anything).Return(&backend.Response{Text: "x"}, nil)

	body, ct := multipartBody(t, "audio_data", "blob", "audio/ogg", []byte("ogg"))
	resp, out := env.post(t, "/audio/record-live", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Regexp(t, liveNamePattern, out["audio_file"])
}

func TestRecordLive_RejectsFormat(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, ct := range []string{"audio/mpeg", "audio/webm;codecs=opus", "text/plain"} {
		body, mct := multipartBody(t, "audio_data", "blob", ct, []byte("x"))
		resp, out := env.post(t, "/audio/record-live", body, mct)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, ct)
		assert.Equal(t, "Invalid audio format. Please use WebM, WAV, or OGG format.", out["detail"])
	}

	entries, err := os.ReadDir(env.store.UploadsDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordLive_TranscriptionFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.engine.On("Transcribe", mock.Anything, mock.Anything).Return(nil, errors.New("no speech"))

	body, ct := multipartBody(t, "audio_data", "blob", "audio/wav", []byte("RIFF"))
	resp, out := env.post(t, "/audio/record-live", body, ct)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Transcription failed: no speech", out["detail"])
}

type failingStore struct{}

func (failingStore) SaveAudio(string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestRecordLive_SaveFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{
		audioStore: func(*storage.Store) AudioStore { return failingStore{} },
	})

	body, ct := multipartBody(t, "audio_data", "blob", "audio/webm", []byte("webm"))
	resp, out := env.post(t, "/audio/record-live", body, ct)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to save audio file: disk full", out["detail"])
	env.engine.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
}

func TestLiveRecordingName(t *testing.T) {
	ts := time.Date(1999, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "live_recording_19991231_235958.webm", LiveRecordingName(ts))
}
