package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/config"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(config.OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "clip.mp3", hdr.Filename)
			assert.Equal(t, "mp3-bytes", string(data))
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "es", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"hola mundo "}`)
	}))
	defer srv.Close()

	b, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Language: "es"}, nil)
	require.NoError(t, err)

	resp, err := b.Transcribe(context.Background(), &backend.Request{
		Filename: "clip.mp3",
		Audio:    strings.NewReader("mp3-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", resp.Text)
	assert.Equal(t, backend.ProviderOpenAI, b.Provider())
}

func TestTranscribe_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	b, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = b.Transcribe(context.Background(), &backend.Request{Filename: "x.bin", Audio: strings.NewReader("x")})
	assert.ErrorIs(t, err, backend.ErrUnsupportedAudio)
	assert.Contains(t, err.Error(), "Invalid file format.")
}
