package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(filepath.Join(root, "uploads"), filepath.Join(root, "transcriptions"))
	require.NoError(t, err)
	return s
}

func TestNew_CreatesDirectories(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(root, "a", "uploads")
	transcripts := filepath.Join(root, "b", "transcriptions")

	_, err := New(uploads, transcripts)
	require.NoError(t, err)

	for _, dir := range []string{uploads, transcripts} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent.
	_, err = New(uploads, transcripts)
	assert.NoError(t, err)
}

func TestSaveAudio_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0xff}

	path, err := s.SaveAudio("hello.wav", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.UploadsDir(), "hello.wav"), path)

	got, err := s.ReadAudio("hello.wav")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.True(t, s.HasAudio("hello.wav"))
}

func TestSaveAudio_Overwrites(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveAudio("clip.mp3", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = s.SaveAudio("clip.mp3", strings.NewReader("second"))
	require.NoError(t, err)

	got, err := s.ReadAudio("clip.mp3")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(s.UploadsDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestReadAudio_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadAudio("missing.wav")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.OpenAudio("missing.wav")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.HasAudio("missing.wav"))
}

func TestOpenAudio(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveAudio("a.ogg", strings.NewReader("ogg-bytes"))
	require.NoError(t, err)

	f, err := s.OpenAudio("a.ogg")
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(f)
	require.NoError(t, err)
	assert.Equal(t, "ogg-bytes", buf.String())
}

func TestTranscript_RoundTripAndOverwrite(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveTranscript("hello", "first text")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.TranscriptsDir(), "hello.txt"), path)

	_, err = s.SaveTranscript("hello", "second text")
	require.NoError(t, err)

	got, err := s.ReadTranscript("hello")
	require.NoError(t, err)
	assert.Equal(t, "second text", got)

	_, err = s.ReadTranscript("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "clip.wav", want: "clip.wav"},
		{in: "dir/clip.wav", want: "clip.wav"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "..", wantErr: true},
		{in: "/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanName(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSaveAudio_StaysInsideUploads(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveAudio("../escape.wav", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, s.UploadsDir(), filepath.Dir(path))
}
