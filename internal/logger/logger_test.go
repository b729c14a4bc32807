package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/voxa/internal/env"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithOutput(&buf))

	log.Info("Audio saved", "file", "a.wav")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Audio saved", record["msg"])
	assert.Equal(t, "a.wav", record["file"])
}

func TestNew_LevelVarIsHonoredAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	log := New(env.Test, WithOutput(&buf), WithLevel(level))

	log.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	log.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "voxa.log")
	log := New(env.Test, WithOutput(&buf), WithLogToFile(true), WithLogFile(path))

	log.With("component", "store").Info("Transcript saved", "stem", "clip")

	assert.Contains(t, buf.String(), "Transcript saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "Transcript saved", record["msg"])
	assert.Equal(t, "store", record["component"])
	assert.Equal(t, "clip", record["stem"])
}
