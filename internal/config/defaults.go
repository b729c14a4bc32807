package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	DefaultHTTPAddr          = ":8000"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultUploadsDir        = "data/uploads"
	DefaultTranscriptionsDir = "data/transcriptions"
	DefaultMaxUploadBytes    = 20 * 1024 * 1024
	DefaultSpeechBackend     = "whisper.cpp"
	DefaultSpeechWorkers     = 2
	DefaultSpeechTimeout     = 5 * time.Minute
	DefaultWhisperURL        = "http://127.0.0.1:8082"
	DefaultWhisperPort       = 8082
	DefaultOpenAIModel       = "whisper-1"
	DefaultGoogleLanguage    = "en-US"
	DefaultRasaURL           = "http://localhost:5005"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultSocketTimeout     = 10 * time.Second
	DefaultLogLevel          = "info"
)

// DefaultConfigPath returns the default path for the voxa config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "voxa")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "voxa")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "voxa")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "voxa")
		}
		return filepath.Join(home, ".config", "voxa")
	}
}

// Default returns the configuration used when no config file exists:
// environment overrides on top of the built-in defaults.
func Default() *Config {
	cfg := &Config{Version: "1"}
	cfg.applyEnvOverrides()
	cfg.setDefaults()
	cfg.expandPaths()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = DefaultUploadsDir
	}
	if c.Storage.TranscriptionsDir == "" {
		c.Storage.TranscriptionsDir = DefaultTranscriptionsDir
	}
	if c.Storage.MaxUploadBytes == 0 {
		c.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Speech.Backend == "" {
		c.Speech.Backend = DefaultSpeechBackend
	}
	if c.Speech.Workers == 0 {
		c.Speech.Workers = DefaultSpeechWorkers
	}
	if c.Speech.Timeout == 0 {
		c.Speech.Timeout = DefaultSpeechTimeout
	}
	if c.Speech.Whisper.URL == "" {
		c.Speech.Whisper.URL = DefaultWhisperURL
	}
	if c.Speech.Whisper.Port == 0 {
		c.Speech.Whisper.Port = DefaultWhisperPort
	}
	if c.Speech.Whisper.FFmpegPath == "" {
		c.Speech.Whisper.FFmpegPath = "ffmpeg"
	}
	if c.Speech.OpenAI.Model == "" {
		c.Speech.OpenAI.Model = DefaultOpenAIModel
	}
	if c.Speech.Google.LanguageCode == "" {
		c.Speech.Google.LanguageCode = DefaultGoogleLanguage
	}
	if c.Chat.RasaURL == "" {
		c.Chat.RasaURL = DefaultRasaURL
	}
	if c.Chat.RequestTimeout == 0 {
		c.Chat.RequestTimeout = DefaultRequestTimeout
	}
	if c.Chat.SocketTimeout == 0 {
		c.Chat.SocketTimeout = DefaultSocketTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
