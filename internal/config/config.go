package config

import "time"

// Config holds the main configuration for the application.
type Config struct {
	Version string        `json:"version"           yaml:"version"`
	Server  ServerConfig  `json:"server,omitempty"  yaml:"server,omitempty"`
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	Speech  SpeechConfig  `json:"speech,omitempty"  yaml:"speech,omitempty"`
	Chat    ChatConfig    `json:"chat,omitempty"    yaml:"chat,omitempty"`
	Log     LogConfig     `json:"log,omitempty"     yaml:"log,omitempty"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPAddr        string        `json:"http_addr,omitempty"        yaml:"http_addr,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}

// StorageConfig holds the upload and transcript directories.
type StorageConfig struct {
	UploadsDir        string `json:"uploads_dir,omitempty"        yaml:"uploads_dir,omitempty"`
	TranscriptionsDir string `json:"transcriptions_dir,omitempty" yaml:"transcriptions_dir,omitempty"`
	MaxUploadBytes    int64  `json:"max_upload_bytes,omitempty"   yaml:"max_upload_bytes,omitempty"`
}

// SpeechConfig selects and configures the speech-to-text engine.
// Exactly one engine is built per process.
type SpeechConfig struct {
	Backend string        `json:"backend,omitempty" yaml:"backend,omitempty"` // "whisper.cpp", "openai", "google"
	Workers int           `json:"workers,omitempty" yaml:"workers,omitempty"` // concurrent model calls
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Parameters are decoding options passed with every engine call
	// (temperature, prompt, beam_size, best_of, translate).
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	Whisper WhisperConfig `json:"whisper,omitempty" yaml:"whisper,omitempty"`
	OpenAI  OpenAIConfig  `json:"openai,omitempty"  yaml:"openai,omitempty"`
	Google  GoogleConfig  `json:"google,omitempty"  yaml:"google,omitempty"`
}

// WhisperConfig configures the whisper.cpp server backend.
// When BinPath is set the server is started as a child process on Port.
type WhisperConfig struct {
	URL        string `json:"url,omitempty"         yaml:"url,omitempty"`
	BinPath    string `json:"bin_path,omitempty"    yaml:"bin_path,omitempty"`
	ModelPath  string `json:"model_path,omitempty"  yaml:"model_path,omitempty"`
	Port       int    `json:"port,omitempty"        yaml:"port,omitempty"`
	Language   string `json:"language,omitempty"    yaml:"language,omitempty"`
	Convert    bool   `json:"convert,omitempty"     yaml:"convert,omitempty"`
	FFmpegPath string `json:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty"`
}

// OpenAIConfig configures the OpenAI transcription backend.
type OpenAIConfig struct {
	APIKey   string `json:"api_key,omitempty"  yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model    string `json:"model,omitempty"    yaml:"model,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// GoogleConfig configures the Google Cloud Speech backend.
// Credentials come from Application Default Credentials.
type GoogleConfig struct {
	LanguageCode    string `json:"language_code,omitempty"     yaml:"language_code,omitempty"`
	SampleRateHertz int32  `json:"sample_rate_hertz,omitempty" yaml:"sample_rate_hertz,omitempty"`
}

// ChatConfig configures the conversational server relay.
type ChatConfig struct {
	RasaURL        string        `json:"rasa_url,omitempty"        yaml:"rasa_url,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	SocketTimeout  time.Duration `json:"socket_timeout,omitempty"  yaml:"socket_timeout,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `json:"level,omitempty"        yaml:"level,omitempty"`
	File       string `json:"file,omitempty"         yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"  yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"  yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}
