package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/voxa/internal/env"
)

type options struct {
	level      slog.Leveler
	output     io.Writer
	logToFile  bool
	logFile    string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
}

// Option configures the logger.
type Option func(*options)

// WithLevel sets the minimum level. Pass a *slog.LevelVar to change it at runtime.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithOutput sets the console writer (stderr by default).
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogToFile enables the rotating file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the path of the rotating file sink.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithRotation sets the rotation policy of the file sink.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(o *options) {
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
		o.maxAgeDays = maxAgeDays
	}
}

// New builds a logger for the given environment.
// Development logs are colored console lines, production logs are JSON.
// When file logging is enabled, JSON records are also written to a rotating file.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		level:      slog.LevelInfo,
		output:     os.Stderr,
		logFile:    "logs/voxa.log",
		maxSizeMB:  50,
		maxBackups: 5,
		maxAgeDays: 28,
	}
	for _, opt := range opts {
		opt(o)
	}

	var console slog.Handler
	if environment.IsProduction() {
		console = slog.NewJSONHandler(o.output, &slog.HandlerOptions{Level: o.level})
	} else {
		console = tint.NewHandler(o.output, &tint.Options{
			Level:      o.level,
			TimeFormat: time.TimeOnly,
			NoColor:    environment == env.Test,
		})
	}

	if !o.logToFile || o.logFile == "" {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   o.logFile,
		MaxSize:    o.maxSizeMB,
		MaxBackups: o.maxBackups,
		MaxAge:     o.maxAgeDays,
		Compress:   true,
	}

	return slog.New(newFanout(
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.level}),
	))
}

// ParseLevel converts a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
