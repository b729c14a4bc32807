package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/backend/google"
	"github.com/ekisa-team/voxa/internal/backend/openai"
	"github.com/ekisa-team/voxa/internal/backend/whisper"
	"github.com/ekisa-team/voxa/internal/config"
	"github.com/ekisa-team/voxa/internal/env"
	"github.com/ekisa-team/voxa/internal/envvar"
	"github.com/ekisa-team/voxa/internal/logger"
	"github.com/ekisa-team/voxa/internal/rasa"
	httpserver "github.com/ekisa-team/voxa/internal/server/http"
	"github.com/ekisa-team/voxa/internal/service"
	"github.com/ekisa-team/voxa/internal/storage"
	"github.com/ekisa-team/voxa/internal/xfs"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("voxa exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		flagConfigPath = flag.String("config", "", "Path to config file (default $VOXA_CONFIG or <config dir>/config.yaml)")
		flagHTTPAddr   = flag.String("http-addr", "", "HTTP address to listen on (overrides config)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	environment := env.FromEnv()
	levelVar := new(slog.LevelVar)

	configPath := resolveConfigPath(*flagConfigPath)

	var (
		cfg     *config.Config
		watcher *config.Watcher
	)
	reloads := make(chan *config.Config, 1)

	if xfs.Exists(configPath) {
		var err error
		watcher, err = config.NewWatcher(configPath, slog.Default(), func(next *config.Config, err error) {
			if err != nil {
				return
			}
			// Keep only the newest snapshot.
			select {
			case <-reloads:
			default:
			}
			select {
			case reloads <- next:
			default:
			}
		})
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		defer watcher.Close()
		snapshot := *watcher.Snapshot()
		cfg = &snapshot
	} else {
		cfg = config.Default()
	}

	if *flagHTTPAddr != "" {
		cfg.Server.HTTPAddr = *flagHTTPAddr
	}

	levelVar.Set(logger.ParseLevel(cfg.Log.Level))
	logOpts := []logger.Option{logger.WithLevel(levelVar)}
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logger.WithLogToFile(true), logger.WithLogFile(cfg.Log.File))
		if cfg.Log.MaxSizeMB > 0 {
			logOpts = append(logOpts, logger.WithRotation(cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
		}
	}
	log := logger.New(environment, logOpts...)
	slog.SetDefault(log)

	if watcher != nil {
		log.Info("Config loaded", "path", configPath)
	} else {
		log.Info("No config file found, using defaults", "path", configPath)
	}

	store, err := storage.New(cfg.Storage.UploadsDir, cfg.Storage.TranscriptionsDir)
	if err != nil {
		return err
	}

	servers := backend.NewServerManager(log)
	defer servers.StopAll()

	engine, err := newEngine(cfg.Speech, servers, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error("Failed to close speech engine", "error", err)
		}
	}()

	transcription := service.NewTranscription(store, engine,
		service.WithWorkers(cfg.Speech.Workers),
		service.WithTimeout(cfg.Speech.Timeout),
		service.WithParameters(cfg.Speech.Parameters),
		service.WithTranscriptionLogger(log),
	)

	client := rasa.NewClient(cfg.Chat.RasaURL, cfg.Chat.RequestTimeout)
	chat := service.NewChat(client, cfg.Chat.SocketTimeout, log)

	server := httpserver.New(httpserver.Options{
		Addr:           cfg.Server.HTTPAddr,
		Version:        version,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Logger:         log,
	}, transcription, store, chat)

	log.Info("voxa ready",
		"env", environment,
		"version", version,
		"speech", engine.Provider(),
		"rasa", cfg.Chat.RasaURL,
		"uploads", cfg.Storage.UploadsDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go applyReloads(ctx, reloads, levelVar, client, chat)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	log.Info("voxa stopped")
	return nil
}

// applyReloads pushes the settings that are safe to change at runtime into
// the live components.
func applyReloads(ctx context.Context, reloads <-chan *config.Config, level *slog.LevelVar, client *rasa.Client, chat *service.Chat) {
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-reloads:
			level.Set(logger.ParseLevel(next.Log.Level))
			client.Configure(next.Chat.RasaURL, next.Chat.RequestTimeout)
			chat.SetSocketTimeout(next.Chat.SocketTimeout)
			slog.Info("Applied reloaded config; storage and speech settings take effect on restart",
				"log_level", next.Log.Level,
				"rasa", next.Chat.RasaURL,
			)
		}
	}
}

// newEngine builds the single speech engine selected in cfg.
func newEngine(cfg config.SpeechConfig, servers *backend.ServerManager, log *slog.Logger) (backend.Backend, error) {
	registry := backend.NewRegistry()
	for p, f := range map[backend.Provider]backend.Factory{
		backend.ProviderWhisperCPP: whisper.Factory,
		backend.ProviderOpenAI:     openai.Factory,
		backend.ProviderGoogle:     google.Factory,
	} {
		if err := registry.Register(p, f); err != nil {
			return nil, err
		}
	}

	deps := backend.Deps{Servers: servers, Logger: log}
	if cfg.Whisper.Convert {
		executor, err := backend.NewExecutor(cfg.Whisper.FFmpegPath, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg: %w", err)
		}
		deps.Executor = executor
	}

	return registry.New(cfg, deps)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(envvar.VoxaConfig); p != "" {
		return p
	}
	return filepath.Join(config.DefaultConfigPath(), "config.yaml")
}
