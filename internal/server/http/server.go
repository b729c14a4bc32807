package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const apiTitle = "AI Voice Agent"

// Options configure the HTTP server.
type Options struct {
	Addr           string
	Version        string
	MaxUploadBytes int64
	Logger         *slog.Logger

	// Now returns the wall clock; tests replace it to pin recording names.
	Now func() time.Time
}

// Server exposes the audio, chat and health surfaces over HTTP and WebSocket.
type Server struct {
	router     chi.Router
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires every handler onto a chi router.
func New(opts Options, transcriber Transcriber, store AudioStore, chat ChatRelay) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	logger := opts.Logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	config := huma.DefaultConfig(apiTitle, opts.Version)
	config.Info.Description = "Audio upload, speech transcription and a chat relay to a Rasa server."
	// Response bodies keep the plain shapes clients already rely on.
	config.CreateHooks = nil

	api := humachi.New(r, config)

	NewAudioHandler(api, transcriber, store, AudioOptions{
		MaxUploadBytes: opts.MaxUploadBytes,
		Now:            opts.Now,
		Logger:         logger,
	})
	chatHandler := NewChatHandler(api, chat, logger)
	r.Get("/chat/ws", chatHandler.ServeWS)
	NewHealthHandler(api, chat, opts.Version)

	return &Server{
		router: r,
		api:    api,
		logger: logger,
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, mainly for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
