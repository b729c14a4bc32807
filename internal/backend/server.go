package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	defaultHealthPath   = "/health"
	defaultReadyTimeout = 30 * time.Second
	readyPollInterval   = 500 * time.Millisecond
)

// ServerManager supervises locally spawned engine servers.
type ServerManager struct {
	servers map[string]*ServerProcess
	logger  *slog.Logger
	mu      sync.Mutex
}

// ServerProcess represents a running server process.
type ServerProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// ServerConfig defines how to start and probe an engine server.
type ServerConfig struct {
	Env          map[string]string
	Name         string
	BinPath      string
	Host         string
	HealthPath   string
	Args         []string
	Port         int
	ReadyTimeout time.Duration
}

func (c ServerConfig) key() string { return serverKey(c.Name, c.Port) }

func serverKey(name string, port int) string { return fmt.Sprintf("%s-%d", name, port) }

// BaseURL returns the address the server listens on.
func (c ServerConfig) BaseURL() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// NewServerManager initializes a ServerManager.
func NewServerManager(logger *slog.Logger) *ServerManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerManager{
		servers: map[string]*ServerProcess{},
		logger:  logger.With("component", "server-manager"),
	}
}

// StartServer starts the server described by cfg and waits for it to report
// healthy. Starting an already running server is a no-op.
func (sm *ServerManager) StartServer(ctx context.Context, cfg ServerConfig) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.servers[cfg.key()]; exists {
		return nil
	}

	info, err := os.Stat(cfg.BinPath)
	if err != nil {
		return fmt.Errorf("manager: failed to start %s server: %w", cfg.Name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("manager: failed to start %s server: %s is a directory", cfg.Name, cfg.BinPath)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, cfg.BinPath, cfg.Args...)

	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("manager: failed to start %s server: %w", cfg.Name, err)
	}

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = defaultHealthPath
	}

	timeout := cfg.ReadyTimeout
	if timeout == 0 {
		timeout = defaultReadyTimeout
	}

	if err := waitForServer(ctx, cfg.BaseURL()+healthPath, timeout); err != nil {
		cancel()
		_ = cmd.Wait()
		return fmt.Errorf("manager: %s server did not become ready: %w", cfg.Name, err)
	}

	sm.servers[cfg.key()] = &ServerProcess{cmd: cmd, cancel: cancel}

	sm.logger.Info("Server started", "name", cfg.Name, "port", cfg.Port, "pid", cmd.Process.Pid)
	return nil
}

// Running reports whether a server for name and port is supervised.
func (sm *ServerManager) Running(name string, port int) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	_, ok := sm.servers[serverKey(name, port)]
	return ok
}

// StopServer terminates a supervised server.
func (sm *ServerManager) StopServer(name string, port int) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := serverKey(name, port)
	srv, exists := sm.servers[key]
	if !exists {
		return fmt.Errorf("manager: server %s not found", key)
	}

	srv.stop()
	delete(sm.servers, key)

	sm.logger.Info("Server stopped", "name", name, "port", port)
	return nil
}

// StopAll terminates all supervised servers.
func (sm *ServerManager) StopAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, srv := range sm.servers {
		srv.stop()
	}
	sm.servers = map[string]*ServerProcess{}

	sm.logger.Info("All servers stopped")
}

// stop cancels the process context, which kills it, and reaps it.
func (p *ServerProcess) stop() {
	p.cancel()
	_ = p.cmd.Wait()
}

// waitForServer polls url until it answers 200 or the timeout expires.
func waitForServer(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server failed to respond at %s within %v: %w", url, timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
