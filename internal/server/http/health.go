package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type (
	// HealthOutput is the huma output for the liveness probe.
	HealthOutput struct {
		Body struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
	}

	// StatusOutput is the huma output for the process status operation.
	StatusOutput struct {
		Body StatusDTO
	}

	// StatusDTO describes the running process and its host.
	StatusDTO struct {
		Version       string   `json:"version"`
		Uptime        string   `json:"uptime"`
		UptimeSeconds float64  `json:"uptime_seconds"`
		Goroutines    int      `json:"goroutines"`
		GoVersion     string   `json:"go_version"`
		HeapAllocMB   float64  `json:"heap_alloc_mb"`
		CPUPercent    *float64 `json:"cpu_percent,omitempty"`
		MemoryPercent *float64 `json:"memory_percent,omitempty"`
		Chat          string   `json:"chat_status"`
	}
)

// HealthHandler serves liveness and status probes.
type HealthHandler struct {
	chat    ChatRelay
	version string
	started time.Time
}

// NewHealthHandler registers the probe operations on api.
func NewHealthHandler(api huma.API, chat ChatRelay, version string) *HealthHandler {
	h := &HealthHandler{chat: chat, version: version, started: time.Now()}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Tags:        []string{"Health"},
	}, h.handleHealth)

	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Process and host status",
		Tags:        []string{"Health"},
	}, h.handleStatus)

	return h
}

func (h *HealthHandler) handleHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Message = "AI Voice Agent is running"
	return out, nil
}

func (h *HealthHandler) handleStatus(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	uptime := time.Since(h.started)

	out := &StatusOutput{Body: StatusDTO{
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		HeapAllocMB:   float64(ms.HeapAlloc) / (1 << 20),
	}}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out.Body.CPUPercent = &pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.Body.MemoryPercent = &vm.UsedPercent
	}
	if h.chat != nil {
		out.Body.Chat = h.chat.Health(ctx).RasaStatus
	}

	return out, nil
}
