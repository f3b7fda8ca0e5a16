package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/jmylchreest/playarr/internal/playback"
)

// SessionLister lists the running sessions.
type SessionLister interface {
	List() []playback.Status
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	sessions  SessionLister
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, sessions SessionLister) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		sessions:  sessions,
	}
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse describes the gateway process and its sessions.
type HealthResponse struct {
	Status        string        `json:"status"`
	Timestamp     string        `json:"timestamp"`
	Version       string        `json:"version"`
	Uptime        string        `json:"uptime"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Goroutines    int           `json:"goroutines"`
	Sessions      SessionCounts `json:"sessions"`
	CPUInfo       CPUInfo       `json:"cpu_info"`
	Memory        MemoryInfo    `json:"memory"`
}

// SessionCounts summarizes sessions by state.
type SessionCounts struct {
	Total  int            `json:"total"`
	States map[string]int `json:"states"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory in megabytes.
type MemoryInfo struct {
	TotalMemoryMB      float64 `json:"total_memory_mb"`
	AvailableMemoryMB  float64 `json:"available_memory_mb"`
	ProcessRSSMB       float64 `json:"process_rss_mb"`
	PercentageOfSystem float64 `json:"percentage_of_system"`
	HeapAllocMB        float64 `json:"heap_alloc_mb"`
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the output for the liveness probe.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the gateway status with session counts and process metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      http.MethodGet,
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)
}

// GetLivez always reports ok while the process serves requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetHealth returns the health status of the gateway.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	return &HealthOutput{
		Body: HealthResponse{
			Status:        "healthy",
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			Goroutines:    runtime.NumGoroutine(),
			Sessions:      h.sessionCounts(),
			CPUInfo:       cpuInfo(ctx),
			Memory:        memoryInfo(ctx),
		},
	}, nil
}

func (h *HealthHandler) sessionCounts() SessionCounts {
	counts := SessionCounts{States: make(map[string]int)}
	if h.sessions == nil {
		return counts
	}
	for _, st := range h.sessions.List() {
		counts.Total++
		counts.States[st.State.String()]++
	}
	return counts
}

func cpuInfo(ctx context.Context) CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	avg, err := load.AvgWithContext(ctx)
	if err != nil || avg == nil {
		return info
	}
	info.Load1Min = avg.Load1
	info.Load5Min = avg.Load5
	info.Load15Min = avg.Load15
	if info.Cores > 0 {
		info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
	}
	return info
}

func memoryInfo(ctx context.Context) MemoryInfo {
	const mb = 1024 * 1024
	var info MemoryInfo

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.HeapAllocMB = float64(ms.HeapAlloc) / mb

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / mb
		info.AvailableMemoryMB = float64(vm.Available) / mb
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return info
	}
	if pm, err := proc.MemoryInfoWithContext(ctx); err == nil && pm != nil {
		info.ProcessRSSMB = float64(pm.RSS) / mb
		if info.TotalMemoryMB > 0 {
			info.PercentageOfSystem = info.ProcessRSSMB / info.TotalMemoryMB * 100
		}
	}
	return info
}
