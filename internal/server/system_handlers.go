package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/investbot/balancer/internal/database"
	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/scheduler"
)

// SystemStatusResponse is the payload of /api/system/status
type SystemStatusResponse struct {
	Status          string            `json:"status"`
	UptimeSeconds   int64             `json:"uptime_seconds"`
	CPUPercent      float64           `json:"cpu_percent"`
	MemoryPercent   float64           `json:"memory_percent"`
	BrokerConnected bool              `json:"broker_connected"`
	BrokerError     string            `json:"broker_error,omitempty"`
	Databases       map[string]string `json:"databases"`
	Timestamp       string            `json:"timestamp"`
}

// SystemHandlers serves system status and manual job triggers
type SystemHandlers struct {
	broker    domain.BrokerClient
	databases []*database.DB
	jobs      map[string]scheduler.Job
	startedAt time.Time
	stats     func() (float64, float64)
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, broker domain.BrokerClient, databases []*database.DB, jobs []scheduler.Job) *SystemHandlers {
	h := &SystemHandlers{
		broker:    broker,
		databases: databases,
		jobs:      make(map[string]scheduler.Job, len(jobs)),
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.stats = h.getSystemStats
	for _, j := range jobs {
		h.jobs[j.Name()] = j
	}
	return h
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.stats()

	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		Databases:     make(map[string]string, len(h.databases)),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	if h.broker != nil {
		health, err := h.broker.HealthCheck()
		if err != nil {
			resp.BrokerError = err.Error()
		} else {
			resp.BrokerConnected = health.Connected
		}
	}
	if !resp.BrokerConnected {
		resp.Status = "degraded"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, db := range h.databases {
		state := "ok"
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database check failed")
			state = err.Error()
			resp.Status = "degraded"
		}
		resp.Databases[db.Name()] = state
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// HandleRunJob handles POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		http.Error(w, "unknown job: "+name, http.StatusNotFound)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")
	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"job":     name,
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"job": name, "success": true})
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample
// blocks for 100ms.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
