// Package handlers provides HTTP handlers for rebalancing analysis and plans.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/investbot/balancer/internal/modules/rebalancing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// SnapshotProvider supplies the live portfolio snapshot
type SnapshotProvider interface {
	Current() (*domain.PortfolioSnapshot, error)
}

// Handler handles rebalancing HTTP requests
type Handler struct {
	service   *rebalancing.Service
	snapshots SnapshotProvider
	log       zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, snapshots SnapshotProvider, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		snapshots: snapshots,
		log:       log.With().Str("handler", "rebalancing").Logger(),
	}
}

// AnalysisRequest analyzes a caller-supplied snapshot
type AnalysisRequest struct {
	Snapshot *domain.PortfolioSnapshot `json:"snapshot"`
}

// PlanRequest plans against a caller-supplied snapshot. AvailableCash, when
// set, replaces the cash freed by sells as the buy budget.
type PlanRequest struct {
	Snapshot      *domain.PortfolioSnapshot `json:"snapshot"`
	AvailableCash *decimal.Decimal          `json:"available_cash,omitempty"`
}

// HandleGetAnalysis handles GET /api/rebalancing/analysis
func (h *Handler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.liveSnapshot(w)
	if !ok {
		return
	}
	h.writeAnalysis(w, snapshot)
}

// HandlePostAnalysis handles POST /api/rebalancing/analysis
func (h *Handler) HandlePostAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Snapshot == nil {
		http.Error(w, "snapshot is required", http.StatusBadRequest)
		return
	}
	h.writeAnalysis(w, req.Snapshot)
}

// HandleGetPlan handles GET /api/rebalancing/plan
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.liveSnapshot(w)
	if !ok {
		return
	}
	plan, err := h.service.CreatePlan(snapshot)
	h.writePlan(w, plan, err)
}

// HandlePostPlan handles POST /api/rebalancing/plan
func (h *Handler) HandlePostPlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Snapshot == nil {
		http.Error(w, "snapshot is required", http.StatusBadRequest)
		return
	}
	if req.AvailableCash != nil && req.AvailableCash.IsNegative() {
		http.Error(w, "available_cash must not be negative", http.StatusBadRequest)
		return
	}

	var (
		plan rebalancing.RebalancePlan
		err  error
	)
	if req.AvailableCash != nil {
		plan, err = h.service.CreatePlanWithCash(req.Snapshot, *req.AvailableCash)
	} else {
		plan, err = h.service.CreatePlan(req.Snapshot)
	}
	h.writePlan(w, plan, err)
}

// decodeBody decodes a JSON body of at most maxBodyBytes into dst and
// writes the error response when it fails.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) liveSnapshot(w http.ResponseWriter) (*domain.PortfolioSnapshot, bool) {
	if h.snapshots == nil {
		http.Error(w, "live portfolio not available", http.StatusServiceUnavailable)
		return nil, false
	}
	snapshot, err := h.snapshots.Current()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch portfolio snapshot")
		http.Error(w, "Failed to fetch portfolio snapshot", http.StatusBadGateway)
		return nil, false
	}
	return snapshot, true
}

func (h *Handler) writeAnalysis(w http.ResponseWriter, snapshot *domain.PortfolioSnapshot) {
	result, err := h.service.Analyze(snapshot)
	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if errors.Is(err, allocation.ErrNonPositiveTotalValue) {
		metadata["warning"] = err.Error()
	} else if err != nil {
		h.log.Error().Err(err).Msg("Failed to analyze portfolio")
		http.Error(w, "Failed to analyze portfolio", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"analysis":       result,
			"has_deviations": result.HasDeviations(),
		},
		"metadata": metadata,
	})
}

func (h *Handler) writePlan(w http.ResponseWriter, plan rebalancing.RebalancePlan, err error) {
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create rebalance plan")
		http.Error(w, "Failed to create rebalance plan", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"plan":     plan,
			"balanced": plan.IsEmpty(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"note":      "Dry-run plan - no orders placed",
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
