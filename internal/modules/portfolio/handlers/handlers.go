// Package handlers provides HTTP handlers for portfolio snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/domain"
)

// SnapshotProvider supplies the live portfolio snapshot
type SnapshotProvider interface {
	Current() (*domain.PortfolioSnapshot, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	snapshots SnapshotProvider
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(snapshots SnapshotProvider, log zerolog.Logger) *Handler {
	return &Handler{
		snapshots: snapshots,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetSnapshot handles GET /api/portfolio/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Current()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch portfolio snapshot")
		http.Error(w, "Failed to fetch portfolio snapshot: "+err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": snapshot,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"holdings":  len(snapshot.Holdings()),
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
