// Package handlers provides HTTP handlers for the bucket configuration.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/rs/zerolog"
)

// Handler handles allocation HTTP requests
type Handler struct {
	tables allocation.TableProvider
	log    zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(tables allocation.TableProvider, log zerolog.Logger) *Handler {
	return &Handler{
		tables: tables,
		log:    log.With().Str("handler", "allocation").Logger(),
	}
}

// HandleGetBuckets handles GET /api/allocation/buckets
func (h *Handler) HandleGetBuckets(w http.ResponseWriter, r *http.Request) {
	table, err := h.tables.GetBucketTable()
	if errors.Is(err, allocation.ErrNoBucketTable) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load bucket table")
		h.writeError(w, http.StatusInternalServerError, "failed to load bucket table")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": table,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
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

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
