package handlers

import (
	"net/http"
	"time"

	"github.com/hongminglow/portal-be/internal/http/respond"
)

// HealthHandler returns uptime and basic status.
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time) *HealthHandler {
	return &HealthHandler{startedAt: startedAt}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
