package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"keygate/internal/infrastructure"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	startTime time.Time
}

// NewHealthHandler creates the handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startTime: time.Now()}
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_seconds"`
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, &HealthResponse{
		Status:    "healthy",
		Version:   infrastructure.ServiceVersion,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
	})
}
