package handler

import (
	"net/http"
	"time"

	"braindump/internal/httputil"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version"`
}

// HealthHandler reports liveness. It touches no dependencies.
type HealthHandler struct {
	version string
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a health handler. An empty version reports "dev".
func NewHealthHandler(version string) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{version: version, started: time.Now(), now: time.Now}
}

// Health reports the process status
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	httputil.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.started).Seconds(),
		Version:   h.version,
	})
}
