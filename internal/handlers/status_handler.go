package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/services/status"
)

// StatusHandler serves the readiness endpoint.
type StatusHandler struct {
	statusService *status.Service
	logger        arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(statusService *status.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// ReadyHandler handles GET /api/ready: probes every remote dependency and
// reports per-dependency health. 503 when any dependency is down.
func (h *StatusHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	report := h.statusService.Check(r.Context())

	statusCode := http.StatusOK
	if !report.Ready {
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, statusCode, report)
}
