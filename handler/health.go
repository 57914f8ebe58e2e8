package handler

import "net/http"

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	model string
}

// NewHealthHandler builds a HealthHandler reporting the primary model name.
func NewHealthHandler(model string) *HealthHandler {
	return &HealthHandler{model: model}
}

// Health implements GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": h.model})
}
