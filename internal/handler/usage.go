package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/quotachat/internal/service"
)

// UsageHandler reports a visitor's monthly usage.
type UsageHandler struct {
	usage  service.UsageService
	now    func() time.Time
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler. A nil now uses time.Now.
func NewUsageHandler(usage service.UsageService, now func() time.Time, logger *slog.Logger) *UsageHandler {
	if now == nil {
		now = time.Now
	}
	return &UsageHandler{usage: usage, now: now, logger: logger}
}

// RegisterRoutes registers usage routes on the provided mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/usage", h.Current)
}

// Current returns the visitor's record for this month with month info.
func (h *UsageHandler) Current(w http.ResponseWriter, r *http.Request) {
	const op = "handler.usage.current"

	userID, ok := requireVisitor(w, r, h.logger, op)
	if !ok {
		return
	}

	summary, err := h.usage.Summary(r.Context(), userID, h.now())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, summary)
}
