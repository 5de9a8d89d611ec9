package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/service"
)

// AdminHandler handles operator-only ledger requests.
type AdminHandler struct {
	usage  service.UsageService
	subs   service.SubscriptionService
	now    func() time.Time
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. A nil now uses time.Now.
func NewAdminHandler(
	usage service.UsageService,
	subs service.SubscriptionService,
	now func() time.Time,
	logger *slog.Logger,
) *AdminHandler {
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{
		usage:  usage,
		subs:   subs,
		now:    now,
		logger: logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireAdmin func(http.Handler) http.Handler,
) {
	mux.Handle("POST /admin/quotas/reset", requireAdmin(http.HandlerFunc(h.ResetQuotas)))
	mux.Handle("GET /admin/subscriptions", requireAdmin(http.HandlerFunc(h.Subscriptions)))
}

// ResetQuotas runs the first-of-month sweep. On other days it reports that
// nothing was done.
func (h *AdminHandler) ResetQuotas(w http.ResponseWriter, r *http.Request) {
	result, err := h.usage.ResetAllMonthlyQuotas(r.Context(), h.now())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, result)
}

// Subscriptions returns active subscriptions for the users named by the
// repeated or comma-separated "user" query parameter.
func (h *AdminHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin.subscriptions"

	var userIDs []string
	for _, value := range r.URL.Query()["user"] {
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				userIDs = append(userIDs, id)
			}
		}
	}
	if len(userIDs) == 0 {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "user", "At least one user is required"))
		return
	}

	byUser, err := h.subs.ListActiveSubscriptionsForUsers(r.Context(), userIDs)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, byUser)
}
