package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// infiniteLimit is the messagesLimit value for unbounded plans.
const infiniteLimit = "INFINITE"

// MessagesLimit is a plan cap that is either a number or "INFINITE".
// An omitted or null limit is unbounded.
type MessagesLimit struct {
	Max *int
}

func (m *MessagesLimit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		m.Max = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.EqualFold(strings.TrimSpace(s), infiniteLimit) {
			m.Max = nil
			return nil
		}
		return fmt.Errorf("messagesLimit must be a number or %q", infiniteLimit)
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("messagesLimit must be a number or %q", infiniteLimit)
	}
	m.Max = &n
	return nil
}

// SubscriptionHandler handles plan purchase and subscription management.
type SubscriptionHandler struct {
	chat     service.ChatService
	subs     service.SubscriptionService
	cookie   VisitorCookieConfig
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(
	chat service.ChatService,
	subs service.SubscriptionService,
	cookie VisitorCookieConfig,
	logger *slog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		chat:     chat,
		subs:     subs,
		cookie:   cookie,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers subscription routes on the provided mux.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/subscription", h.List)
	mux.HandleFunc("POST /api/subscription", h.Subscribe)
	mux.HandleFunc("PATCH /api/subscriptions/{id}", h.Update)
	mux.HandleFunc("POST /api/subscriptions/{id}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/bundles", h.Bundles)
}

// List returns the visitor's active subscriptions with their bundles.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handler.subscription.list"

	userID, ok := requireVisitor(w, r, h.logger, op)
	if !ok {
		return
	}

	subs, err := h.subs.ListActiveSubscriptions(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, subs)
}

type subscribeRequest struct {
	Tier          string        `json:"tier" validate:"required"`
	BillingCycle  string        `json:"billingCycle" validate:"required"`
	Price         *float64      `json:"price" validate:"required,gte=0"`
	AutoRenew     *bool         `json:"autoRenew" validate:"required"`
	MessagesLimit MessagesLimit `json:"messagesLimit"`
}

// Subscribe buys a plan for the visitor, creating the visitor if needed.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	const op = "handler.subscription.subscribe"

	var req subscribeRequest
	if err := decodeJSON(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := validateRequest(h.validate, op, req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	fields := make(map[string]string)
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		fields["tier"] = "Must be a plan name of letters, digits, '_' or '-'"
	}
	cycle, err := domain.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		fields["billingCycle"] = "Must be one of: MONTHLY, YEARLY"
	}
	if len(fields) > 0 {
		ErrorResponse(w, r, h.logger, &domain.ValidationError{Op: op, Fields: fields})
		return
	}

	userID, err := ensureVisitor(w, r, h.chat, h.cookie)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	sub, err := h.subs.Subscribe(r.Context(), service.SubscribeParams{
		UserID: userID,
		Bundle: service.BundleParams{
			Tier:         tier,
			BillingCycle: cycle,
			MaxMessages:  req.MessagesLimit.Max,
			Price:        *req.Price,
		},
		AutoRenew: *req.AutoRenew,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, sub)
}

type updateSubscriptionRequest struct {
	AutoRenew *bool `json:"autoRenew" validate:"required"`
}

// Update changes a subscription's auto-renew flag.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handler.subscription.update"

	id, err := pathSubscriptionID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req updateSubscriptionRequest
	if err := decodeJSON(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := validateRequest(h.validate, op, req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	sub, err := h.subs.SetAutoRenew(r.Context(), id, *req.AutoRenew)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, sub)
}

// Cancel deactivates a subscription immediately.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "handler.subscription.cancel"

	id, err := pathSubscriptionID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	sub, err := h.subs.CancelSubscription(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    sub,
		Message: "Subscription cancelled successfully",
	})
}

// Bundles lists every stored plan.
func (h *SubscriptionHandler) Bundles(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.subs.ListBundles(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, bundles)
}

func pathSubscriptionID(r *http.Request, op string) (uuid.UUID, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return uuid.Nil, domain.Invalid(op, "Subscription ID is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// Ids that cannot exist are reported like unknown ones.
		return uuid.Nil, domain.SubscriptionNotFound(op, raw)
	}
	return id, nil
}
