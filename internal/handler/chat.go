package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/quotachat/internal/auth"
	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/service"
	"github.com/DukeRupert/quotachat/internal/session"
	"github.com/go-playground/validator/v10"
)

// VisitorCookieConfig controls the visitor cookie set on first contact.
type VisitorCookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// SetVisitorCookie issues the userId cookie for a newly created visitor.
func SetVisitorCookie(w http.ResponseWriter, userID string, cfg VisitorCookieConfig) {
	maxAge := int(cfg.MaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = session.CookieMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    userID,
		Path:     session.CookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ChatHandler handles chat message requests.
type ChatHandler struct {
	chat     service.ChatService
	cookie   VisitorCookieConfig
	validate *validator.Validate
	logger   *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat service.ChatService, cookie VisitorCookieConfig, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		cookie:   cookie,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers chat routes. limit wraps the message endpoint.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/chat", limit(http.HandlerFunc(h.Send)))
	mux.HandleFunc("GET /api/messages", h.Transcript)
}

type chatRequest struct {
	Question string `json:"question" validate:"required"`
}

// Send answers one question for the visitor, creating the visitor first if
// the request carried no cookie.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	const op = "handler.chat.send"

	var req chatRequest
	if err := decodeJSON(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := validateRequest(h.validate, op, req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	userID, err := ensureVisitor(w, r, h.chat, h.cookie)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.chat.ProcessMessage(r.Context(), userID, req.Question)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	auth.NoteFromContext(r.Context()).SetOutcome(string(result.Kind()))

	writeData(w, http.StatusOK, result)
}

// Transcript lists the visitor's paid messages, newest first.
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	const op = "handler.chat.transcript"

	userID, ok := requireVisitor(w, r, h.logger, op)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "limit", "Must be a positive integer"))
			return
		}
		limit = n
	}

	messages, err := h.chat.ListTranscript(r.Context(), userID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, messages)
}

// ensureVisitor returns the visitor id from the request, creating a visitor
// and setting its cookie when there is none.
func ensureVisitor(w http.ResponseWriter, r *http.Request, chat service.ChatService, cookie VisitorCookieConfig) (string, error) {
	if userID := auth.VisitorIDFromRequest(r); userID != "" {
		return userID, nil
	}

	user, err := chat.CreateUser(r.Context())
	if err != nil {
		return "", err
	}
	SetVisitorCookie(w, user.ID, cookie)
	auth.NoteFromContext(r.Context()).SetUserID(user.ID)
	return user.ID, nil
}

// requireVisitor writes a 400 and reports false when the request carried
// no visitor cookie.
func requireVisitor(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string) (string, bool) {
	userID := auth.VisitorIDFromRequest(r)
	if userID == "" {
		ErrorResponse(w, r, logger, domain.Invalid(op, "User not identified"))
		return "", false
	}
	return userID, true
}
