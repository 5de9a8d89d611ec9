package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/quotachat/internal/auth"
)

// RequestLoggingMiddleware writes one log line per request, including the
// visitor and the ledger outcome the handler recorded.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
	skip   map[string]bool
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
// Health and metrics scrapes are not logged.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
		skip: map[string]bool{
			"/health":  true,
			"/metrics": true,
		},
	}
}

// Handler returns middleware that logs requests.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ctx, note := auth.WithRequestNote(r.Context())
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
		}

		// A visitor created by the handler is only known through the note
		userID := auth.VisitorIDFromRequest(r)
		if userID == "" {
			userID = note.UserID()
		}
		if userID != "" {
			attrs = append(attrs, "user_id", userID)
		}
		if outcome := note.Outcome(); outcome != "" {
			attrs = append(attrs, "outcome", outcome)
		}

		switch {
		case wrapped.statusCode >= 500:
			m.logger.Error("request", attrs...)
		case wrapped.statusCode == http.StatusPaymentRequired || wrapped.statusCode == http.StatusTooManyRequests:
			m.logger.Warn("request", attrs...)
		default:
			m.logger.Info("request", attrs...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
