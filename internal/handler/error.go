package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/quotachat/internal/auth"
	"github.com/DukeRupert/quotachat/internal/domain"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorEnvelope is the body written for every failed API request.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// ErrorResponse writes an error response to the client.
// It maps domain error codes to HTTP status codes. Ledger errors report their
// reason (e.g. FREE_QUOTA_EXCEEDED) as the code so clients can branch on it.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		ValidationErrorResponse(w, r, logger, err)
		return
	}

	// Extract structured info from error
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)

	// Map to HTTP status
	status := ErrorCodeToHTTPStatus(code)

	// Log error with context
	logError(logger, r, err, code, op, status)

	clientCode := code
	if reason := domain.ErrorReason(err); reason != "" {
		clientCode = reason
	}
	auth.NoteFromContext(r.Context()).SetOutcome(clientCode)

	writeJSON(w, status, ErrorEnvelope{
		Error: ErrorBody{Code: clientCode, Message: message},
	})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// ValidationErrorResponse writes validation errors (field-level) to the response.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		// Not a validation error, fall back to standard error response
		ErrorResponse(w, r, logger, err)
		return
	}

	auth.NoteFromContext(r.Context()).SetOutcome(domain.EINVALID)
	logger.Info("validation error",
		"op", ve.Op,
		"field_count", len(ve.Fields),
		"path", r.URL.Path,
	)

	writeJSON(w, http.StatusBadRequest, ErrorEnvelope{
		Error: ErrorBody{
			Code:    domain.EINVALID,
			Message: "Validation failed",
			Fields:  ve.Fields,
		},
	})
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required")
	ErrorResponse(w, r, logger, err)
}

// InternalErrorResponse logs the error and returns a generic 500 response.
// The underlying error details are hidden from the user.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	wrappedErr := domain.Internal(err, "", "An unexpected error occurred")
	ErrorResponse(w, r, logger, wrappedErr)
}

// logError logs the error with appropriate level based on status code.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}

	// Add operation if present
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	// Log level based on status code:
	// - 5xx errors are errors (server-side issues)
	// - 4xx errors are info (client errors, expected)
	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}
