package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Identity required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., duplicate)
	ERATELIMIT    = "rate_limit"   // Rate limit exceeded
	EINTERNAL     = "internal"     // Internal server error
	EPAYMENT      = "payment"      // Payment or upgrade required
)

// Sentinel causes carried in Error.Err so callers can match with errors.Is.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrFreeQuotaExceeded    = errors.New("free quota exceeded")
	ErrPaidQuotaExceeded    = errors.New("paid quota exceeded")
)

// Machine-readable reasons reported to API clients alongside the code.
const (
	ReasonUserNotFound         = "USER_NOT_FOUND"
	ReasonSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	ReasonFreeQuotaExceeded    = "FREE_QUOTA_EXCEEDED"
	ReasonPaidQuotaExceeded    = "PAID_QUOTA_EXCEEDED"
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "chat.process_message")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// Internal details never leave the process
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// ErrorReason returns the client-facing reason for ledger errors, or "" when
// the error carries no ledger sentinel.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFreeQuotaExceeded):
		return ReasonFreeQuotaExceeded
	case errors.Is(err, ErrPaidQuotaExceeded):
		return ReasonPaidQuotaExceeded
	case errors.Is(err, ErrUserNotFound):
		return ReasonUserNotFound
	case errors.Is(err, ErrSubscriptionNotFound):
		return ReasonSubscriptionNotFound
	default:
		return ""
	}
}

// IsQuotaExceeded reports whether err is a terminal quota decision.
// Quota errors must not be retried.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrFreeQuotaExceeded) || errors.Is(err, ErrPaidQuotaExceeded)
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// UserNotFound creates a not found error for an unknown visitor identity.
func UserNotFound(op, userID string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: "User not found",
		Err:     fmt.Errorf("%w: %s", ErrUserNotFound, userID),
	}
}

// SubscriptionNotFound creates a not found error for an unknown subscription id.
func SubscriptionNotFound(op, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: "Subscription not found",
		Err:     fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id),
	}
}

// FreeQuotaExceeded creates a payment-required error for an exhausted free allowance.
func FreeQuotaExceeded(op string, used, limit int) *Error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: "Free messages ended! Please subscribe.",
		Err:     fmt.Errorf("%w: used %d of %d", ErrFreeQuotaExceeded, used, limit),
	}
}

// PaidQuotaExceeded creates a payment-required error for an exhausted plan cap.
func PaidQuotaExceeded(op string, used, limit int) *Error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: "Your plan's monthly message limit has been reached. Please upgrade.",
		Err:     fmt.Errorf("%w: used %d of %d", ErrPaidQuotaExceeded, used, limit),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an identity error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
