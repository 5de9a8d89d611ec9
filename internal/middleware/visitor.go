// Package middleware contains HTTP middleware for the quotachat API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"net/http"
	"strings"

	"github.com/DukeRupert/quotachat/internal/auth"
	"github.com/DukeRupert/quotachat/internal/session"
)

// maxVisitorIDLength bounds the cookie value accepted as a visitor id.
const maxVisitorIDLength = 128

// =============================================================================
// Visitor Middleware
// =============================================================================

// WithVisitor is middleware that loads the visitor id from the userId cookie.
//
// The id is stored in the request context and can be retrieved in handlers
// using auth.VisitorIDFromRequest. Requests without a usable cookie continue
// anonymously; handlers that need a visitor create one or reject the request.
//
// Flow:
//
//	Request -> WithVisitor -> Handler
//	           |
//	           +-> Read cookie
//	           +-> Set visitor id in context (if present)
//	           +-> Call next handler (always)
func WithVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			// No cookie found - continue without visitor
			next.ServeHTTP(w, r)
			return
		}

		id := strings.TrimSpace(cookie.Value)
		if id == "" || len(id) > maxVisitorIDLength {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetVisitorID(r.Context(), id)))
	})
}

// isAPIRequest determines if the request expects a JSON response.
func isAPIRequest(r *http.Request) bool {
	// Check Accept header
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}

	// Check Content-Type
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		return true
	}

	// Check URL path (API routes)
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/admin/")
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware are applied in order, so the first middleware in the list
// is the outermost (runs first on request, last on response).
//
// Usage:
//
//	stack := Stack(SecurityHeaders, logging, WithVisitor)
//	mux.Handle("/", stack(handler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
