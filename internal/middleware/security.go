package middleware

import (
	"net/http"
	"strings"
)

// apiCSP forbids loading, framing or submitting anything. Every response is JSON.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// noStorePrefixes are paths whose responses describe one visitor's ledger
// or operator data and must never be cached.
var noStorePrefixes = []string{"/api/", "/admin/"}

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	headers map[string]string
}

// NewSecurityHeadersMiddleware creates a new security headers middleware.
// Set isSecure in production to add HSTS.
func NewSecurityHeadersMiddleware(isSecure bool) *SecurityHeadersMiddleware {
	headers := map[string]string{
		"X-Frame-Options":              "DENY",
		"X-Content-Type-Options":       "nosniff",
		"Referrer-Policy":              "no-referrer",
		"Content-Security-Policy":      apiCSP,
		"Cross-Origin-Resource-Policy": "same-origin",
		"Permissions-Policy":           "geolocation=(), microphone=(), camera=()",
	}
	if isSecure {
		headers["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains"
	}
	return &SecurityHeadersMiddleware{headers: headers}
}

// Handler returns middleware that sets security headers on all responses.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for name, value := range m.headers {
			h.Set(name, value)
		}
		if isNoStore(r.URL.Path) {
			h.Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

func isNoStore(path string) bool {
	for _, prefix := range noStorePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
