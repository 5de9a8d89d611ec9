package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func serveWithSecurityHeaders(isSecure bool, method, path string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	rec := httptest.NewRecorder()
	NewSecurityHeadersMiddleware(isSecure).Handler(next).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestSecurityHeadersMiddleware_Headers(t *testing.T) {
	rec := serveWithSecurityHeaders(false, "POST", "/api/chat")

	want := map[string]string{
		"X-Frame-Options":              "DENY",
		"X-Content-Type-Options":       "nosniff",
		"Referrer-Policy":              "no-referrer",
		"Cross-Origin-Resource-Policy": "same-origin",
		"Content-Security-Policy":      apiCSP,
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Errorf("%s: expected %q, got %q", name, value, got)
		}
	}

	permissions := rec.Header().Get("Permissions-Policy")
	for _, feature := range []string{"geolocation=()", "microphone=()", "camera=()"} {
		if !strings.Contains(permissions, feature) {
			t.Errorf("Permissions-Policy should disable %s, got %q", feature, permissions)
		}
	}
}

func TestSecurityHeadersMiddleware_HSTS(t *testing.T) {
	tests := []struct {
		name     string
		isSecure bool
		want     string
	}{
		{"production", true, "max-age=31536000; includeSubDomains"},
		{"development", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithSecurityHeaders(tt.isSecure, "GET", "/api/usage")
			if got := rec.Header().Get("Strict-Transport-Security"); got != tt.want {
				t.Errorf("expected HSTS %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSecurityHeadersMiddleware_CSPAllowsNothing(t *testing.T) {
	csp := serveWithSecurityHeaders(false, "GET", "/api/bundles").Header().Get("Content-Security-Policy")

	for _, directive := range strings.Split(csp, ";") {
		directive = strings.TrimSpace(directive)
		if !strings.HasSuffix(directive, "'none'") {
			t.Errorf("directive %q should be 'none'", directive)
		}
	}
	if strings.Contains(csp, "unsafe") {
		t.Errorf("CSP should not contain unsafe sources, got %q", csp)
	}
}

func TestSecurityHeadersMiddleware_CacheControl(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/usage", "no-store"},
		{"/api/subscriptions/abc/cancel", "no-store"},
		{"/admin/subscriptions", "no-store"},
		{"/health", ""},
		{"/metrics", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serveWithSecurityHeaders(false, "GET", tt.path)
			if got := rec.Header().Get("Cache-Control"); got != tt.want {
				t.Errorf("expected Cache-Control %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSecurityHeadersMiddleware_PassesResponseThrough(t *testing.T) {
	rec := serveWithSecurityHeaders(true, "POST", "/api/subscription")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Error("handler headers should be preserved")
	}
	if rec.Body.String() != `{"success":true}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
