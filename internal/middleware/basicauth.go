package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/handler"
)

// BasicAuthMiddleware guards operator endpoints such as /metrics and /admin.
type BasicAuthMiddleware struct {
	realm    string
	username string
	password string
	enabled  bool
	logger   *slog.Logger
}

// NewBasicAuthMiddleware creates a new basic auth middleware.
// If both username and password are empty, authentication is disabled.
func NewBasicAuthMiddleware(realm, username, password string, logger *slog.Logger) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		realm:    realm,
		username: username,
		password: password,
		enabled:  username != "" || password != "",
		logger:   logger,
	}
}

// Handler returns middleware that requires basic authentication.
func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If auth is disabled, pass through
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			m.unauthorized(w, r)
			return
		}

		// Use constant-time comparison to prevent timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) == 1

		if !userMatch || !passMatch {
			m.logger.Warn("basic auth failed", "realm", m.realm, "ip", getClientIP(r))
			m.unauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// unauthorized sends a 401 response with WWW-Authenticate header.
func (m *BasicAuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
	if isAPIRequest(r) {
		handler.ErrorResponse(w, r, m.logger, domain.Unauthorized("middleware.basic_auth", "Authentication required"))
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
