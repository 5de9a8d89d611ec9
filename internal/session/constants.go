// Package session provides shared visitor cookie constants used by both
// the handler and middleware packages.
package session

const (
	// CookieName is the name of the cookie that stores the visitor's user id.
	CookieName = "userId"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the default cookie expiration (30 days = 2592000 seconds).
	CookieMaxAge = 30 * 24 * 60 * 60
)
