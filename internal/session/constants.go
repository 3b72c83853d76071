// Package session provides shared session constants used by both
// the handler and middleware packages.
package session

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "sommet_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (30 days = 2592000 seconds).
	// This should match SessionDuration in the user service.
	CookieMaxAge = 30 * 24 * 60 * 60
)
