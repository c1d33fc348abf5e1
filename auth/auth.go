// Package auth is responsible for accounts and login state.
// It holds the credential store (users table), the AuthService that signs
// users up and verifies passwords, the cookie-based session manager with its
// optional Redis registry, flash notices, the session middleware that gates
// the admin routes, and the HTML handlers for /signup, /login and /logout.
package auth

// Cookie names used by this package.
const (
	SessionCookieName = "blogpress_session"
	FlashCookieName   = "blogpress_flash"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"
