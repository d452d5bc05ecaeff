package auth

import (
	"net/http"
	"time"
)

// Cookie names. Two separate cookies with different lifetimes:
//   - oauth_state lives for one login attempt (10 minutes, scoped to the
//     callback path so the browser doesn't send it anywhere else)
//   - session lives for the whole session window (seven days by default)
const (
	SessionCookieName = "session"
	StateCookieName   = "oauth_state"
)

// StateCookiePath limits where the browser sends the state cookie.
// It is only ever needed by the OAuth callback, so it's scoped there.
const StateCookiePath = "/auth/callback"

// stateCookieMaxAge is 10 minutes — long enough for the user to approve the
// authorization request, short enough to limit the replay window.
const stateCookieMaxAge = 600

// SetStateCookie stores the CSRF state nonce for one login attempt.
//
// COOKIE ATTRIBUTES:
//   - HttpOnly: JavaScript can't read it (XSS protection)
//   - SameSite=Lax: sent on the top-level redirect back from LinkedIn,
//     but not on cross-site POSTs
//   - Secure: set everywhere except non-TLS local development, where it
//     would prevent the browser from sending the cookie at all
func SetStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     StateCookiePath,
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie deletes the state cookie. The state is single-use: it is
// cleared as soon as the callback consumes it, match or mismatch.
func ClearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   StateCookieName,
		Value:  "",
		Path:   StateCookiePath,
		MaxAge: -1, // tells the browser to delete the cookie immediately
	})
}

// SetSessionCookie stores the signed session token.
// MaxAge matches the token's own expiry so the cookie and the JWT die
// together — a lingering cookie with an expired token would just produce
// silent 401s.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie logs the user out client-side. The token itself remains
// technically valid until it expires, but without the cookie the browser
// can't send it.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
