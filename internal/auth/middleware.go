package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "session", s), ANY package that knows the string
// "session" can read or shadow your value. Using a package-private type
// prevents collisions: only THIS package can create a key of type contextKey,
// so only this package can read or write session values in the context.
type contextKey string

const sessionKey contextKey = "session"

// RequireAuth is the single access-control gate in the system.
//
// It reads the signed token from the "session" HttpOnly cookie, verifies it,
// and stores the resolved Session in the request context. If the cookie is
// missing or the token invalid/expired, it returns 401 Unauthorized and the
// inner handler NEVER runs.
//
// Every state-mutating or data-returning endpoint goes through this one
// middleware — there is deliberately no second way to resolve a caller's
// identity, so an endpoint can't quietly drift out of the access-control
// policy.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(sessions *SessionService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := ExtractSession(r, sessions)
			if err != nil {
				// An invalid token is a normal outcome (expired session,
				// stale cookie) — log at debug, respond 401, move on.
				logger.Debug("request rejected: no valid session",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				http.Error(w, `{"error":"unauthorized","message":"Unauthorized. Please login."}`, http.StatusUnauthorized)
				return
			}

			// Store the session in context so handlers can read it
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the authenticated session from the request
// context.
//
// Returns (nil, false) if the request is anonymous. On a RequireAuth-protected
// route it always returns (session, true).
//
// Usage in handlers:
//
//	sess, ok := auth.SessionFromContext(r.Context())
//	if !ok {
//	    // anonymous request
//	}
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// ExtractSession reads the session cookie and verifies it.
// Shared by RequireAuth and the /auth/check handler (which must not 401).
//
// COOKIE PARSING:
// r.Cookie splits each "name=value" pair on the FIRST '=' only. This matters:
// the session value is a JWT, whose base64url segments can end in nothing but
// whose surrounding cookie syntax must survive values containing '='. Naive
// split-on-every-'=' parsers truncate such values; net/http does not.
func ExtractSession(r *http.Request, sessions *SessionService) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		// http.ErrNoCookie — not an error condition, just an anonymous request
		return nil, err
	}

	return sessions.Verify(cookie.Value)
}
