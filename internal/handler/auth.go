package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/sakif/postforge/internal/auth"
	"github.com/sakif/postforge/internal/config"
	"github.com/sakif/postforge/internal/service"
)

// dashboardPath is where a successful login lands. The static frontend
// serves it; the API only redirects to it.
const dashboardPath = "/dashboard.html"

// OAuthProvider is the slice of LinkedInProvider the handler needs. An
// interface here lets tests swap in a fake provider that never talks to
// LinkedIn.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.LinkedInUser, error)
}

// AuthHandler manages the LinkedIn OAuth login flow and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to LinkedIn's authorization page
//   - HandleCallback → receive the code, exchange it for a user, issue JWT
//   - HandleCheck    → report the current session state (never errors)
//   - HandleLogout   → clear the session cookie
//
// DEPENDENCY CHAIN:
//   - provider OAuthProvider       → performs the OAuth code exchange
//   - svc      *service.AuthService → allow-list gate, user record, token
//   - sessions *auth.SessionService → verifies tokens for HandleCheck
type AuthHandler struct {
	provider OAuthProvider
	svc      *service.AuthService
	sessions *auth.SessionService
	cfg      *config.Config
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	provider OAuthProvider,
	svc *service.AuthService,
	sessions *auth.SessionService,
	cfg *config.Config,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		svc:      svc,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleLogin redirects the user to LinkedIn's authorization page.
//
// HTTP: GET /auth/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When LinkedIn calls back, HandleCallback verifies the state matches.
// This proves the callback was initiated by this server, not by an attacker
// who crafted a callback URL.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	// Random, unguessable state value
	state := xid.New().String()

	auth.SetStateCookie(w, state, h.cfg.CookieSecure())

	// Redirect the browser to LinkedIn
	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/callback?code=xxx&state=yyy
//
// FLOW:
//  1. If LinkedIn sent an error (user denied authorization), redirect home
//  2. Validate the state parameter against the state cookie (CSRF check)
//  3. Exchange the code for a LinkedIn user profile
//  4. Apply the allow-list gate and resolve the user record
//  5. Issue the session JWT as an HttpOnly cookie
//  6. Redirect to the dashboard
//
// ERRORS REDIRECT, NOT 4xx:
// The callback is a top-level browser navigation — a JSON error body would
// render as raw text. Every failure sends the browser back to the landing
// page with an error query parameter the frontend can display.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: provider returned error",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?error=auth_failed", http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("auth callback: missing code parameter")
		http.Redirect(w, r, "/?error=no_code", http.StatusSeeOther)
		return
	}

	// CSRF check: the state LinkedIn echoed back must match the cookie we
	// set at login. The cookie is single-use either way.
	stateCookie, err := r.Cookie(auth.StateCookieName)
	auth.ClearStateCookie(w)
	if err != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("got", query.Get("state")),
		)
		http.Redirect(w, r, "/?error=invalid_state", http.StatusSeeOther)
		return
	}

	liUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?error=auth_failed", http.StatusSeeOther)
		return
	}

	result, err := h.svc.LoginLinkedIn(r.Context(), liUser)
	if err != nil {
		// Allow-list denial and internal failures both land here; the
		// distinction is logged, not exposed.
		h.logger.Warn("auth callback: login rejected",
			slog.String("email", liUser.Email),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/?error=access_denied", http.StatusSeeOther)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.cfg.SessionTTL, h.cfg.CookieSecure())

	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// checkResponse is the body of GET /auth/check.
type checkResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *checkUser `json:"user,omitempty"`
}

type checkUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleCheck reports whether the caller holds a valid session.
//
// HTTP: GET /auth/check
//
// ALWAYS 200:
// The frontend polls this on page load to decide what to render. A missing
// or expired session is a normal answer, not an error — returning 401 would
// spam the browser console on every anonymous visit.
func (h *AuthHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	sess, err := auth.ExtractSession(r, h.sessions)
	if err != nil {
		writeJSON(w, http.StatusOK, checkResponse{Authenticated: false})
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Authenticated: true,
		User: &checkUser{
			Email: sess.Email,
			Name:  sess.Name,
		},
	})
}

// HandleLogout clears the session cookie, effectively logging the user out.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. GET would be vulnerable to CSRF and
// to browsers pre-fetching the URL.
//
// Since sessions are stateless (JWT), "logout" just means deleting the
// client-side cookie. The token remains technically valid until it expires,
// but without the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cfg.CookieSecure())
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
