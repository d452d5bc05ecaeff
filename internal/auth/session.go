// Package auth provides session token handling and the LinkedIn OAuth flow.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User visits /auth/login → redirected to LinkedIn's authorization page
// 2. LinkedIn calls back /auth/callback with a code
// 3. Server exchanges the code for an access token, fetches the user's
//    profile, and looks up (or creates) the user in the DB
// 4. Server issues a signed session token, stores it in an HttpOnly cookie
// 5. On subsequent API calls, middleware reads the cookie, verifies the
//    token, and sets the session in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store
// session data. Everything needed (user ID, email, name, the upstream
// LinkedIn access token, expiry) is inside the signed token. The signature
// ensures nobody can tamper with it without the secret key.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"userID","exp":1234567890,...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The server can verify the signature without any DB lookup — just the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// issuer identifies tokens minted by this application. Verify rejects tokens
// with any other issuer, so a JWT from some other app sharing the secret by
// accident can't open a session here.
const issuer = "postforge"

// Session is the identity carried by a verified session token.
//
// AccessToken is the upstream LinkedIn OAuth access token, embedded at login
// so later requests can act against LinkedIn on the user's behalf without a
// server-side token store. It lives only inside the signed, HttpOnly cookie —
// it is never written to the database and never included in API responses.
type Session struct {
	UserID      string
	Email       string
	Name        string
	AccessToken string
}

// SessionService signs and verifies session tokens.
//
// It holds the HMAC secret key used for both operations. The same secret must
// be used to sign and verify — keep it safe, rotate it periodically in
// production (rotating invalidates all live sessions, which is the intended
// revocation story for this design: there is no server-side session list).
type SessionService struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionService creates a SessionService with the given secret and the
// fixed session lifetime. The secret should be at least 32 bytes of random
// data in production. Example: JWT_SECRET=$(openssl rand -hex 32)
//
// A missing or short secret is a CONFIGURATION error: it fails loudly here,
// at startup, rather than silently degrading to unauthenticated requests.
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &SessionService{secret: []byte(secret), ttl: ttl}, nil
}

// sessionClaims is the JWT payload. It embeds jwt.RegisteredClaims, which
// includes the standard fields (Subject, ExpiresAt, IssuedAt, Issuer), and
// adds the private claims this app needs at request time.
type sessionClaims struct {
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	AccessToken string `json:"li_token,omitempty"`
	jwt.RegisteredClaims
}

// Issue creates and signs a session token for the given session identity.
//
// The expiry is absolute: now + the configured TTL (seven days by default).
// Tokens are never refreshed — a session simply expires and the user logs in
// again.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple — right for a single deployment sharing one secret
func (s *SessionService) Issue(sess Session) (string, error) {
	return s.IssueWithDuration(sess, s.ttl)
}

// IssueWithDuration creates a token with a custom expiry duration.
// Used by tests to mint already-expired tokens.
func (s *SessionService) IssueWithDuration(sess Session, d time.Duration) (string, error) {
	if sess.UserID == "" {
		return "", errors.New("auth: session must have a user ID")
	}

	now := time.Now()
	c := sessionClaims{
		Email:       sess.Email,
		Name:        sess.Name,
		AccessToken: sess.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a session token string.
// Returns the embedded Session if the token is valid.
//
// VERIFICATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is required AND in the future)
//   - Issuer matches "postforge" (rejects tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. jwt.WithValidMethods prevents this.
//
// A verification failure is a NORMAL outcome, not an exceptional one: callers
// treat any error from here as "unauthenticated" and move on. Only the
// middleware logs it.
func (s *SessionService) Verify(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC at all
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Translate jwt library errors into cleaner messages
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: session expired")
		}
		return nil, fmt.Errorf("auth: invalid session token: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid session claims")
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("auth: session token has no subject")
	}

	return &Session{
		UserID:      c.Subject,
		Email:       c.Email,
		Name:        c.Name,
		AccessToken: c.AccessToken,
	}, nil
}
