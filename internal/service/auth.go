// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers only know HTTP. Services only know business rules. Neither knows
// SQL. Each service receives its dependencies as interfaces, so tests swap
// hand-written fakes in with plain function calls — no network stack needed.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/postforge/internal/apperror"
	"github.com/sakif/postforge/internal/auth"
	"github.com/sakif/postforge/internal/config"
	"github.com/sakif/postforge/internal/model"
	"github.com/sakif/postforge/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users    repository.UserRepository → lookup-or-create user records
//   - sessions *auth.SessionService      → issue session tokens
//   - cfg      *config.Config            → the email allow-list
//   - logger   *slog.Logger              → structured logging
type AuthService struct {
	users    repository.UserRepository
	sessions *auth.SessionService
	cfg      *config.Config
	logger   *slog.Logger
	metrics  LoginMetrics // optional, nil until SetMetrics
}

// LoginMetrics is the slice of the metrics recorder this service needs.
// Declared here (consumer side) so the service never imports the metrics
// package.
type LoginMetrics interface {
	RecordLogin()
	RecordAuthRejection()
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	sessions *auth.SessionService,
	cfg *config.Config,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetMetrics installs an optional metrics recorder. Tests leave it unset.
func (s *AuthService) SetMetrics(m LoginMetrics) {
	s.metrics = m
}

// AuthResult is returned by LoginLinkedIn. It bundles the user record and the
// issued session token together so the HTTP handler can set the cookie and
// redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginLinkedIn completes a LinkedIn OAuth callback.
//
// After the handler exchanges the authorization code for a LinkedInUser
// profile, this method:
//
//  1. Applies the allow-list gate — BEFORE anything is written. An identity
//     outside a configured allow-list gets no user record and no session;
//     the denial must have zero side effects.
//  2. Resolves the user record for the profile's email (lookup-or-create —
//     repeated logins reuse the row, first login creates it).
//  3. Issues a session token embedding the user's ID, email, name, and the
//     upstream LinkedIn access token.
//
// WHAT THIS METHOD DOES NOT DO:
//   - It does NOT set cookies (that's the handler's job — HTTP concern)
//   - It does NOT read HTTP requests or talk to LinkedIn
func (s *AuthService) LoginLinkedIn(ctx context.Context, liUser *auth.LinkedInUser) (*AuthResult, error) {
	if liUser == nil {
		return nil, fmt.Errorf("service/auth: LinkedIn user must not be nil")
	}

	if !s.cfg.EmailAllowed(liUser.Email) {
		s.logger.Warn("login denied: email not on allow-list",
			slog.String("email", liUser.Email),
		)
		if s.metrics != nil {
			s.metrics.RecordAuthRejection()
		}
		return nil, apperror.Forbidden("this account is not permitted to use this application")
	}

	user := &model.User{
		LinkedInID: liUser.Sub,
		Email:      liUser.Email,
		Name:       liUser.Name,
		PictureURL: liUser.Picture,
	}

	// Lookup-or-create keyed by email. After this call user.ID is populated
	// with the canonical internal ID, new or existing.
	if err := s.users.LookupOrCreate(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: resolving user record: %w", err)
	}

	s.logger.Info("user authenticated via LinkedIn",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	if s.metrics != nil {
		s.metrics.RecordLogin()
	}

	token, err := s.sessions.Issue(auth.Session{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		AccessToken: liUser.AccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:  user,
		Token: token,
	}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
