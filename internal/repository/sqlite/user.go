package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/postforge/internal/apperror"
	"github.com/sakif/postforge/internal/model"
	"github.com/sakif/postforge/internal/repository"
)

// UserStore implements repository.UserRepository over the shared pool.
type UserStore struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserStore)(nil)

// LookupOrCreate resolves the user record for user.Email.
//
// LOOKUP-OR-CREATE, NOT BLIND UPSERT:
// The email is the identity key. If a row exists for it, we KEEP its internal
// ID (posts reference it) and refresh the profile fields, which LinkedIn may
// have changed since the last login. Only a genuinely new email gets a new
// row. Either way the caller's struct ends up holding the canonical record.
func (s *UserStore) LookupOrCreate(ctx context.Context, user *model.User) error {
	var existingID string
	var createdAt time.Time
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE email = ?`, user.Email,
	).Scan(&existingID, &createdAt)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by email: %w", err)
	}

	if existingID != "" {
		// Existing user — refresh profile fields in case they changed
		user.ID = existingID
		user.CreatedAt = createdAt
		user.UpdatedAt = time.Now()
		_, err = s.conn.ExecContext(ctx,
			`UPDATE users SET linkedin_id = ?, name = ?, picture_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.LinkedInID,
			user.Name,
			user.PictureURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	// New user — generate an ID and INSERT
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO users (id, linkedin_id, email, name, picture_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.LinkedInID,
		user.Email,
		user.Name,
		user.PictureURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, linkedin_id, email, name, picture_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(
		&u.ID,
		&u.LinkedInID,
		&u.Email,
		&u.Name,
		&u.PictureURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}
