package postgres

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

// LookupOrCreate resolves the user record for user.Email, keeping the
// existing internal ID on repeated logins and refreshing the profile fields.
// See the sqlite implementation for the rationale — the semantics are
// identical.
func (s *UserStore) LookupOrCreate(ctx context.Context, user *model.User) error {
	var existingID string
	var createdAt time.Time
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE email = $1`, user.Email,
	).Scan(&existingID, &createdAt)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("postgres: looking up user by email: %w", err)
	}

	if existingID != "" {
		user.ID = existingID
		user.CreatedAt = createdAt
		user.UpdatedAt = time.Now()
		_, err = s.conn.ExecContext(ctx,
			`UPDATE users SET linkedin_id = $1, name = $2, picture_url = $3, updated_at = $4
			 WHERE id = $5`,
			user.LinkedInID,
			user.Name,
			user.PictureURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("postgres: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO users (id, linkedin_id, email, name, picture_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID,
		user.LinkedInID,
		user.Email,
		user.Name,
		user.PictureURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, linkedin_id, email, name, picture_url, created_at, updated_at
		 FROM users WHERE id = $1`,
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
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}

	return &u, nil
}
