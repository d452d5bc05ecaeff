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

// PostStore implements repository.PostRepository over the shared pool.
type PostStore struct {
	conn *sql.DB
}

var _ repository.PostRepository = (*PostStore)(nil)

// Create inserts a new post record.
func (s *PostStore) Create(ctx context.Context, post *model.Post) error {
	now := time.Now()
	post.ID = xid.New().String()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Status == "" {
		post.Status = model.PostStatusDraft
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, theme, post_type, length, tone, brand_context,
		                    content, status, publish_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID,
		post.UserID,
		post.Theme,
		post.PostType,
		post.Length,
		post.Tone,
		post.BrandContext,
		post.Content,
		post.Status,
		post.PublishID,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: inserting post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by ID.
// Returns apperror.ErrNotFound if no post exists with that ID.
func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	var publishedAt sql.NullTime

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, theme, post_type, length, tone, brand_context,
		        content, status, publish_id, published_at, created_at, updated_at
		 FROM posts WHERE id = $1`,
		id,
	).Scan(
		&p.ID,
		&p.UserID,
		&p.Theme,
		&p.PostType,
		&p.Length,
		&p.Tone,
		&p.BrandContext,
		&p.Content,
		&p.Status,
		&p.PublishID,
		&publishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("postgres: getting post %s: %w", id, err)
	}

	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}

	return &p, nil
}

// ListByUser returns the user's posts, newest first.
func (s *PostStore) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Post, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, theme, post_type, length, tone, brand_context,
		        content, status, publish_id, published_at, created_at, updated_at
		 FROM posts WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing posts for user %s: %w", userID, err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		var publishedAt sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Theme, &p.PostType, &p.Length, &p.Tone,
			&p.BrandContext, &p.Content, &p.Status, &p.PublishID,
			&publishedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning post row: %w", err)
		}
		if publishedAt.Valid {
			p.PublishedAt = &publishedAt.Time
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating post rows: %w", err)
	}

	return posts, nil
}

// MarkPublished transitions a post to published for its owner. The ownership
// check is enforced here AND in the UPDATE's WHERE clause — see the sqlite
// implementation for the rationale.
func (s *PostStore) MarkPublished(ctx context.Context, id, ownerID, publishID string) error {
	var owner string
	err := s.conn.QueryRowContext(ctx,
		`SELECT user_id FROM posts WHERE id = $1`, id,
	).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("post", id)
		}
		return fmt.Errorf("postgres: looking up post %s: %w", id, err)
	}

	if owner != ownerID {
		return apperror.Forbidden("post belongs to a different user")
	}

	now := time.Now()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE posts
		 SET status = $1, publish_id = $2, published_at = $3, updated_at = $4
		 WHERE id = $5 AND user_id = $6`,
		model.PostStatusPublished, publishID, now, now, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("postgres: marking post %s published: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking publish update for post %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}
