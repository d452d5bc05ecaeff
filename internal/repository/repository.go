// Package repository defines the persistence interfaces.
//
// The service layer depends on these interfaces, never on a concrete store.
// Two implementations exist: repository/postgres (hosted Postgres, used when
// DATABASE_URL is configured) and repository/sqlite (embedded file store for
// local development). Tests use hand-written fakes.
package repository

import (
	"context"

	"github.com/sakif/postforge/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores user identities keyed by email.
type UserRepository interface {
	// LookupOrCreate resolves the user record for user.Email. If a record
	// exists, its ID and timestamps are copied into user and the profile
	// fields (name, picture, LinkedIn ID) are refreshed; otherwise a new
	// record is created. Repeated logins never produce duplicate rows.
	LookupOrCreate(ctx context.Context, user *model.User) error

	GetByID(ctx context.Context, id string) (*model.User, error)
}

// PostRepository stores generated posts and their publish lifecycle.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Post, error)

	// MarkPublished transitions a post to published, stamps the publish
	// time, and stores the upstream publish identifier. The ownership check
	// is a PRECONDITION of the mutation: ownerID must match the post's
	// recorded owner or the call fails with apperror.ErrForbidden
	// (apperror.ErrNotFound if no such post exists). It is enforced inside
	// the store, in the same statement as the update — not left to callers.
	MarkPublished(ctx context.Context, id, ownerID, publishID string) error
}
