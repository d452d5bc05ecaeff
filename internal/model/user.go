// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// We use LinkedIn OAuth as the identity provider. LinkedIn's OpenID Connect
// userinfo endpoint identifies users by a stable string "sub" claim, but the
// record is KEYED BY EMAIL: a repeated login does lookup-or-create
// on the email address, never a duplicate row. We still generate our own
// internal string ID (xid) so our primary keys aren't tied to a third party's
// identifier scheme.
//
// WHY Email UNIQUE (not LinkedInID)?
// The allow-list gate and the lookup-or-create flow both operate on email.
// The LinkedIn sub is stored so we can tell which upstream identity a row
// came from, but it is informational — the email is the identity.
type User struct {
	ID         string    `json:"id"         db:"id"`
	LinkedInID string    `json:"linkedinId" db:"linkedin_id"` // OpenID Connect "sub" claim
	Email      string    `json:"email"      db:"email"`       // unique, the lookup key
	Name       string    `json:"name"       db:"name"`        // display name from the profile
	PictureURL string    `json:"pictureUrl" db:"picture_url"` // profile picture URL (may be empty)
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}
