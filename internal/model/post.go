package model

import "time"

// Post lifecycle states.
//
// A post is created as a draft when the generation webhook succeeds, and
// moves to published exactly once, when the publish webhook succeeds for the
// post's owner. There are no other transitions.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post represents one piece of generated content.
//
// The input parameters (theme, post type, length, tone, brand context) are
// stored alongside the generated text so a post can be regenerated or audited
// later. PublishID is whatever identifier the automation webhook reports back
// after a successful publish (e.g. the LinkedIn share URN) — empty until then.
//
// WHY PublishedAt *time.Time?
// Unlike CreatedAt/UpdatedAt, "published at" genuinely has a no-value state:
// a draft has never been published. A nil pointer models that honestly,
// where a zero time.Time would serialize as year 1.
type Post struct {
	ID           string     `json:"id"            db:"id"`
	UserID       string     `json:"userId"        db:"user_id"` // owner — checked before any mutation
	Theme        string     `json:"theme"         db:"theme"`
	PostType     string     `json:"postType"      db:"post_type"`
	Length       string     `json:"length"        db:"length"`
	Tone         string     `json:"tone"          db:"tone"`
	BrandContext string     `json:"brandContext"  db:"brand_context"`
	Content      string     `json:"content"       db:"content"` // the generated text
	Status       string     `json:"status"        db:"status"`  // draft | published
	PublishID    string     `json:"publishId"     db:"publish_id"`
	PublishedAt  *time.Time `json:"publishedAt"   db:"published_at"`
	CreatedAt    time.Time  `json:"createdAt"     db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt"     db:"updated_at"`
}
