package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/postforge/internal/apperror"
	"github.com/sakif/postforge/internal/auth"
	"github.com/sakif/postforge/internal/model"
	"github.com/sakif/postforge/internal/repository"
	"github.com/sakif/postforge/internal/webhook"
)

// DefaultBrandContext is sent to the generation workflow when the caller
// omits brand_context. It names the product voice the workflow should write
// in.
const DefaultBrandContext = "Quest And Crossfire - Small fixes, big clarity"

// Forwarder is the outbound side of the action proxy — implemented by
// webhook.Client, faked in tests. The service validates and orchestrates;
// the Forwarder talks to the network.
type Forwarder interface {
	Generate(ctx context.Context, req webhook.GenerateRequest) (string, error)
	Publish(ctx context.Context, req webhook.PublishRequest) (json.RawMessage, error)
}

// PostService handles the generate and publish actions.
type PostService struct {
	posts  repository.PostRepository
	hooks  Forwarder
	logger *slog.Logger
}

// NewPostService creates a PostService.
func NewPostService(posts repository.PostRepository, hooks Forwarder, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		hooks:  hooks,
		logger: logger,
	}
}

// GenerateInput is the caller's generation parameters, already decoded from
// JSON by the handler.
type GenerateInput struct {
	Theme        string
	PostType     string
	Length       string
	Tone         string
	BrandContext string
}

// GenerateResult is what the generate action returns to the caller.
// PostID is empty when persistence was skipped or failed — the caller still
// gets their text.
type GenerateResult struct {
	PostText string
	PostID   string
}

// Generate validates the input, forwards it to the generation workflow, and
// records the result as a draft post owned by the caller.
//
// VALIDATION FIRST:
// All four required fields are checked before ANY network call — a request
// missing its tone must never reach the workflow. The error enumerates every
// missing field at once so the caller fixes them in one round trip.
//
// BEST-EFFORT PERSISTENCE:
// Generation already cost an upstream call; losing the text because OUR
// database hiccuped would punish the user twice. A failed save is logged and
// the text returned anyway, with an empty PostID.
func (s *PostService) Generate(ctx context.Context, sess *auth.Session, in GenerateInput) (*GenerateResult, error) {
	var missing []string
	if strings.TrimSpace(in.Theme) == "" {
		missing = append(missing, "theme")
	}
	if strings.TrimSpace(in.PostType) == "" {
		missing = append(missing, "post_type")
	}
	if strings.TrimSpace(in.Length) == "" {
		missing = append(missing, "length")
	}
	if strings.TrimSpace(in.Tone) == "" {
		missing = append(missing, "tone")
	}
	if len(missing) > 0 {
		return nil, apperror.ValidationFailed(missing[0],
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	if in.BrandContext == "" {
		in.BrandContext = DefaultBrandContext
	}

	text, err := s.hooks.Generate(ctx, webhook.GenerateRequest{
		Theme:        in.Theme,
		PostType:     in.PostType,
		Length:       in.Length,
		Tone:         in.Tone,
		BrandContext: in.BrandContext,
	})
	if err != nil {
		return nil, fmt.Errorf("generating post: %w", err)
	}

	result := &GenerateResult{PostText: text}

	post := &model.Post{
		UserID:       sess.UserID,
		Theme:        in.Theme,
		PostType:     in.PostType,
		Length:       in.Length,
		Tone:         in.Tone,
		BrandContext: in.BrandContext,
		Content:      text,
		Status:       model.PostStatusDraft,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.logger.Error("failed to save generated post, returning content anyway",
			slog.String("userID", sess.UserID),
			slog.String("error", err.Error()),
		)
		return result, nil
	}

	s.logger.Info("draft post saved",
		slog.String("postID", post.ID),
		slog.String("userID", sess.UserID),
	)
	result.PostID = post.ID
	return result, nil
}

// PublishInput is the caller's publish request.
type PublishInput struct {
	PostText string
	PostID   string
	Metadata map[string]any
}

// PublishResult carries the workflow's verbatim response plus an optional
// warning when the post was published upstream but our status update failed.
type PublishResult struct {
	Result  json.RawMessage
	Warning string
}

// Publish validates the input, forwards it to the publish workflow, and — if
// a post ID was supplied — transitions that post to published.
//
// OWNERSHIP IS CHECKED BEFORE THE EXTERNAL CALL:
// Publishing is irreversible upstream. Refusing someone else's post AFTER
// LinkedIn already carried it would be too late, so the ownership check runs
// first (404 for an unknown post, 403 for someone else's). The store's
// MarkPublished re-enforces the same precondition inside the UPDATE, so even
// a race cannot flip a foreign post.
//
// PARTIAL FAILURE:
// If the workflow succeeds but the status update fails, the post IS live
// upstream — failing the whole request would lie to the caller. The verbatim
// workflow result is returned with a warning describing the partial failure.
func (s *PostService) Publish(ctx context.Context, sess *auth.Session, in PublishInput) (*PublishResult, error) {
	if strings.TrimSpace(in.PostText) == "" {
		return nil, apperror.ValidationFailed("post_text", "post_text is required")
	}

	if in.PostID != "" {
		post, err := s.posts.GetByID(ctx, in.PostID)
		if err != nil {
			return nil, err // already a proper apperror (NotFound) or a DB failure
		}
		if post.UserID != sess.UserID {
			s.logger.Warn("publish denied: ownership mismatch",
				slog.String("postID", in.PostID),
				slog.String("ownerID", post.UserID),
				slog.String("callerID", sess.UserID),
			)
			return nil, apperror.Forbidden("post belongs to a different user")
		}
	}

	raw, err := s.hooks.Publish(ctx, webhook.PublishRequest{
		PostText: in.PostText,
		Metadata: in.Metadata,
	})
	if err != nil {
		// Upstream failed: no state is mutated, the caller sees the proxy error
		return nil, fmt.Errorf("publishing post: %w", err)
	}

	result := &PublishResult{Result: raw}

	if in.PostID != "" {
		if err := s.posts.MarkPublished(ctx, in.PostID, sess.UserID, publishIDFrom(raw)); err != nil {
			s.logger.Error("post published upstream but status update failed",
				slog.String("postID", in.PostID),
				slog.String("error", err.Error()),
			)
			result.Warning = "post was published but its status could not be updated"
		}
	}

	return result, nil
}

// ListPosts returns the caller's saved posts. Options are clamped to sane
// bounds so a bad query string cannot sweep the whole table.
func (s *PostService) ListPosts(ctx context.Context, sess *auth.Session, opts repository.ListOptions) ([]model.Post, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.posts.ListByUser(ctx, sess.UserID, opts)
}

// publishIDFrom pulls the external publish identifier out of the workflow's
// response, trying the field names the workflow versions have used. Returns
// "" when the response carries none — the status update still proceeds.
func publishIDFrom(raw json.RawMessage) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, key := range []string{"post_id", "publish_id", "id"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
