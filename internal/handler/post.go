package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/postforge/internal/apperror"
	"github.com/sakif/postforge/internal/auth"
	"github.com/sakif/postforge/internal/repository"
	"github.com/sakif/postforge/internal/service"
)

// PostHandler handles the generate and publish actions. Both routes sit
// behind RequireAuth, so the session is always present in the context.
type PostHandler struct {
	svc    *service.PostService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		svc:    svc,
		logger: logger,
	}
}

// generateRequest is the JSON body of POST /actions/generate.
type generateRequest struct {
	Theme        string `json:"theme"`
	PostType     string `json:"post_type"`
	Length       string `json:"length"`
	Tone         string `json:"tone"`
	BrandContext string `json:"brand_context"`
}

// generateResponse is the JSON body the generate action returns. post_id is
// empty when the draft could not be saved — the text is still delivered.
type generateResponse struct {
	PostText string `json:"post_text"`
	PostID   string `json:"post_id,omitempty"`
}

// HandleGenerate forwards a generation request to the automation workflow
// and returns the drafted post.
//
// HTTP: POST /actions/generate
// Auth: Required
func (h *PostHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeError(w, apperror.Unauthorized("Unauthorized. Please login."))
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid generate request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	result, err := h.svc.Generate(r.Context(), sess, service.GenerateInput{
		Theme:        req.Theme,
		PostType:     req.PostType,
		Length:       req.Length,
		Tone:         req.Tone,
		BrandContext: req.BrandContext,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		PostText: result.PostText,
		PostID:   result.PostID,
	})
}

// publishRequest is the JSON body of POST /actions/publish.
type publishRequest struct {
	PostText string         `json:"post_text"`
	PostID   string         `json:"post_id"`
	Metadata map[string]any `json:"metadata"`
}

// publishResponse wraps the workflow's verbatim response. The workflow
// result is passed through untouched so the frontend sees exactly what the
// publish pipeline reported.
type publishResponse struct {
	Result  json.RawMessage `json:"result"`
	Warning string          `json:"warning,omitempty"`
}

// HandlePublish forwards a publish request to the automation workflow and,
// when a post ID is supplied, marks that post as published.
//
// HTTP: POST /actions/publish
// Auth: Required
func (h *PostHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized. Please login."))
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid publish request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	result, err := h.svc.Publish(r.Context(), sess, service.PublishInput{
		PostText: req.PostText,
		PostID:   req.PostID,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{
		Result:  result.Result,
		Warning: result.Warning,
	})
}

// listResponse is the JSON body of GET /actions/posts.
type listResponse struct {
	Posts []postSummary `json:"posts"`
}

type postSummary struct {
	ID        string `json:"id"`
	Theme     string `json:"theme"`
	PostType  string `json:"post_type"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// HandleList returns the caller's saved posts, newest first.
//
// HTTP: GET /actions/posts?limit=20&offset=0
// Auth: Required
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized. Please login."))
		return
	}

	posts, err := h.svc.ListPosts(r.Context(), sess, parseListOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listResponse{Posts: make([]postSummary, 0, len(posts))}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, postSummary{
			ID:        p.ID,
			Theme:     p.Theme,
			PostType:  p.PostType,
			Status:    p.Status,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseListOptions reads limit/offset from the query string. Invalid or
// missing values fall back to zero; the service clamps them.
func parseListOptions(r *http.Request) repository.ListOptions {
	var opts repository.ListOptions
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = v
	}
	return opts
}
