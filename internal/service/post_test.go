package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/postforge/internal/apperror"
	"github.com/sakif/postforge/internal/auth"
	"github.com/sakif/postforge/internal/model"
	"github.com/sakif/postforge/internal/repository"
	"github.com/sakif/postforge/internal/webhook"
)

// =========================================================================
// FAKES
// =========================================================================

type fakePostRepo struct {
	posts map[string]*model.Post
	// error injection knobs
	createErr        error
	markPublishedErr error
	// call recording
	markPublishedCalls int
	lastPublishID      string
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*model.Post)}
}

func (f *fakePostRepo) Create(ctx context.Context, post *model.Post) error {
	if f.createErr != nil {
		return f.createErr
	}
	post.ID = "post-fake-1"
	post.CreatedAt = time.Now()
	post.UpdatedAt = time.Now()
	copied := *post
	f.posts[post.ID] = &copied
	return nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return p, nil
}

func (f *fakePostRepo) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Post, error) {
	var result []model.Post
	for _, p := range f.posts {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (f *fakePostRepo) MarkPublished(ctx context.Context, id, ownerID, publishID string) error {
	f.markPublishedCalls++
	f.lastPublishID = publishID
	if f.markPublishedErr != nil {
		return f.markPublishedErr
	}
	p, ok := f.posts[id]
	if !ok {
		return apperror.NotFound("post", id)
	}
	if p.UserID != ownerID {
		return apperror.Forbidden("post belongs to a different user")
	}
	p.Status = model.PostStatusPublished
	p.PublishID = publishID
	return nil
}

// fakeForwarder stands in for webhook.Client. It records what was forwarded
// and answers with canned responses.
type fakeForwarder struct {
	generateText string
	generateErr  error
	publishRaw   json.RawMessage
	publishErr   error

	lastGenerate *webhook.GenerateRequest
	lastPublish  *webhook.PublishRequest
}

func (f *fakeForwarder) Generate(ctx context.Context, req webhook.GenerateRequest) (string, error) {
	f.lastGenerate = &req
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.generateText, nil
}

func (f *fakeForwarder) Publish(ctx context.Context, req webhook.PublishRequest) (json.RawMessage, error) {
	f.lastPublish = &req
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	return f.publishRaw, nil
}

func testSession() *auth.Session {
	return &auth.Session{UserID: "user-1", Email: "jane@example.com", Name: "Jane Doe"}
}

func validGenerateInput() GenerateInput {
	return GenerateInput{
		Theme:    "shipping small fixes",
		PostType: "story",
		Length:   "medium",
		Tone:     "practical",
	}
}

// =========================================================================
// GENERATE TESTS
// =========================================================================

func TestGenerate_HappyPath(t *testing.T) {
	repo := newFakePostRepo()
	hooks := &fakeForwarder{generateText: "Here is your post."}
	svc := NewPostService(repo, hooks, testLogger())

	result, err := svc.Generate(context.Background(), testSession(), validGenerateInput())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.PostText != "Here is your post." {
		t.Errorf("PostText = %q", result.PostText)
	}
	if result.PostID == "" {
		t.Error("PostID is empty, want the saved draft's ID")
	}

	saved := repo.posts[result.PostID]
	if saved == nil {
		t.Fatal("draft was not saved")
	}
	if saved.UserID != "user-1" {
		t.Errorf("saved draft UserID = %q, want the caller's ID", saved.UserID)
	}
	if saved.Status != model.PostStatusDraft {
		t.Errorf("saved draft Status = %q, want %q", saved.Status, model.PostStatusDraft)
	}
	if saved.Content != "Here is your post." {
		t.Errorf("saved draft Content = %q", saved.Content)
	}
}

func TestGenerate_MissingFieldsRejectedBeforeNetwork(t *testing.T) {
	hooks := &fakeForwarder{generateText: "should never be produced"}
	svc := NewPostService(newFakePostRepo(), hooks, testLogger())

	in := validGenerateInput()
	in.Theme = ""
	in.Tone = "   " // whitespace counts as missing

	_, err := svc.Generate(context.Background(), testSession(), in)
	if err == nil {
		t.Fatal("Generate() should reject missing fields")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "theme") || !strings.Contains(err.Error(), "tone") {
		t.Errorf("error %q should name every missing field", err.Error())
	}
	if hooks.lastGenerate != nil {
		t.Error("an invalid request must never reach the workflow")
	}
}

func TestGenerate_DefaultsBrandContext(t *testing.T) {
	hooks := &fakeForwarder{generateText: "text"}
	svc := NewPostService(newFakePostRepo(), hooks, testLogger())

	if _, err := svc.Generate(context.Background(), testSession(), validGenerateInput()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if hooks.lastGenerate.BrandContext != DefaultBrandContext {
		t.Errorf("forwarded BrandContext = %q, want the default", hooks.lastGenerate.BrandContext)
	}
}

func TestGenerate_CallerBrandContextWins(t *testing.T) {
	hooks := &fakeForwarder{generateText: "text"}
	svc := NewPostService(newFakePostRepo(), hooks, testLogger())

	in := validGenerateInput()
	in.BrandContext = "Acme Corp - We make anvils"

	if _, err := svc.Generate(context.Background(), testSession(), in); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if hooks.lastGenerate.BrandContext != "Acme Corp - We make anvils" {
		t.Errorf("forwarded BrandContext = %q, caller's value must win", hooks.lastGenerate.BrandContext)
	}
}

func TestGenerate_WorkflowFailurePropagates(t *testing.T) {
	hooks := &fakeForwarder{generateErr: apperror.Upstream("failed to generate post", "webhook returned 500")}
	repo := newFakePostRepo()
	svc := NewPostService(repo, hooks, testLogger())

	_, err := svc.Generate(context.Background(), testSession(), validGenerateInput())
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
	if len(repo.posts) != 0 {
		t.Error("nothing should be saved when generation fails")
	}
}

func TestGenerate_SaveFailureStillReturnsText(t *testing.T) {
	repo := newFakePostRepo()
	repo.createErr = errors.New("disk full")
	hooks := &fakeForwarder{generateText: "the generated post"}
	svc := NewPostService(repo, hooks, testLogger())

	result, err := svc.Generate(context.Background(), testSession(), validGenerateInput())
	if err != nil {
		t.Fatalf("Generate() error = %v, the text must survive a save failure", err)
	}
	if result.PostText != "the generated post" {
		t.Errorf("PostText = %q", result.PostText)
	}
	if result.PostID != "" {
		t.Errorf("PostID = %q, want empty when the save failed", result.PostID)
	}
}

// =========================================================================
// PUBLISH TESTS
// =========================================================================

func TestPublish_WithoutPostID(t *testing.T) {
	repo := newFakePostRepo()
	hooks := &fakeForwarder{publishRaw: json.RawMessage(`{"status":"ok","post_id":"urn:li:share:42"}`)}
	svc := NewPostService(repo, hooks, testLogger())

	result, err := svc.Publish(context.Background(), testSession(), PublishInput{PostText: "hello world"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	// The workflow's response passes through untouched
	if string(result.Result) != `{"status":"ok","post_id":"urn:li:share:42"}` {
		t.Errorf("Result = %s, want the verbatim workflow response", result.Result)
	}
	if result.Warning != "" {
		t.Errorf("Warning = %q, want empty", result.Warning)
	}
	if repo.markPublishedCalls != 0 {
		t.Error("no post ID supplied, nothing should be marked published")
	}
}

func TestPublish_EmptyTextRejected(t *testing.T) {
	hooks := &fakeForwarder{}
	svc := NewPostService(newFakePostRepo(), hooks, testLogger())

	_, err := svc.Publish(context.Background(), testSession(), PublishInput{PostText: "  "})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if hooks.lastPublish != nil {
		t.Error("an invalid request must never reach the workflow")
	}
}

func TestPublish_MarksOwnPostPublished(t *testing.T) {
	repo := newFakePostRepo()
	repo.posts["post-1"] = &model.Post{ID: "post-1", UserID: "user-1", Status: model.PostStatusDraft}
	hooks := &fakeForwarder{publishRaw: json.RawMessage(`{"post_id":"urn:li:share:42"}`)}
	svc := NewPostService(repo, hooks, testLogger())

	result, err := svc.Publish(context.Background(), testSession(), PublishInput{
		PostText: "hello world",
		PostID:   "post-1",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if result.Warning != "" {
		t.Errorf("Warning = %q, want empty", result.Warning)
	}
	if repo.posts["post-1"].Status != model.PostStatusPublished {
		t.Errorf("post status = %q, want %q", repo.posts["post-1"].Status, model.PostStatusPublished)
	}
	if repo.lastPublishID != "urn:li:share:42" {
		t.Errorf("recorded publish ID = %q, want the workflow's post_id", repo.lastPublishID)
	}
}

func TestPublish_ForeignPostBlockedBeforeWorkflow(t *testing.T) {
	repo := newFakePostRepo()
	repo.posts["post-1"] = &model.Post{ID: "post-1", UserID: "someone-else", Status: model.PostStatusDraft}
	hooks := &fakeForwarder{publishRaw: json.RawMessage(`{}`)}
	svc := NewPostService(repo, hooks, testLogger())

	_, err := svc.Publish(context.Background(), testSession(), PublishInput{
		PostText: "hello world",
		PostID:   "post-1",
	})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
	// CRITICAL: publishing is irreversible upstream — the workflow must not
	// have been called for a post the caller does not own.
	if hooks.lastPublish != nil {
		t.Error("workflow was called for a foreign post")
	}
	if repo.posts["post-1"].Status != model.PostStatusDraft {
		t.Error("foreign post was mutated")
	}
}

func TestPublish_UnknownPostID(t *testing.T) {
	hooks := &fakeForwarder{publishRaw: json.RawMessage(`{}`)}
	svc := NewPostService(newFakePostRepo(), hooks, testLogger())

	_, err := svc.Publish(context.Background(), testSession(), PublishInput{
		PostText: "hello world",
		PostID:   "no-such-post",
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if hooks.lastPublish != nil {
		t.Error("workflow was called for an unknown post")
	}
}

func TestPublish_WorkflowFailureMutatesNothing(t *testing.T) {
	repo := newFakePostRepo()
	repo.posts["post-1"] = &model.Post{ID: "post-1", UserID: "user-1", Status: model.PostStatusDraft}
	hooks := &fakeForwarder{publishErr: apperror.Upstream("failed to publish post", "webhook unreachable or timed out")}
	svc := NewPostService(repo, hooks, testLogger())

	_, err := svc.Publish(context.Background(), testSession(), PublishInput{
		PostText: "hello world",
		PostID:   "post-1",
	})
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
	if repo.posts["post-1"].Status != model.PostStatusDraft {
		t.Error("post status changed even though the workflow failed")
	}
}

func TestPublish_StatusUpdateFailureReturnsWarning(t *testing.T) {
	repo := newFakePostRepo()
	repo.posts["post-1"] = &model.Post{ID: "post-1", UserID: "user-1", Status: model.PostStatusDraft}
	repo.markPublishedErr = errors.New("connection reset")
	hooks := &fakeForwarder{publishRaw: json.RawMessage(`{"status":"ok"}`)}
	svc := NewPostService(repo, hooks, testLogger())

	result, err := svc.Publish(context.Background(), testSession(), PublishInput{
		PostText: "hello world",
		PostID:   "post-1",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v — the post IS live upstream, the call must succeed", err)
	}
	if string(result.Result) != `{"status":"ok"}` {
		t.Errorf("Result = %s", result.Result)
	}
	if result.Warning == "" {
		t.Error("Warning is empty, want a partial-failure warning")
	}
}

func TestPublish_MetadataForwarded(t *testing.T) {
	hooks := &fakeForwarder{publishRaw: json.RawMessage(`{}`)}
	svc := NewPostService(newFakePostRepo(), hooks, testLogger())

	_, err := svc.Publish(context.Background(), testSession(), PublishInput{
		PostText: "hello world",
		Metadata: map[string]any{"visibility": "PUBLIC"},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if hooks.lastPublish.Metadata["visibility"] != "PUBLIC" {
		t.Errorf("forwarded Metadata = %v", hooks.lastPublish.Metadata)
	}
}

func TestPublishIDFrom(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"post_id key", `{"post_id":"abc"}`, "abc"},
		{"publish_id key", `{"publish_id":"def"}`, "def"},
		{"id key", `{"id":"ghi"}`, "ghi"},
		{"post_id wins over id", `{"id":"ghi","post_id":"abc"}`, "abc"},
		{"no known key", `{"status":"ok"}`, ""},
		{"non-string value", `{"post_id":42}`, ""},
		{"not an object", `"just text"`, ""},
		{"invalid json", `not json at all`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := publishIDFrom(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("publishIDFrom(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
