// Package webhook is the client for the external automation endpoints.
//
// The interesting work — drafting post text, talking to LinkedIn's publish
// API — happens inside an n8n workflow behind two webhook URLs. This package
// treats those workflows as opaque collaborators: it forwards a JSON payload
// server-to-server, applies a timeout, and maps the outcome onto the
// application's error taxonomy. Nothing here knows what the workflow does.
//
// WHY A TIMEOUT?
// An unbounded proxy call is a resource-exhaustion risk: every hung upstream
// request pins a goroutine and a connection until the client gives up. The
// http.Client timeout bounds the whole call (dial, write, read); on expiry
// the action fails as an UPSTREAM error, same as any other webhook failure.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/postforge/internal/apperror"
)

// maxResponseBytes caps how much of an upstream response we will buffer.
// A compromised or misbehaving workflow should not be able to balloon our
// memory with an unbounded body.
const maxResponseBytes = 1 << 20 // 1 MiB

// GenerateRequest is the payload forwarded to the generation workflow.
// Field names match what the workflow expects — they are the wire contract.
type GenerateRequest struct {
	Theme        string `json:"theme"`
	PostType     string `json:"post_type"`
	Length       string `json:"length"`
	Tone         string `json:"tone"`
	BrandContext string `json:"brand_context"`
}

// PublishRequest is the payload forwarded to the publish workflow.
type PublishRequest struct {
	PostText string         `json:"post_text"`
	Metadata map[string]any `json:"metadata"`
}

// Client calls the two automation webhooks.
type Client struct {
	generateURL string
	publishURL  string
	http        *http.Client
	logger      *slog.Logger
}

// New creates a webhook Client. timeout bounds every outbound call.
func New(generateURL, publishURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		generateURL: generateURL,
		publishURL:  publishURL,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Generate forwards the generation parameters and returns the generated post
// text. The workflow responds with plain text (the post body), not JSON.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := c.post(ctx, "generate", c.generateURL, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Publish forwards the post text for publishing and returns the workflow's
// JSON result verbatim — the handler relays it to the caller unchanged.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (json.RawMessage, error) {
	if req.Metadata == nil {
		// The workflow expects a metadata object, even an empty one.
		req.Metadata = map[string]any{}
	}

	body, err := c.post(ctx, "publish", c.publishURL, req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// post performs one JSON POST to a webhook and returns the raw response body.
//
// FAILURE MAPPING:
// Every failure — unreachable endpoint, timeout, non-2xx status — comes back
// as an apperror.ErrUpstream with a generic user-facing message and a short
// diagnostic in Details. The full cause is logged here, server-side only;
// upstream bodies are never echoed to callers.
func (c *Client) post(ctx context.Context, action, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		// Programmer error (unencodable payload), not an upstream fault
		return nil, fmt.Errorf("webhook: encoding %s payload: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("webhook: building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("webhook call failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
			slog.Duration("after", time.Since(start)),
		)
		return nil, apperror.Upstream(
			fmt.Sprintf("failed to %s post", action),
			"webhook unreachable or timed out",
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("webhook response read failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream(
			fmt.Sprintf("failed to %s post", action),
			"webhook response unreadable",
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("webhook returned non-success status",
			slog.String("action", action),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, apperror.Upstream(
			fmt.Sprintf("failed to %s post", action),
			fmt.Sprintf("webhook returned %d", resp.StatusCode),
		)
	}

	c.logger.Debug("webhook call completed",
		slog.String("action", action),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return body, nil
}
