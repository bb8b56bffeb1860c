package messaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/herald/ratelimit"
)

// DefaultBaseURL is the Instagram Graph API root.
const DefaultBaseURL = "https://graph.instagram.com/v21.0"

const maxErrorBody = 4096

// compile-time interface check
var _ Client = (*GraphClient)(nil)

// GraphConfig configures a GraphClient.
type GraphConfig struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// Budget throttles calls per access token. Zero means unlimited.
	Budget ratelimit.Budget

	// HTTPClient replaces the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// GraphClient implements Client over HTTPS.
type GraphClient struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewGraphClient creates a Graph API client.
func NewGraphClient(cfg GraphConfig) *GraphClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GraphClient{
		baseURL: base,
		client:  client,
		limiter: ratelimit.New(cfg.Budget),
	}
}

type recipient struct {
	ID        string `json:"id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}

type messageBody struct {
	Text string `json:"text"`
}

type sendRequest struct {
	Recipient recipient   `json:"recipient"`
	Message   messageBody `json:"message"`
}

// SendDirectMessage implements Client.
func (c *GraphClient) SendDirectMessage(ctx context.Context, accessToken, recipientID, text string) error {
	return c.post(ctx, accessToken, "/me/messages", sendRequest{
		Recipient: recipient{ID: recipientID},
		Message:   messageBody{Text: text},
	})
}

// ReplyToComment implements Client.
func (c *GraphClient) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	return c.post(ctx, accessToken, "/"+url.PathEscape(commentID)+"/replies", map[string]string{
		"message": text,
	})
}

// SendPrivateReplyToComment implements Client.
func (c *GraphClient) SendPrivateReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	return c.post(ctx, accessToken, "/me/messages", sendRequest{
		Recipient: recipient{CommentID: commentID},
		Message:   messageBody{Text: text},
	})
}

func (c *GraphClient) post(ctx context.Context, accessToken, path string, payload any) error {
	if err := c.limiter.Wait(ctx, tokenKey(accessToken)); err != nil {
		return fmt.Errorf("messaging: rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Herald/1.0")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return decodeError(resp)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.StatusCode = resp.StatusCode
		return envelope.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

// tokenKey derives a stable limiter key without keeping the raw token.
func tokenKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:8])
}
