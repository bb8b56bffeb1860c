// Package messaging sends responses through the Instagram Graph API.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client is the outbound messaging API. Each call is atomic: it either
// delivered the message or it did not.
type Client interface {
	// SendDirectMessage sends text to recipientID as a direct message.
	SendDirectMessage(ctx context.Context, accessToken, recipientID, text string) error

	// ReplyToComment posts a public reply under commentID.
	ReplyToComment(ctx context.Context, accessToken, commentID, text string) error

	// SendPrivateReplyToComment sends a direct message to the author of commentID.
	SendPrivateReplyToComment(ctx context.Context, accessToken, commentID, text string) error
}

// Graph error codes that signal throttling or transient backend trouble.
var transientCodes = map[int]struct{}{
	1:   {}, // unknown error
	2:   {}, // service temporarily unavailable
	4:   {}, // application request limit
	17:  {}, // user request limit
	32:  {}, // page request limit
	341: {}, // application limit
	613: {}, // calls within one hour exceeded
}

// APIError is a non-2xx Graph API response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode,omitempty"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	TraceID    string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("messaging: graph api status %d", e.StatusCode)
	}
	return fmt.Sprintf("messaging: graph api status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether retrying the same call may succeed.
func (e *APIError) Temporary() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 || e.StatusCode == 0 {
		return true
	}
	_, ok := transientCodes[e.Code]
	return ok
}

// IsPermanent reports whether err is a client error that will not
// self-correct on retry. Network errors and timeouts are not permanent.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
