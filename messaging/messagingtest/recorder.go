// Package messagingtest provides a recording messaging.Client for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/xraph/herald/messaging"
)

// Call kinds recorded by Recorder.
const (
	KindDirectMessage = "direct_message"
	KindCommentReply  = "comment_reply"
	KindPrivateReply  = "private_reply"
)

// Call is one recorded outbound call.
type Call struct {
	Kind        string
	AccessToken string
	TargetID    string
	Text        string
}

// Recorder is a messaging.Client that records calls. Failures can be
// injected per call kind.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]failure
}

type failure struct {
	remaining int // negative fails forever
	err       error
}

var _ messaging.Client = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]failure)}
}

// FailNext makes the next n calls of kind return err. A negative n fails
// every call of that kind.
func (r *Recorder) FailNext(kind string, n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[kind] = failure{remaining: n, err: err}
}

// Calls returns a copy of the recorded calls, including failed attempts.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns the number of recorded calls of kind.
func (r *Recorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// SendDirectMessage records a direct message.
func (r *Recorder) SendDirectMessage(ctx context.Context, accessToken, recipientID, text string) error {
	return r.record(ctx, Call{Kind: KindDirectMessage, AccessToken: accessToken, TargetID: recipientID, Text: text})
}

// ReplyToComment records a public comment reply.
func (r *Recorder) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	return r.record(ctx, Call{Kind: KindCommentReply, AccessToken: accessToken, TargetID: commentID, Text: text})
}

// SendPrivateReplyToComment records a private reply.
func (r *Recorder) SendPrivateReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	return r.record(ctx, Call{Kind: KindPrivateReply, AccessToken: accessToken, TargetID: commentID, Text: text})
}

func (r *Recorder) record(ctx context.Context, c Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, c)
	f, ok := r.fail[c.Kind]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		r.fail[c.Kind] = f
	}
	return f.err
}
