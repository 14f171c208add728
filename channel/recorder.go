package channel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/pairreader/core"
)

// Recorder is a Channel that captures output and answers prompts from a
// queue of replies. An exhausted queue behaves like a timeout.
type Recorder struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	sent    []string
	chunks  []string
}

var _ Channel = (*Recorder)(nil)

// NewRecorder creates a recorder answering prompts with replies in order.
func NewRecorder(replies ...string) *Recorder {
	return &Recorder{replies: replies}
}

// Reply queues another answer.
func (r *Recorder) Reply(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
}

func (r *Recorder) Ask(_ context.Context, prompt string, _ time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	if len(r.replies) == 0 {
		return "", core.ErrTimeoutExpired
	}
	reply := r.replies[0]
	r.replies = r.replies[1:]
	return reply, nil
}

func (r *Recorder) Send(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) StreamChunk(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, text)
	return nil
}

// Prompts returns every prompt passed to Ask.
func (r *Recorder) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}

// Sent returns every message passed to Send.
func (r *Recorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

// Streamed returns the concatenation of every streamed chunk.
func (r *Recorder) Streamed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.chunks, "")
}

// Contains reports whether any sent message contains substr.
func (r *Recorder) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.sent {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
