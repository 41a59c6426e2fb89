package mail

import (
	"context"
	"sync"
)

// Recorder captures sent messages for assertions in tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

var _ Sender = (*Recorder)(nil)

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
