package queue

import (
	"context"
)

// Message is a single message received from a queue. Bodies are opaque JSON;
// parsing is the consumer's responsibility.
type Message struct {
	Body string
}

// Queue is the minimal transport used by the job submitter and monitor.
// One Receive call is one unit of polling: it may legitimately return an
// empty batch, and messages for unrelated jobs interleave on a shared queue.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, max int) ([]Message, error)
}
