// Package bus is the topic-scoped publish/subscribe transport the tracker
// talks to its front-end through. Payloads are opaque JSON documents; the
// message vocabulary lives with the caller.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler receives the payload of one event. Handlers run on the transport's
// delivery goroutine and must not block for long.
type Handler func(payload json.RawMessage)

// Subscription is an active topic subscription.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

// Bus publishes to and subscribes on topics. Publishers never receive their
// own events.
type Bus interface {
	Publish(ctx context.Context, topic string, payload json.RawMessage) error
	Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error)
}

// ErrClosed is reported by operations on a closed transport.
var ErrClosed = errors.New("bus closed")

// TransportError is returned by every failed bus operation.
type TransportError struct {
	Op    string
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("bus %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bus %s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Wire operations of Frame.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPublish     = "publish"
	OpEvent       = "event"
)

// Frame is the envelope exchanged with the broker. Clients send subscribe,
// unsubscribe and publish frames; the broker delivers event frames.
type Frame struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// Validate checks the fields required by Op.
func (f Frame) Validate() error {
	switch f.Op {
	case OpSubscribe, OpUnsubscribe:
	case OpPublish, OpEvent:
		if len(f.Args) == 0 {
			return fmt.Errorf("%s frame without args", f.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", f.Op)
	}
	if f.Topic == "" {
		return fmt.Errorf("%s frame without topic", f.Op)
	}
	return nil
}
