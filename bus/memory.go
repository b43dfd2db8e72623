package bus

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Memory is an in-process bus. Each Client is one participant; events are
// delivered synchronously to every other client subscribed to the topic.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	nextID uint64
	closed bool
}

type memorySub struct {
	id     uint64
	client uint64
	h      Handler
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: map[string][]*memorySub{}}
}

// Client returns a new participant.
func (m *Memory) Client() *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return &MemoryClient{m: m, id: m.nextID}
}

// Close makes every later operation fail with ErrClosed.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	clear(m.subs)
}

// Subscribers returns the number of subscriptions on topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

// MemoryClient is one participant of a Memory bus.
type MemoryClient struct {
	m  *Memory
	id uint64
}

func (c *MemoryClient) Publish(ctx context.Context, topic string, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: OpPublish, Topic: topic, Err: err}
	}
	c.m.mu.RLock()
	if c.m.closed {
		c.m.mu.RUnlock()
		return &TransportError{Op: OpPublish, Topic: topic, Err: ErrClosed}
	}
	targets := make([]Handler, 0, len(c.m.subs[topic]))
	for _, s := range c.m.subs[topic] {
		if s.client != c.id {
			targets = append(targets, s.h)
		}
	}
	c.m.mu.RUnlock()

	// Handlers may publish in turn, so they run without the lock held.
	for _, h := range targets {
		h(slices.Clone(payload))
	}
	return nil
}

func (c *MemoryClient) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: OpSubscribe, Topic: topic, Err: err}
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.m.closed {
		return nil, &TransportError{Op: OpSubscribe, Topic: topic, Err: ErrClosed}
	}
	c.m.nextID++
	s := &memorySub{id: c.m.nextID, client: c.id, h: h}
	c.m.subs[topic] = append(c.m.subs[topic], s)
	return &memorySubscription{m: c.m, topic: topic, id: s.id}, nil
}

type memorySubscription struct {
	m     *Memory
	topic string
	id    uint64
}

func (s *memorySubscription) Unsubscribe(context.Context) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.subs[s.topic] = slices.DeleteFunc(s.m.subs[s.topic], func(ms *memorySub) bool { return ms.id == s.id })
	if len(s.m.subs[s.topic]) == 0 {
		delete(s.m.subs, s.topic)
	}
	return nil
}

var (
	_ Bus = (*MemoryClient)(nil)
	_ Bus = (*WSClient)(nil)
)
