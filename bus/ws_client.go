package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// ClientIDHeader carries the client id on the websocket handshake.
const ClientIDHeader = "X-Client-Id"

const (
	writeTimeout = 3 * time.Second
	readLimit    = 1 << 20
)

// WSClient is a Bus backed by a websocket connection to a broker.
type WSClient struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]map[uint64]Handler
	nextID   uint64
	closed   bool

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Dial connects to the broker at url. version is reported in the User-Agent.
func Dial(ctx context.Context, url, version string, logger *slog.Logger) (*WSClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"User-Agent":   {"teambuilder-tracker/" + version},
			ClientIDHeader: {id},
		},
	})
	if err != nil {
		return nil, &TransportError{Op: "dial", Topic: url, Err: err}
	}
	conn.SetReadLimit(readLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	c := &WSClient{
		id:       id,
		conn:     conn,
		logger:   logger.With("client_id", id),
		handlers: map[string]map[uint64]Handler{},
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.readLoop(readCtx)
	c.logger.Info("bus connected", "url", url)
	return c, nil
}

// ID returns the client id sent to the broker.
func (c *WSClient) ID() string { return c.id }

// Done is closed when the connection has gone away.
func (c *WSClient) Done() <-chan struct{} { return c.done }

// Err returns the reason the connection ended, once Done is closed.
func (c *WSClient) Err() error {
	<-c.done
	return c.err
}

func (c *WSClient) Publish(ctx context.Context, topic string, payload json.RawMessage) error {
	return c.write(ctx, Frame{Op: OpPublish, Topic: topic, Args: payload})
}

func (c *WSClient) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &TransportError{Op: OpSubscribe, Topic: topic, Err: ErrClosed}
	}
	first := len(c.handlers[topic]) == 0
	c.nextID++
	id := c.nextID
	if first {
		c.handlers[topic] = map[uint64]Handler{}
	}
	c.handlers[topic][id] = h
	c.mu.Unlock()

	if first {
		if err := c.write(ctx, Frame{Op: OpSubscribe, Topic: topic}); err != nil {
			c.remove(topic, id)
			return nil, err
		}
	}
	return &wsSubscription{c: c, topic: topic, id: id}, nil
}

// Close ends the connection. It is safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.done
	return err
}

func (c *WSClient) write(ctx context.Context, f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return &TransportError{Op: f.Op, Topic: f.Topic, Err: ErrClosed}
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, c.conn, f); err != nil {
		return &TransportError{Op: f.Op, Topic: f.Topic, Err: err}
	}
	return nil
}

// remove drops one handler and reports whether it was the topic's last.
func (c *WSClient) remove(topic string, id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs, ok := c.handlers[topic]
	if !ok {
		return false
	}
	if _, ok := hs[id]; !ok {
		return false
	}
	delete(hs, id)
	if len(hs) == 0 {
		delete(c.handlers, topic)
		return true
	}
	return false
}

func (c *WSClient) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		var f Frame
		if err := wsjson.Read(ctx, c.conn, &f); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.err = &TransportError{Op: "read", Err: ErrClosed}
			default:
				if errors.Is(err, context.Canceled) {
					c.err = &TransportError{Op: "read", Err: ErrClosed}
				} else {
					c.err = &TransportError{Op: "read", Err: err}
					c.logger.Warn("bus connection lost", "error", err)
				}
			}
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		if f.Op != OpEvent {
			c.logger.Debug("ignoring frame", "op", f.Op, "topic", f.Topic)
			continue
		}
		c.mu.Lock()
		targets := make([]Handler, 0, len(c.handlers[f.Topic]))
		for _, h := range c.handlers[f.Topic] {
			targets = append(targets, h)
		}
		c.mu.Unlock()
		for _, h := range targets {
			h(f.Args)
		}
	}
}

type wsSubscription struct {
	c     *WSClient
	topic string
	id    uint64
}

func (s *wsSubscription) Unsubscribe(ctx context.Context) error {
	if !s.c.remove(s.topic, s.id) {
		return nil
	}
	return s.c.write(ctx, Frame{Op: OpUnsubscribe, Topic: s.topic})
}
