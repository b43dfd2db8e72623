package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/teambuilder-tracker/bus"
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// Phase enumerates the bridge lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingHandshake
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingHandshake:
		return "awaiting_handshake"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// Status is the bridge state. View is only meaningful while Active.
type Status struct {
	Phase     Phase
	View      state.View
	SessionID string
}

// Listener is called on every status change.
type Listener func(prev, next Status)

// ErrRunning is returned by Run while another session is being served.
var ErrRunning = errors.New("bridge already running")

// DefaultHandshakeDelay is the pause between the greeting and the first cycle.
const DefaultHandshakeDelay = 500 * time.Millisecond

// Config configures a Bridge.
type Config struct {
	Rect           image.Rectangle
	Intervals      Intervals
	HandshakeDelay time.Duration
	DefaultMap     string
	DefaultSide    string
}

// Bridge joins a session topic and drives the poll loop for it.
type Bridge struct {
	cfg        Config
	source     capture.Source
	classifier Classifier
	bus        bus.Bus
	logger     *slog.Logger

	mu        sync.Mutex
	status    Status
	listeners []Listener
	session   *Session
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns an idle bridge.
func New(cfg Config, src capture.Source, cl Classifier, b bus.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeDelay < 0 {
		cfg.HandshakeDelay = 0
	}
	return &Bridge{cfg: cfg, source: src, classifier: cl, bus: b, logger: logger}
}

// AddListener registers l for status changes.
func (b *Bridge) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Status returns the current status.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Session returns the session being served, or nil when idle.
func (b *Bridge) Session() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Join starts serving sessionID in the background. Joining the session
// already served is a no-op; joining another one leaves the current first.
func (b *Bridge) Join(ctx context.Context, sessionID string) {
	b.mu.Lock()
	if b.done != nil && b.sessionID == sessionID {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.Leave()

	started := make(chan struct{})
	go func() {
		if err := b.run(ctx, sessionID, started); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("bridge stopped", "session_id", sessionID, "error", err)
		}
	}()
	<-started
}

// Leave stops the running session and waits for it to unsubscribe. It is a
// no-op when idle.
func (b *Bridge) Leave() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run serves sessionID until ctx is done or Leave is called: it subscribes to
// the session topic, greets the remote end, waits the handshake delay and
// then loops capture cycles. Capture and publish failures are logged and
// retried on the next cycle. Only a failed subscription or greeting ends Run
// with an error.
func (b *Bridge) Run(ctx context.Context, sessionID string) error {
	return b.run(ctx, sessionID, nil)
}

func (b *Bridge) run(parent context.Context, sessionID string, started chan<- struct{}) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	b.mu.Lock()
	if b.done != nil {
		b.mu.Unlock()
		if started != nil {
			close(started)
		}
		return ErrRunning
	}
	topic := Topic(sessionID)
	sess := NewSession(SessionConfig{
		Topic:       topic,
		Rect:        b.cfg.Rect,
		Intervals:   b.cfg.Intervals,
		DefaultMap:  b.cfg.DefaultMap,
		DefaultSide: b.cfg.DefaultSide,
	}, b.source, b.classifier, b.bus, b.logger)
	done := make(chan struct{})
	b.session, b.sessionID, b.cancel, b.done = sess, sessionID, cancel, done
	b.mu.Unlock()
	if started != nil {
		close(started)
	}

	defer func() {
		b.mu.Lock()
		b.session, b.sessionID, b.cancel, b.done = nil, "", nil, nil
		b.mu.Unlock()
		b.transition(Status{Phase: PhaseIdle})
		close(done)
	}()

	logger := b.logger.With("session_id", sessionID)
	b.transition(Status{Phase: PhaseAwaitingHandshake, SessionID: sessionID})

	sub, err := b.bus.Subscribe(ctx, topic, func(payload json.RawMessage) {
		msg, err := Decode(payload)
		if err != nil {
			logger.Warn("dropping control message", "payload", string(payload), "error", err)
			return
		}
		if err := sess.HandleControl(ctx, msg); err != nil {
			logger.Warn("control message failed", "tag", msg.Tag(), "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		uctx, ucancel := context.WithTimeout(context.Background(), time.Second)
		defer ucancel()
		if err := sub.Unsubscribe(uctx); err != nil {
			logger.Debug("unsubscribe failed", "error", err)
		}
	}()

	if err := sess.Greet(ctx); err != nil {
		return err
	}
	logger.Info("joined session", "topic", topic)
	if !sleep(ctx, b.cfg.HandshakeDelay) {
		return nil
	}
	b.transition(Status{Phase: PhaseActive, View: state.ViewUnknown, SessionID: sessionID})

	for {
		wait, err := sess.Cycle(ctx)
		if err != nil {
			var ce *capture.Error
			var te *bus.TransportError
			switch {
			case errors.As(err, &ce):
				logger.Warn("capture failed", "error", err)
			case errors.As(err, &te):
				logger.Warn("publish failed", "error", err)
			default:
				logger.Error("cycle failed", "error", err)
			}
		}
		b.transition(Status{Phase: PhaseActive, View: sess.State().View, SessionID: sessionID})
		if !sleep(ctx, wait) {
			logger.Info("left session")
			return nil
		}
	}
}

func (b *Bridge) transition(next Status) {
	b.mu.Lock()
	prev := b.status
	if prev == next {
		b.mu.Unlock()
		return
	}
	b.status = next
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	b.logger.Debug("bridge transition",
		"from", prev.Phase.String(), "from_view", prev.View.String(),
		"to", next.Phase.String(), "to_view", next.View.String())
	for _, l := range listeners {
		l(prev, next)
	}
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
