package bridge

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/teambuilder-tracker/bus"
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// Classifier turns a captured frame into readings.
type Classifier interface {
	Classify(frame *capture.Region, prev state.GameState) state.Classification
}

// Intervals is the sleep between cycles for each detected view.
type Intervals struct {
	HeroSelect time.Duration
	Tab        time.Duration
	InGame     time.Duration
	Unknown    time.Duration
}

// DefaultIntervals polls fastest while heroes are being picked.
func DefaultIntervals() Intervals {
	return Intervals{
		HeroSelect: 500 * time.Millisecond,
		Tab:        time.Second,
		InGame:     time.Second,
		Unknown:    2 * time.Second,
	}
}

// For returns the interval of v.
func (iv Intervals) For(v state.View) time.Duration {
	switch v {
	case state.ViewHeroSelect:
		return iv.HeroSelect
	case state.ViewTab:
		return iv.Tab
	case state.ViewInGame:
		return iv.InGame
	default:
		return iv.Unknown
	}
}

// SessionConfig configures one Session.
type SessionConfig struct {
	Topic       string
	Rect        image.Rectangle
	Intervals   Intervals
	DefaultMap  string
	DefaultSide string
}

// SessionStats summarises a session for instrumentation.
type SessionStats struct {
	Cycles        uint64
	CaptureErrors uint64
	PublishErrors uint64
	Published     uint64
}

// Session owns the GameState of one joined session. Cycle and HandleControl
// are mutually exclusive over the state; Cycle itself must not be called
// concurrently.
type Session struct {
	cfg        SessionConfig
	source     capture.Source
	classifier Classifier
	bus        bus.Bus
	logger     *slog.Logger

	mu         sync.Mutex
	state      state.GameState
	pending    state.Delta
	touched    state.Delta // merged into pending while a publish is in flight
	sidePinned bool

	cycles        atomic.Uint64
	captureErrors atomic.Uint64
	publishErrors atomic.Uint64
	published     atomic.Uint64
}

// NewSession returns a session seeded with the configured map and side.
func NewSession(cfg SessionConfig, src capture.Source, cl Classifier, b bus.Bus, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Intervals == (Intervals{}) {
		cfg.Intervals = DefaultIntervals()
	}
	return &Session{
		cfg:        cfg,
		source:     src,
		classifier: cl,
		bus:        b,
		logger:     logger.With("topic", cfg.Topic),
		state:      state.New(cfg.DefaultMap, cfg.DefaultSide),
	}
}

// Topic returns the bus topic of the session.
func (s *Session) Topic() string { return s.cfg.Topic }

// State returns a copy of the current state.
func (s *Session) State() state.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Stats returns the session counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Cycles:        s.cycles.Load(),
		CaptureErrors: s.captureErrors.Load(),
		PublishErrors: s.publishErrors.Load(),
		Published:     s.published.Load(),
	}
}

// Cycle runs capture, classification, tracker update and publication once,
// and returns how long to sleep before the next cycle. A failed capture is
// returned as *capture.Error and leaves the state untouched. A failed publish
// is returned as *bus.TransportError; the unpublished categories are retried
// on the next cycle.
func (s *Session) Cycle(ctx context.Context) (time.Duration, error) {
	s.cycles.Add(1)
	frame, err := s.source.Capture(s.cfg.Rect)
	if err != nil {
		s.captureErrors.Add(1)
		return s.interval(), err
	}
	defer frame.Release()

	s.mu.Lock()
	c := s.classifier.Classify(frame, s.state)
	if s.sidePinned {
		c.Side = ""
		s.sidePinned = false
	}
	next, d := state.Update(s.state, c)
	s.state = next
	s.pending = s.pending.Merge(d)
	sent := s.pending
	s.touched = state.Delta{}
	msgs := deltaMessages(s.state, sent)
	sleep := s.cfg.Intervals.For(s.state.View)
	s.mu.Unlock()

	if len(msgs) == 0 {
		return sleep, nil
	}
	if err := s.publish(ctx, msgs); err != nil {
		return sleep, err
	}
	s.mu.Lock()
	// Categories dirtied again during the publish carry values that did not
	// go out yet.
	s.pending = without(s.pending, without(sent, s.touched))
	s.touched = state.Delta{}
	s.mu.Unlock()
	return sleep, nil
}

// without clears the categories of sent from d.
func without(d, sent state.Delta) state.Delta {
	d.Heroes = d.Heroes && !sent.Heroes
	d.Options = d.Options && !sent.Options
	d.Objective = d.Objective && !sent.Objective
	d.Time = d.Time && !sent.Time
	return d
}

// HandleControl applies an inbound message. Hello rebroadcasts the full hero
// and options state; heroes and options update the fields the remote end
// owns without echoing them back. Objective and time messages are the
// engine's own publications coming back and are ignored.
func (s *Session) HandleControl(ctx context.Context, m Message) error {
	switch m := m.(type) {
	case Hello:
		s.mu.Lock()
		msgs := deltaMessages(s.state, state.Full)
		s.mu.Unlock()
		return s.publish(ctx, msgs)
	case Heroes, Options:
		s.mu.Lock()
		next, d := ApplyControl(s.state, m)
		s.state = next
		if _, ok := m.(Options); ok {
			s.sidePinned = true
		}
		// The remote end already knows what it sent; only derived resets go out.
		d.Heroes, d.Options = false, false
		s.pending = s.pending.Merge(d)
		s.touched = s.touched.Merge(d)
		s.mu.Unlock()
		s.logger.Debug("control applied", "tag", m.Tag())
		return nil
	case Objective, Time:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownTag, m)
	}
}

// Greet announces the engine on the session topic.
func (s *Session) Greet(ctx context.Context) error {
	return s.publish(ctx, []Message{Hello{}})
}

func (s *Session) publish(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		payload, err := Encode(m)
		if err != nil {
			return err
		}
		if err := s.bus.Publish(ctx, s.cfg.Topic, payload); err != nil {
			s.publishErrors.Add(1)
			return err
		}
		s.published.Add(1)
		s.logger.Debug("published", "tag", m.Tag(), "payload", string(payload))
	}
	return nil
}

func (s *Session) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Intervals.For(s.state.View)
}
