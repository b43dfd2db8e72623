package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"maps"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/teambuilder-tracker/bus"
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var testRect = image.Rect(0, 0, 8, 8)

// scripted returns whatever classification it was last given.
type scripted struct {
	mu   sync.Mutex
	next state.Classification
}

func newScripted(c state.Classification) *scripted { return &scripted{next: c} }

func (s *scripted) set(c state.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = c
}

func (s *scripted) Classify(*capture.Region, state.GameState) state.Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.next
	c.Heroes = maps.Clone(c.Heroes)
	return c
}

// recorder collects decoded messages seen by a subscriber.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(p json.RawMessage) {
	m, err := Decode(p)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) take() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

// flakyBus fails the next n publishes.
type flakyBus struct {
	bus.Bus
	fail atomic.Int32
}

func (f *flakyBus) Publish(ctx context.Context, topic string, p json.RawMessage) error {
	if f.fail.Load() > 0 {
		f.fail.Add(-1)
		return &bus.TransportError{Op: bus.OpPublish, Topic: topic, Err: errors.New("link down")}
	}
	return f.Bus.Publish(ctx, topic, p)
}

// hookBus runs hook once, before the first publish goes out.
type hookBus struct {
	bus.Bus
	once sync.Once
	hook func()
}

func (b *hookBus) Publish(ctx context.Context, topic string, p json.RawMessage) error {
	b.once.Do(b.hook)
	return b.Bus.Publish(ctx, topic, p)
}

type harness struct {
	mem      *bus.Memory
	engine   *flakyBus
	frontend *bus.MemoryClient
	seen     *recorder
	source   *capture.StaticSource
	cls      *scripted
}

func newHarness(t *testing.T, c state.Classification) *harness {
	t.Helper()
	mem := bus.NewMemory()
	h := &harness{
		mem:      mem,
		engine:   &flakyBus{Bus: mem.Client()},
		frontend: mem.Client(),
		seen:     &recorder{},
		source:   capture.NewStaticSource(image.NewRGBA(testRect)),
		cls:      newScripted(c),
	}
	if _, err := h.frontend.Subscribe(context.Background(), Topic("s1"), h.seen.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return h
}

func (h *harness) session() *Session {
	return NewSession(SessionConfig{Topic: Topic("s1"), Rect: testRect}, h.source, h.cls, h.engine, discardLogger)
}

func hanamuraSelect() state.Classification {
	c := state.Unclassified(state.ViewHeroSelect)
	c.Map, c.Mode, c.Side = "Hanamura", state.ModeStandard, "Attack"
	c.Heroes = map[int]string{1: "mercy"}
	return c
}

func heroList(first string) []string {
	out := make([]string, state.SlotCount)
	out[0] = first
	return out
}

func TestCodec(t *testing.T) {
	cases := []struct {
		msg  Message
		wire string
	}{
		{Hello{}, `["Hello"]`},
		{Heroes{Names: []string{"mercy", ""}}, `["heroes",["mercy",""]]`},
		{Options{Side: "Attack", Map: "Hanamura"}, `["options",["Attack","Hanamura"]]`},
		{Objective{Percent: 66}, `["objective",66]`},
		{Time{Seconds: 465}, `["time",465]`},
	}
	for _, tc := range cases {
		raw, err := Encode(tc.msg)
		if err != nil || string(raw) != tc.wire {
			t.Fatalf("encode %T: %s %v", tc.msg, raw, err)
		}
		back, err := Decode(raw)
		if err != nil || !reflect.DeepEqual(back, tc.msg) {
			t.Fatalf("decode %s: %#v %v", tc.wire, back, err)
		}
	}
}

func TestDecode_FrontEndForms(t *testing.T) {
	m, err := Decode(json.RawMessage(`["options",["Defense"]]`))
	if err != nil || m != (Options{Side: "Defense"}) {
		t.Fatalf("side-only options: %#v %v", m, err)
	}
	m, err = Decode(json.RawMessage(`["heroes",["ana",null]]`))
	if err != nil || !reflect.DeepEqual(m, Heroes{Names: []string{"ana", ""}}) {
		t.Fatalf("null hero: %#v %v", m, err)
	}
	if _, err := Decode(json.RawMessage(`["bogus",1]`)); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
	for _, bad := range []string{`{}`, `[]`, `[1]`, `["time"]`, `["time","x"]`, `["options",[]]`} {
		if _, err := Decode(json.RawMessage(bad)); !errors.Is(err, ErrBadPayload) {
			t.Fatalf("%s: expected ErrBadPayload, got %v", bad, err)
		}
	}
}

func TestSession_CyclePublishesOnlyChanges(t *testing.T) {
	h := newHarness(t, hanamuraSelect())
	s := h.session()

	wait, err := s.Cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if wait != DefaultIntervals().HeroSelect {
		t.Fatalf("hero select interval, got %v", wait)
	}
	want := []Message{Heroes{Names: heroList("mercy")}, Options{Side: "Attack", Map: "Hanamura"}}
	if got := h.seen.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}

	if _, err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := h.seen.take(); len(got) != 0 {
		t.Fatalf("unchanged reading must publish nothing, got %#v", got)
	}
}

func TestSession_TransportErrorRetriesNextCycle(t *testing.T) {
	h := newHarness(t, hanamuraSelect())
	s := h.session()
	h.engine.fail.Store(1)

	_, err := s.Cycle(context.Background())
	var te *bus.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if st := s.State(); st.Map != "Hanamura" {
		t.Fatalf("state must still be updated, got %+v", st)
	}
	if got := h.seen.take(); len(got) != 0 {
		t.Fatalf("nothing should have been delivered, got %#v", got)
	}

	if _, err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if got := h.seen.take(); len(got) != 2 {
		t.Fatalf("pending delta must be republished, got %#v", got)
	}
	if st := s.Stats(); st.PublishErrors != 1 || st.Cycles != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSession_CaptureErrorLeavesState(t *testing.T) {
	h := newHarness(t, hanamuraSelect())
	h.source.Set(nil)
	s := h.session()

	_, err := s.Cycle(context.Background())
	var ce *capture.Error
	if !errors.As(err, &ce) || !errors.Is(err, capture.ErrUnavailable) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if st := s.State(); st.Map != "" || len(st.Heroes) != 0 {
		t.Fatalf("state touched by failed capture: %+v", st)
	}
}

func TestSession_HandleControl(t *testing.T) {
	ctx := context.Background()
	inGame := state.Unclassified(state.ViewInGame)
	inGame.Map, inGame.Side, inGame.Objective = "Hanamura", "Attack", 50
	h := newHarness(t, inGame)
	s := h.session()
	if _, err := s.Cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	h.seen.take()

	if err := s.HandleControl(ctx, Heroes{Names: []string{"ana", "lucio"}}); err != nil {
		t.Fatalf("heroes: %v", err)
	}
	if got := h.seen.take(); len(got) != 0 {
		t.Fatalf("remote hero change must not be echoed: %#v", got)
	}
	if st := s.State(); st.Heroes[1] != "ana" || st.Heroes[2] != "lucio" {
		t.Fatalf("heroes not applied: %v", st.Heroes)
	}

	if err := s.HandleControl(ctx, Hello{}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	got := h.seen.take()
	if len(got) != 2 || got[0].Tag() != TagHeroes || got[1] != (Options{Side: "Attack", Map: "Hanamura"}) {
		t.Fatalf("hello must rebroadcast heroes and options, got %#v", got)
	}

	if err := s.HandleControl(ctx, Options{Side: "Defense"}); err != nil {
		t.Fatalf("options: %v", err)
	}
	// The screen still shows attack; the remote choice wins for one cycle.
	inGame.Objective = state.ProgressUnknown
	h.cls.set(inGame)
	if _, err := s.Cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if st := s.State(); st.Side != "Defense" || st.Objective != state.ProgressUnknown {
		t.Fatalf("side selection not applied: %+v", st)
	}
	if got := h.seen.take(); !reflect.DeepEqual(got, []Message{Objective{Percent: state.ProgressUnknown}}) {
		t.Fatalf("expected objective reset only, got %#v", got)
	}

	if err := s.HandleControl(ctx, Time{Seconds: 3}); err != nil {
		t.Fatalf("echoed time must be ignored, got %v", err)
	}
	if err := s.HandleControl(ctx, nil); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestSession_ControlDuringPublishIsNotLost(t *testing.T) {
	ctx := context.Background()
	inGame := state.Unclassified(state.ViewInGame)
	inGame.Map, inGame.Side, inGame.Objective = "Hanamura", "Attack", 40
	h := newHarness(t, inGame)

	var s *Session
	hooked := &hookBus{Bus: h.engine, hook: func() {
		if err := s.HandleControl(ctx, Options{Side: "Defense"}); err != nil {
			t.Errorf("options: %v", err)
		}
	}}
	s = NewSession(SessionConfig{Topic: Topic("s1"), Rect: testRect}, h.source, h.cls, hooked, discardLogger)

	if _, err := s.Cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	h.seen.take()

	inGame.Objective = state.ProgressUnknown
	h.cls.set(inGame)
	if _, err := s.Cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if st := s.State(); st.Objective != state.ProgressUnknown {
		t.Fatalf("expected objective reset, got %+v", st)
	}
	if got := h.seen.take(); !reflect.DeepEqual(got, []Message{Objective{Percent: state.ProgressUnknown}}) {
		t.Fatalf("reset applied during publish must go out next cycle, got %#v", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridge_Lifecycle(t *testing.T) {
	h := newHarness(t, hanamuraSelect())
	fast := Intervals{HeroSelect: 5 * time.Millisecond, Tab: 5 * time.Millisecond, InGame: 5 * time.Millisecond, Unknown: 5 * time.Millisecond}
	b := New(Config{Rect: testRect, Intervals: fast}, h.source, h.cls, h.engine, discardLogger)

	var mu sync.Mutex
	var phases []Phase
	b.AddListener(func(prev, next Status) {
		mu.Lock()
		defer mu.Unlock()
		if len(phases) == 0 || phases[len(phases)-1] != next.Phase {
			phases = append(phases, next.Phase)
		}
	})

	ctx := context.Background()
	b.Join(ctx, "s1")
	b.Join(ctx, "s1")
	waitFor(t, "hero select", func() bool { return b.Status().View == state.ViewHeroSelect })

	got := h.seen.take()
	if len(got) < 3 || got[0] != (Hello{}) {
		t.Fatalf("expected greeting then state, got %#v", got)
	}

	if err := h.frontend.Publish(ctx, Topic("s1"), json.RawMessage(`["Hello"]`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := h.seen.take(); len(got) != 2 {
		t.Fatalf("expected rebroadcast, got %#v", got)
	}

	b.Leave()
	b.Leave()
	if st := b.Status(); st.Phase != PhaseIdle || b.Session() != nil {
		t.Fatalf("expected idle, got %+v", st)
	}
	if n := h.mem.Subscribers(Topic("s1")); n != 1 {
		t.Fatalf("engine must unsubscribe, %d subscribers left", n)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []Phase{PhaseAwaitingHandshake, PhaseActive, PhaseIdle}
	if !reflect.DeepEqual(phases, want) {
		t.Fatalf("phases %v want %v", phases, want)
	}
}

func TestBridge_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, state.Unclassified(state.ViewUnknown))
	b := New(Config{Rect: testRect, HandshakeDelay: time.Millisecond}, h.source, h.cls, h.engine, discardLogger)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx, "s1") }()
	waitFor(t, "active", func() bool { return b.Status().Phase == PhaseActive })
	if err := b.Run(context.Background(), "s2"); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestBridge_GreetingFailureEndsRun(t *testing.T) {
	h := newHarness(t, state.Unclassified(state.ViewUnknown))
	h.engine.fail.Store(1)
	b := New(Config{Rect: testRect}, h.source, h.cls, h.engine, discardLogger)
	err := b.Run(context.Background(), "s1")
	var te *bus.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if b.Status().Phase != PhaseIdle {
		t.Fatalf("expected idle after failure")
	}
}
