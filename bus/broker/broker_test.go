package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soocke/teambuilder-tracker/bus"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func waitRooms(t *testing.T, b *Broker, rooms int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := b.Stats()
		return ok && s.Rooms == rooms
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroker_FanOutSkipsSender(t *testing.T) {
	b := New(context.Background(), discardLogger)
	defer b.Send(Shutdown{})

	a, c, other := make(chan []byte, 4), make(chan []byte, 4), make(chan []byte, 4)
	b.Send(Join{ClientID: "a", Outbox: a})
	b.Send(Join{ClientID: "c", Outbox: c})
	b.Send(Join{ClientID: "other", Outbox: other})
	b.Send(Subscribe{ClientID: "a", Topic: "room"})
	b.Send(Subscribe{ClientID: "c", Topic: "room"})
	b.Send(Publish{ClientID: "a", Topic: "room", Args: json.RawMessage(`["Hello"]`)})
	waitRooms(t, b, 1)

	var f bus.Frame
	require.NoError(t, json.Unmarshal(<-c, &f))
	require.Equal(t, bus.Frame{Op: bus.OpEvent, Topic: "room", Args: json.RawMessage(`["Hello"]`)}, f)
	require.Empty(t, a)
	require.Empty(t, other)
}

func TestBroker_DropsSlowClient(t *testing.T) {
	b := New(context.Background(), discardLogger)
	defer b.Send(Shutdown{})

	slow := make(chan []byte) // unbuffered and never read
	pub := make(chan []byte, 1)
	b.Send(Join{ClientID: "slow", Outbox: slow})
	b.Send(Join{ClientID: "pub", Outbox: pub})
	b.Send(Subscribe{ClientID: "slow", Topic: "room"})
	b.Send(Publish{ClientID: "pub", Topic: "room", Args: json.RawMessage(`["time",1]`)})

	s, ok := b.Stats()
	require.True(t, ok)
	_, open := <-slow
	require.False(t, open, "slow client outbox must be closed")
	require.Equal(t, 1, s.Clients)
	require.Equal(t, uint64(1), s.Dropped)
	require.Zero(t, s.Rooms)
}

func TestBroker_StaleLeaveKeepsNewConnection(t *testing.T) {
	b := New(context.Background(), discardLogger)
	defer b.Send(Shutdown{})

	first, second := make(chan []byte, 1), make(chan []byte, 1)
	b.Send(Join{ClientID: "x", Outbox: first})
	b.Send(Join{ClientID: "x", Outbox: second})
	b.Send(Leave{ClientID: "x", Outbox: first})

	_, open := <-first
	require.False(t, open)
	s, ok := b.Stats()
	require.True(t, ok)
	require.Equal(t, 1, s.Clients)
}

func TestBroker_WebsocketRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b := New(ctx, discardLogger)
	srv := httptest.NewServer(b.Routes())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	engine, err := bus.Dial(ctx, url, "test", discardLogger)
	require.NoError(t, err)
	defer engine.Close()
	frontend, err := bus.Dial(ctx, url, "test", discardLogger)
	require.NoError(t, err)
	defer frontend.Close()

	got := make(chan string, 4)
	_, err = frontend.Subscribe(ctx, "com.voxter.teambuilder.s1", func(p json.RawMessage) { got <- string(p) })
	require.NoError(t, err)
	_, err = engine.Subscribe(ctx, "com.voxter.teambuilder.s1", func(p json.RawMessage) { got <- "echo:" + string(p) })
	require.NoError(t, err)
	waitRooms(t, b, 1)
	require.Eventually(t, func() bool {
		s, _ := b.Stats()
		return s.Clients == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, engine.Publish(ctx, "com.voxter.teambuilder.s1", json.RawMessage(`["objective",66]`)))
	select {
	case p := <-got:
		require.Equal(t, `["objective",66]`, p)
	case <-ctx.Done():
		t.Fatalf("no event delivered")
	}

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
