package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soocke/teambuilder-tracker/bus"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
	readLimit    = 1 << 20
)

// Routes returns the broker's HTTP surface.
func (b *Broker) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", b.healthz)
	r.Get("/ws", b.serveWS)
	return r
}

func (b *Broker) healthz(w http.ResponseWriter, _ *http.Request) {
	stats, ok := b.Stats()
	if !ok {
		http.Error(w, "stopped", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"clients":   stats.Clients,
		"rooms":     stats.Rooms,
		"published": stats.Published,
		"dropped":   stats.Dropped,
	})
}

func (b *Broker) serveWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(bus.ClientIDHeader)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(readLimit)

	out := make(chan []byte, outboxSize)
	if !b.Send(Join{ClientID: clientID, Outbox: out}) {
		conn.Close(websocket.StatusGoingAway, "broker stopping")
		return
	}
	defer b.Send(Leave{ClientID: clientID, Outbox: out})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine. A closed outbox means the broker dropped us.
	go func() {
		defer cancel()
		for frame := range out {
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			wcancel()
			if err != nil {
				return
			}
		}
		conn.Close(websocket.StatusPolicyViolation, "dropped")
	}()

	logger := b.logger.With("client_id", clientID, "user_agent", r.UserAgent())
	logger.Info("client connected")
	defer logger.Info("client disconnected")

	// Reader loop
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var f bus.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Debug("bad frame", "error", err)
			continue
		}
		if err := f.Validate(); err != nil {
			logger.Debug("invalid frame", "error", err)
			continue
		}
		var m Msg
		switch f.Op {
		case bus.OpSubscribe:
			m = Subscribe{ClientID: clientID, Topic: f.Topic}
		case bus.OpUnsubscribe:
			m = Unsubscribe{ClientID: clientID, Topic: f.Topic}
		case bus.OpPublish:
			m = Publish{ClientID: clientID, Topic: f.Topic, Args: f.Args}
		default:
			logger.Debug("unexpected op from client", "op", f.Op)
			continue
		}
		if !b.Send(m) {
			return
		}
	}
}
