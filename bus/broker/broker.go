// Package broker relays bus frames between websocket clients. Every topic is
// a room; a publish is fanned out to every member of the room except its
// sender.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/soocke/teambuilder-tracker/bus"
)

// Msg is handled by the broker loop.
type Msg interface{ isBrokerMsg() }

// Join registers a client. Events for it are written to Outbox, which the
// broker closes when the client leaves or is dropped.
type Join struct {
	ClientID string
	Outbox   chan []byte
}

// Leave unregisters a client. Outbox must be the channel it joined with, so a
// stale connection cannot remove a newer one using the same id.
type Leave struct {
	ClientID string
	Outbox   chan []byte
}

type Subscribe struct{ ClientID, Topic string }

type Unsubscribe struct{ ClientID, Topic string }

type Publish struct {
	ClientID string
	Topic    string
	Args     json.RawMessage
}

// GetStats reports room and client counts.
type GetStats struct{ Reply chan Stats }

type Shutdown struct{}

func (Join) isBrokerMsg()        {}
func (Leave) isBrokerMsg()       {}
func (Subscribe) isBrokerMsg()   {}
func (Unsubscribe) isBrokerMsg() {}
func (Publish) isBrokerMsg()     {}
func (GetStats) isBrokerMsg()    {}
func (Shutdown) isBrokerMsg()    {}

// Stats is a snapshot of the broker's membership.
type Stats struct {
	Clients   int
	Rooms     int
	Published uint64
	Dropped   uint64
}

// Broker is the relay actor. All state is owned by its loop goroutine.
type Broker struct {
	inbox   chan Msg
	clients map[string]chan []byte
	rooms   map[string]map[string]struct{}
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	published uint64
	dropped   uint64
}

// New starts a broker that runs until parent is cancelled or Shutdown is
// received.
func New(parent context.Context, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	b := &Broker{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan []byte),
		rooms:   make(map[string]map[string]struct{}),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go b.loop()
	return b
}

// Inbox exposes the broker's message queue.
func (b *Broker) Inbox() chan<- Msg { return b.inbox }

// Done is closed once the broker is stopping.
func (b *Broker) Done() <-chan struct{} { return b.ctx.Done() }

// Send queues m unless the broker has stopped.
func (b *Broker) Send(m Msg) bool {
	select {
	case b.inbox <- m:
		return true
	case <-b.ctx.Done():
		return false
	}
}

// Stats asks the loop for a membership snapshot.
func (b *Broker) Stats() (Stats, bool) {
	reply := make(chan Stats, 1)
	if !b.Send(GetStats{Reply: reply}) {
		return Stats{}, false
	}
	select {
	case s := <-reply:
		return s, true
	case <-b.ctx.Done():
		return Stats{}, false
	}
}

func (b *Broker) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case Join:
				if old, ok := b.clients[msg.ClientID]; ok {
					b.drop(msg.ClientID, old)
				}
				b.clients[msg.ClientID] = msg.Outbox
				b.logger.Debug("client joined", "client_id", msg.ClientID)

			case Leave:
				if out, ok := b.clients[msg.ClientID]; ok && out == msg.Outbox {
					b.drop(msg.ClientID, out)
					b.logger.Debug("client left", "client_id", msg.ClientID)
				}

			case Subscribe:
				if _, ok := b.clients[msg.ClientID]; !ok {
					break
				}
				room := b.rooms[msg.Topic]
				if room == nil {
					room = make(map[string]struct{})
					b.rooms[msg.Topic] = room
				}
				room[msg.ClientID] = struct{}{}

			case Unsubscribe:
				b.leaveRoom(msg.Topic, msg.ClientID)

			case Publish:
				b.publish(msg)

			case GetStats:
				msg.Reply <- Stats{Clients: len(b.clients), Rooms: len(b.rooms), Published: b.published, Dropped: b.dropped}

			case Shutdown:
				b.cancel()
			}
		}
	}
}

func (b *Broker) publish(msg Publish) {
	if _, ok := b.clients[msg.ClientID]; !ok {
		return
	}
	frame, err := json.Marshal(bus.Frame{Op: bus.OpEvent, Topic: msg.Topic, Args: msg.Args})
	if err != nil {
		b.logger.Warn("dropping unencodable publish", "topic", msg.Topic, "error", err)
		return
	}
	b.published++
	for id := range b.rooms[msg.Topic] {
		if id == msg.ClientID {
			continue
		}
		out := b.clients[id]
		select {
		case out <- frame:
		default:
			// Slow consumer.
			b.dropped++
			b.logger.Warn("dropping slow client", "client_id", id, "topic", msg.Topic)
			b.drop(id, out)
		}
	}
}

func (b *Broker) drop(id string, out chan []byte) {
	close(out)
	delete(b.clients, id)
	for topic := range b.rooms {
		b.leaveRoom(topic, id)
	}
}

func (b *Broker) leaveRoom(topic, id string) {
	room, ok := b.rooms[topic]
	if !ok {
		return
	}
	delete(room, id)
	if len(room) == 0 {
		delete(b.rooms, topic)
	}
}

func (b *Broker) shutdown() {
	for id, out := range b.clients {
		close(out)
		delete(b.clients, id)
	}
	clear(b.rooms)
}
