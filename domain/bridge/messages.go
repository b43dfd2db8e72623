package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soocke/teambuilder-tracker/domain/state"
)

// TopicPrefix is prepended to the session id to form the bus topic.
const TopicPrefix = "com.voxter.teambuilder."

// Topic returns the bus topic of a session.
func Topic(sessionID string) string { return TopicPrefix + sessionID }

// Wire tags.
const (
	TagHello     = "Hello"
	TagHeroes    = string(state.TagHeroes)
	TagOptions   = string(state.TagOptions)
	TagObjective = string(state.TagObjective)
	TagTime      = string(state.TagTime)
)

var (
	// ErrUnknownTag is returned by Decode for a tag outside the protocol.
	ErrUnknownTag = errors.New("unknown message tag")
	// ErrBadPayload is returned by Decode for a known tag with a bad body.
	ErrBadPayload = errors.New("bad message payload")
)

// Message is one control-protocol message. The set of implementations is
// closed.
type Message interface {
	Tag() string
	isMessage()
}

// Hello asks the other end to broadcast its full state.
type Hello struct{}

// Heroes carries the hero of every slot, indexed by slot-1; "" is unknown.
type Heroes struct{ Names []string }

// Options carries the map side and map name.
type Options struct {
	Side string
	Map  string
}

// Objective carries objective progress in percent, or state.ProgressUnknown
// after a reset.
type Objective struct{ Percent int }

// Time carries the elapsed game time in seconds, or state.ClockUnknown after
// a reset.
type Time struct{ Seconds int }

func (Hello) Tag() string     { return TagHello }
func (Heroes) Tag() string    { return TagHeroes }
func (Options) Tag() string   { return TagOptions }
func (Objective) Tag() string { return TagObjective }
func (Time) Tag() string      { return TagTime }

func (Hello) isMessage()     {}
func (Heroes) isMessage()    {}
func (Options) isMessage()   {}
func (Objective) isMessage() {}
func (Time) isMessage()      {}

// Encode renders m as a JSON array: the tag followed by its argument.
func Encode(m Message) (json.RawMessage, error) {
	var parts []any
	switch m := m.(type) {
	case Hello:
		parts = []any{TagHello}
	case Heroes:
		names := m.Names
		if names == nil {
			names = []string{}
		}
		parts = []any{TagHeroes, names}
	case Options:
		parts = []any{TagOptions, []string{m.Side, m.Map}}
	case Objective:
		parts = []any{TagObjective, m.Percent}
	case Time:
		parts = []any{TagTime, m.Seconds}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTag, m)
	}
	return json.Marshal(parts)
}

// Decode parses a JSON array produced by Encode or by the front-end.
func Decode(payload json.RawMessage) (Message, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil || len(parts) == 0 {
		return nil, fmt.Errorf("%w: not a tagged array", ErrBadPayload)
	}
	var tag string
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return nil, fmt.Errorf("%w: tag is not a string", ErrBadPayload)
	}
	arg := func(v any) error {
		if len(parts) < 2 {
			return fmt.Errorf("%w: %s without argument", ErrBadPayload, tag)
		}
		if err := json.Unmarshal(parts[1], v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadPayload, tag, err)
		}
		return nil
	}

	switch tag {
	case TagHello:
		return Hello{}, nil
	case TagHeroes:
		var names []*string
		if err := arg(&names); err != nil {
			return nil, err
		}
		out := make([]string, len(names))
		for i, n := range names {
			if n != nil {
				out[i] = *n
			}
		}
		return Heroes{Names: out}, nil
	case TagOptions:
		var opts []string
		if err := arg(&opts); err != nil {
			return nil, err
		}
		if len(opts) == 0 {
			return nil, fmt.Errorf("%w: options without side", ErrBadPayload)
		}
		m := Options{Side: opts[0]}
		if len(opts) > 1 {
			m.Map = opts[1]
		}
		return m, nil
	case TagObjective:
		var pct int
		if err := arg(&pct); err != nil {
			return nil, err
		}
		return Objective{Percent: pct}, nil
	case TagTime:
		var secs int
		if err := arg(&secs); err != nil {
			return nil, err
		}
		return Time{Seconds: secs}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
}

// ApplyControl applies an inbound message to prev. Only the fields the remote
// end owns are touched: the hero list and the map side. Other messages leave
// the state unchanged.
func ApplyControl(prev state.GameState, m Message) (state.GameState, state.Delta) {
	switch m := m.(type) {
	case Heroes:
		return state.SetHeroes(prev, m.Names)
	case Options:
		return state.SetSide(prev, m.Side)
	default:
		return prev.Clone(), state.Delta{}
	}
}

// deltaMessages renders the categories of d from s, in publication order.
func deltaMessages(s state.GameState, d state.Delta) []Message {
	tags := d.Tags()
	out := make([]Message, 0, len(tags))
	for _, tag := range tags {
		switch tag {
		case state.TagHeroes:
			out = append(out, Heroes{Names: s.HeroList()})
		case state.TagOptions:
			out = append(out, Options{Side: s.Side, Map: s.Map})
		case state.TagObjective:
			out = append(out, Objective{Percent: s.Objective})
		case state.TagTime:
			out = append(out, Time{Seconds: s.Clock})
		}
	}
	return out
}
