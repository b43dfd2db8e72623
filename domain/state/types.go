package state

import "maps"

// View is the on-screen context that decides which sub-rectangles carry
// meaning.
type View int

const (
	ViewUnknown View = iota
	ViewHeroSelect
	ViewTab
	ViewInGame
)

func (v View) String() string {
	switch v {
	case ViewHeroSelect:
		return "hero_select"
	case ViewTab:
		return "tab"
	case ViewInGame:
		return "in_game"
	default:
		return "unknown"
	}
}

// ParseView is the inverse of View.String. Unknown names report false.
func ParseView(name string) (View, bool) {
	for _, v := range []View{ViewHeroSelect, ViewTab, ViewInGame} {
		if v.String() == name {
			return v, true
		}
	}
	return ViewUnknown, false
}

// Mode is the game-mode family of a map. Each family has its own reference
// set and map-name geometry.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeStandard
	ModeControl
	ModeArena
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeControl:
		return "control"
	case ModeArena:
		return "arena"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// SlotCount is the number of team slots tracked (two teams of six).
const SlotCount = 12

// Unknown sentinels. Names use the empty string.
const (
	ProgressUnknown = -1
	ClockUnknown    = -1
)

// GameState is the current believed state of the match.
type GameState struct {
	View      View
	Map       string
	Mode      Mode
	Side      string
	Heroes    map[int]string // slot 1..SlotCount -> hero
	Objective int            // percent, or ProgressUnknown
	Clock     int            // elapsed seconds, or ClockUnknown
}

// New returns a state with every field unknown except the given map and side
// seeds, which may be empty.
func New(defaultMap, defaultSide string) GameState {
	return GameState{
		Map:       defaultMap,
		Side:      defaultSide,
		Heroes:    map[int]string{},
		Objective: ProgressUnknown,
		Clock:     ClockUnknown,
	}
}

// Clone returns a deep copy.
func (s GameState) Clone() GameState {
	out := s
	out.Heroes = maps.Clone(s.Heroes)
	if out.Heroes == nil {
		out.Heroes = map[int]string{}
	}
	return out
}

// HeroList returns the heroes indexed by slot-1, with "" for unknown slots.
func (s GameState) HeroList() []string {
	out := make([]string, SlotCount)
	for slot, hero := range s.Heroes {
		if slot >= 1 && slot <= SlotCount {
			out[slot-1] = hero
		}
	}
	return out
}

// Classification is one cycle's classifier output. Unknown readings use the
// sentinels; Heroes only holds slots that were recognised.
type Classification struct {
	View      View
	Map       string
	Mode      Mode
	Side      string
	Heroes    map[int]string
	Objective int
	GameEnded bool
	Clock     int
}

// Unclassified returns a classification where every reading is unknown.
func Unclassified(v View) Classification {
	return Classification{View: v, Objective: ProgressUnknown, Clock: ClockUnknown}
}

// Tag names a category of state fields published together.
type Tag string

const (
	TagHeroes    Tag = "heroes"
	TagOptions   Tag = "options"
	TagObjective Tag = "objective"
	TagTime      Tag = "time"
)

// Delta records which field categories changed. The values themselves are
// read from the state the delta was computed against.
type Delta struct {
	Heroes    bool
	Options   bool
	Objective bool
	Time      bool
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool { return !d.Heroes && !d.Options && !d.Objective && !d.Time }

// Merge returns the union of d and o.
func (d Delta) Merge(o Delta) Delta {
	return Delta{
		Heroes:    d.Heroes || o.Heroes,
		Options:   d.Options || o.Options,
		Objective: d.Objective || o.Objective,
		Time:      d.Time || o.Time,
	}
}

// Tags lists the changed categories in publication order.
func (d Delta) Tags() []Tag {
	var out []Tag
	if d.Heroes {
		out = append(out, TagHeroes)
	}
	if d.Options {
		out = append(out, TagOptions)
	}
	if d.Objective {
		out = append(out, TagObjective)
	}
	if d.Time {
		out = append(out, TagTime)
	}
	return out
}

// Full marks the categories a handshake rebroadcasts.
var Full = Delta{Heroes: true, Options: true}
