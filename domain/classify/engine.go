package classify

import (
	"image"
	"log/slog"

	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/match"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// Dumper receives every sub-region the engine classifies, together with the
// category it was matched against and the result. Used for debug output.
type Dumper interface {
	Dump(view state.View, category refs.Category, index int, img image.Image, res match.Result)
}

// Engine composes the element classifiers over a shared reference library.
// Classify holds no state between calls; concurrent calls are safe as long as
// the Dumper is.
type Engine struct {
	lib    *refs.Library
	table  Table
	logger *slog.Logger
	dumper Dumper
}

// NewEngine returns an engine using table, or DefaultTable when table is nil.
func NewEngine(lib *refs.Library, table Table, logger *slog.Logger) *Engine {
	if table == nil {
		table = DefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{lib: lib, table: table, logger: logger}
}

// SetDumper installs d; nil disables dumping.
func (e *Engine) SetDumper(d Dumper) { e.dumper = d }

// Table returns the rules in use.
func (e *Engine) Table() Table { return e.table }

// Classify reads every element visible in frame. prev supplies context a
// single frame cannot, such as the mode learned on the hero-select screen.
func (e *Engine) Classify(frame *capture.Region, prev state.GameState) state.Classification {
	view := e.DetectView(frame)
	c := state.Unclassified(view)
	if view == state.ViewUnknown {
		return c
	}

	e.classifyMap(frame, view, &c)
	c.Heroes = e.classifyHeroes(frame, view)

	mode := c.Mode
	if mode == state.ModeUnknown {
		mode = prev.Mode
	}
	c.Objective = e.classifyObjective(frame, view, mode)
	c.GameEnded = e.detectGameEnd(frame, view)
	c.Clock = e.classifyClock(frame, view)

	e.logger.Debug("classified frame",
		"view", view.String(),
		"map", c.Map,
		"mode", c.Mode.String(),
		"side", c.Side,
		"heroes", len(c.Heroes),
		"objective", c.Objective,
		"clock", c.Clock,
		"game_ended", c.GameEnded,
	)
	return c
}

// viewOrder is the order view signatures are tried in.
var viewOrder = []state.View{state.ViewHeroSelect, state.ViewTab, state.ViewInGame}

// DetectView matches each view's signature rect against the view patterns
// named after it. The first view found wins.
func (e *Engine) DetectView(frame *capture.Region) state.View {
	for _, v := range viewOrder {
		rects := e.table.Rects(refs.CategoryView, v)
		if len(rects) == 0 {
			continue
		}
		candidates := e.withBase(refs.CategoryView, v.String())
		if len(candidates) == 0 {
			continue
		}
		if res := e.match(frame, v, refs.CategoryView, 0, rects[0], candidates); res.Found {
			return v
		}
	}
	return state.ViewUnknown
}

// read matches the index-th rect of category c in view v against every
// pattern of c.
func (e *Engine) read(frame *capture.Region, v state.View, c refs.Category, index int) (match.Result, bool) {
	rects := e.table.Rects(c, v)
	if index >= len(rects) {
		return match.Unknown, false
	}
	return e.match(frame, v, c, index, rects[index], e.lib.PatternsFor(c)), true
}

func (e *Engine) match(frame *capture.Region, v state.View, c refs.Category, index int, rect image.Rectangle, candidates []refs.Pattern) match.Result {
	sub := frame.Crop(rect)
	res := match.Match(sub, candidates, e.table[c].Options())
	if e.dumper != nil {
		e.dumper.Dump(v, c, index, sub, res)
	}
	return res
}

func (e *Engine) withBase(c refs.Category, base string) []refs.Pattern {
	var out []refs.Pattern
	for _, p := range e.lib.PatternsFor(c) {
		if BaseName(p.Name) == base {
			out = append(out, p)
		}
	}
	return out
}
