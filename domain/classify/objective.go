package classify

import (
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// gaugeCategory lists the modes with an objective gauge.
var gaugeCategory = map[state.Mode]refs.Category{
	state.ModeStandard: refs.CategoryObjectiveAssault,
	state.ModeControl:  refs.CategoryObjectiveControl,
}

// classifyObjective reads the objective gauge of mode. Gauge pattern names end
// in the percentage they show. Monotonicity is enforced by the tracker, not
// here.
func (e *Engine) classifyObjective(frame *capture.Region, view state.View, mode state.Mode) int {
	if view != state.ViewInGame && view != state.ViewTab {
		return state.ProgressUnknown
	}
	cat, ok := gaugeCategory[mode]
	if !ok {
		return state.ProgressUnknown
	}
	res, ok := e.read(frame, view, cat, 0)
	if !ok || !res.Found {
		return state.ProgressUnknown
	}
	pct, ok := trailingInt(res.Name)
	if !ok || pct > 100 {
		e.logger.Warn("objective pattern name has no percentage", "category", cat, "name", res.Name)
		return state.ProgressUnknown
	}
	return pct
}

// detectGameEnd reports whether the end-of-match banner is visible.
func (e *Engine) detectGameEnd(frame *capture.Region, view state.View) bool {
	res, ok := e.read(frame, view, refs.CategoryGameEnd, 0)
	return ok && res.Found
}
