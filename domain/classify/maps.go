package classify

import (
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// mapCategory is the map-name reference set of each mode on the hero-select
// screen.
var mapCategory = map[state.Mode]refs.Category{
	state.ModeStandard: refs.CategoryMapStandard,
	state.ModeControl:  refs.CategoryMapControl,
	state.ModeArena:    refs.CategoryMapArena,
	state.ModeHybrid:   refs.CategoryMapHybrid,
}

// classifyMap fills map, mode and side. The hero-select screen shows the game
// type, which selects the map-name geometry, with the high-contrast set as
// fallback for every mode; the tab overlay has a single map-name layout and
// yields no mode.
func (e *Engine) classifyMap(frame *capture.Region, view state.View, c *state.Classification) {
	switch view {
	case state.ViewHeroSelect:
		if gt, ok := e.read(frame, view, refs.CategoryGameType, 0); ok && gt.Found {
			c.Mode = modeForGameType(gt.Name)
		}
		if cat, ok := mapCategory[c.Mode]; ok {
			if res, ok := e.read(frame, view, cat, 0); ok && res.Found {
				c.Map = DisplayName(res.Name)
			}
		}
		if c.Map == "" {
			if res, ok := e.read(frame, view, refs.CategoryMapHighContrast, 0); ok && res.Found {
				c.Map = DisplayName(res.Name)
			}
		}
	case state.ViewTab:
		if res, ok := e.read(frame, view, refs.CategoryMapTab, 0); ok && res.Found {
			c.Map = DisplayName(res.Name)
		}
	default:
		return
	}
	if res, ok := e.read(frame, view, refs.CategorySide, 0); ok && res.Found {
		c.Side = DisplayName(res.Name)
	}
}
