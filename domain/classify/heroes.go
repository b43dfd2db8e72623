package classify

import (
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// classifyHeroes reads every hero slot of view. A slot that does not match the
// sharp portraits is retried against the blurred set (portraits behind the
// selection animation); slots that match neither are left out.
func (e *Engine) classifyHeroes(frame *capture.Region, view state.View) map[int]string {
	rects := e.table.Rects(refs.CategoryHero, view)
	if len(rects) == 0 {
		return nil
	}
	out := make(map[int]string, len(rects))
	for i := range rects {
		if i >= state.SlotCount {
			break
		}
		res, _ := e.read(frame, view, refs.CategoryHero, i)
		if !res.Found {
			res, _ = e.read(frame, view, refs.CategoryHeroBlur, i)
		}
		if res.Found {
			out[i+1] = DisplayName(res.Name)
		}
	}
	return out
}
