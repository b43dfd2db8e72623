package classify

import (
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// clockDigits is the number of digit slots in "mm:ss".
const clockDigits = 4

// classifyClock reads the "mm:ss" clock. Any slot that is not recognised
// invalidates the whole reading.
func (e *Engine) classifyClock(frame *capture.Region, view state.View) int {
	if len(e.table.Rects(refs.CategoryDigit, view)) != clockDigits {
		return state.ClockUnknown
	}
	if colon, ok := e.read(frame, view, refs.CategoryColon, 0); !ok || !colon.Found {
		return state.ClockUnknown
	}
	var d [clockDigits]int
	for i := range d {
		res, _ := e.read(frame, view, refs.CategoryDigit, i)
		if !res.Found {
			return state.ClockUnknown
		}
		n, ok := trailingInt(res.Name)
		if !ok || n > 9 {
			return state.ClockUnknown
		}
		d[i] = n
	}
	if d[2] > 5 {
		return state.ClockUnknown
	}
	minutes := d[0]*10 + d[1]
	seconds := d[2]*10 + d[3]
	return minutes*60 + seconds
}
