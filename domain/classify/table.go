package classify

import (
	"fmt"
	"image"
	"maps"

	"github.com/soocke/teambuilder-tracker/domain/match"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// Rule is the matching configuration of one reference category: acceptance
// threshold, binarization and the sub-rectangles it is read from per view.
// Rects are relative to the captured region.
type Rule struct {
	Threshold float64
	Binarize  bool
	Cutoff    uint8
	Rects     map[state.View][]image.Rectangle
}

// Options returns the matcher options of r.
func (r Rule) Options() match.Options {
	return match.Options{Threshold: r.Threshold, Binarize: r.Binarize, Cutoff: r.Cutoff}
}

// Table holds one Rule per category.
type Table map[refs.Category]Rule

// Rects returns the rectangles of c in view v, or nil.
func (t Table) Rects(c refs.Category, v state.View) []image.Rectangle {
	return t[c].Rects[v]
}

// WithThresholds returns a copy of t with the thresholds of the named
// categories replaced. Unknown category names are reported as an error.
func (t Table) WithThresholds(overrides map[string]float64) (Table, error) {
	out := maps.Clone(t)
	for name, th := range overrides {
		c := refs.Category(name)
		rule, ok := out[c]
		if !ok {
			return nil, fmt.Errorf("threshold override for unknown category %q", name)
		}
		rule.Threshold = th
		out[c] = rule
	}
	return out, out.Validate(image.Rectangle{})
}

// Validate checks thresholds and, when bounds is non-empty, that every rect
// lies inside it.
func (t Table) Validate(bounds image.Rectangle) error {
	for c, rule := range t {
		if rule.Threshold < 0 || rule.Threshold > 1 {
			return fmt.Errorf("category %s: threshold %.3f outside [0,1]", c, rule.Threshold)
		}
		for v, rects := range rule.Rects {
			for i, r := range rects {
				if r.Empty() {
					return fmt.Errorf("category %s view %s rect %d is empty", c, v, i)
				}
				if !bounds.Empty() && !r.In(bounds) {
					return fmt.Errorf("category %s view %s rect %d %v outside capture %v", c, v, i, r, bounds)
				}
			}
		}
	}
	if n := len(t.Rects(refs.CategoryDigit, state.ViewInGame)); n != 0 && n != clockDigits {
		return fmt.Errorf("clock needs %d digit rects, got %d", clockDigits, n)
	}
	return nil
}

// CaptureSize is the capture geometry DefaultTable is laid out for.
var CaptureSize = image.Rect(0, 0, 1920, 1080)

// DefaultTable returns the rules for a 1920x1080 capture.
func DefaultTable() Table {
	heroSelectSlots := make([]image.Rectangle, 0, 6)
	for i := 0; i < 6; i++ {
		x := 330 + i*210
		heroSelectSlots = append(heroSelectSlots, image.Rect(x, 830, x+120, 880))
	}
	tabSlots := make([]image.Rectangle, 0, state.SlotCount)
	for i := 0; i < state.SlotCount; i++ {
		x, y := 240, 250+i*72
		if i >= 6 {
			x, y = 1000, 250+(i-6)*72
		}
		tabSlots = append(tabSlots, image.Rect(x, y, x+64, y+64))
	}
	heroRects := map[state.View][]image.Rectangle{
		state.ViewHeroSelect: heroSelectSlots,
		state.ViewTab:        tabSlots,
	}
	mapName := func(right int) map[state.View][]image.Rectangle {
		return map[state.View][]image.Rectangle{
			state.ViewHeroSelect: {image.Rect(60, 110, right, 150)},
		}
	}

	return Table{
		refs.CategoryView: {Threshold: 0.08, Rects: map[state.View][]image.Rectangle{
			state.ViewHeroSelect: {image.Rect(60, 40, 260, 70)},
			state.ViewTab:        {image.Rect(820, 20, 1100, 50)},
			state.ViewInGame:     {image.Rect(900, 1000, 1020, 1040)},
		}},
		refs.CategoryGameType: {Threshold: 0.08, Rects: map[state.View][]image.Rectangle{
			state.ViewHeroSelect: {image.Rect(60, 80, 260, 104)},
		}},
		refs.CategoryMapStandard: {Threshold: 0.1, Rects: mapName(460)},
		refs.CategoryMapControl:  {Threshold: 0.1, Rects: mapName(400)},
		refs.CategoryMapArena:    {Threshold: 0.1, Rects: mapName(360)},
		refs.CategoryMapHybrid:   {Threshold: 0.1, Rects: mapName(500)},
		// Map names on bright backgrounds, keyed by a high cutoff. The rect
		// spans the widest map-name layout; narrower patterns are skipped.
		refs.CategoryMapHighContrast: {Threshold: 0.12, Binarize: true, Cutoff: 200, Rects: mapName(500)},
		refs.CategoryMapTab: {Threshold: 0.1, Rects: map[state.View][]image.Rectangle{
			state.ViewTab: {image.Rect(60, 30, 400, 64)},
		}},
		refs.CategorySide: {Threshold: 0.12, Binarize: true, Cutoff: 150, Rects: map[state.View][]image.Rectangle{
			state.ViewHeroSelect: {image.Rect(470, 110, 600, 140)},
			state.ViewTab:        {image.Rect(420, 30, 540, 60)},
		}},
		refs.CategoryHero:     {Threshold: 0.1, Rects: heroRects},
		refs.CategoryHeroBlur: {Threshold: 0.14, Rects: heroRects},
		refs.CategoryObjectiveAssault: {Threshold: 0.1, Rects: map[state.View][]image.Rectangle{
			state.ViewInGame: {image.Rect(890, 60, 1030, 120)},
			state.ViewTab:    {image.Rect(890, 90, 1030, 150)},
		}},
		refs.CategoryObjectiveControl: {Threshold: 0.1, Rects: map[state.View][]image.Rectangle{
			state.ViewInGame: {image.Rect(900, 60, 1020, 120)},
			state.ViewTab:    {image.Rect(900, 90, 1020, 150)},
		}},
		refs.CategoryGameEnd: {Threshold: 0.15, Binarize: true, Rects: map[state.View][]image.Rectangle{
			state.ViewInGame: {image.Rect(660, 420, 1260, 560)},
		}},
		refs.CategoryDigit: {Threshold: 0.1, Binarize: true, Rects: map[state.View][]image.Rectangle{
			state.ViewInGame: {
				image.Rect(80, 50, 94, 70),
				image.Rect(96, 50, 110, 70),
				image.Rect(120, 50, 134, 70),
				image.Rect(136, 50, 150, 70),
			},
		}},
		refs.CategoryColon: {Threshold: 0.1, Binarize: true, Rects: map[state.View][]image.Rectangle{
			state.ViewInGame: {image.Rect(112, 50, 118, 70)},
		}},
	}
}
