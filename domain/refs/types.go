package refs

import (
	"errors"
	"fmt"
)

// Category groups reference patterns that are matched against the same kind
// of screen element.
type Category string

const (
	CategoryHero             Category = "hero"
	CategoryHeroBlur         Category = "hero-blur"
	CategoryView             Category = "view"
	CategoryGameType         Category = "game-type"
	CategoryMapStandard      Category = "map-standard"
	CategoryMapControl       Category = "map-control"
	CategoryMapArena         Category = "map-arena"
	CategoryMapHybrid        Category = "map-hybrid"
	CategoryMapTab           Category = "map-tab"
	CategoryMapHighContrast  Category = "map-high-threshold"
	CategorySide             Category = "side"
	CategoryObjectiveAssault Category = "objective-assault"
	CategoryObjectiveControl Category = "objective-control"
	CategoryGameEnd          Category = "game-end"
	CategoryDigit            Category = "digit"
	CategoryColon            Category = "colon"
)

// DefaultFiles maps every category to the file name the authoring tool writes
// for it.
var DefaultFiles = map[Category]string{
	CategoryHero:             "HeroImageList.txt",
	CategoryHeroBlur:         "HeroImageBlurList.txt",
	CategoryView:             "ViewSignatures.txt",
	CategoryGameType:         "MapImageListGameType.txt",
	CategoryMapStandard:      "MapImageListStandard.txt",
	CategoryMapControl:       "MapImageListControl.txt",
	CategoryMapArena:         "MapImageListArena.txt",
	CategoryMapHybrid:        "MapImageListHybrid.txt",
	CategoryMapTab:           "MapImageListTab.txt",
	CategoryMapHighContrast:  "MapImageHighThreshold.txt",
	CategorySide:             "MapSideList.txt",
	CategoryObjectiveAssault: "ObjectiveListAssault.txt",
	CategoryObjectiveControl: "ObjectiveListControl.txt",
	CategoryGameEnd:          "GameEnd.txt",
	CategoryDigit:            "DigitImageList.txt",
	CategoryColon:            "ColonImageList.txt",
}

// Gray is a condensed single-channel sample array stored row-major.
type Gray struct {
	W, H int
	Pix  []uint8
}

// NewGray allocates a zeroed w x h array.
func NewGray(w, h int) Gray {
	return Gray{W: w, H: h, Pix: make([]uint8, w*h)}
}

// At returns the sample at column x, row y.
func (g Gray) At(x, y int) uint8 { return g.Pix[y*g.W+x] }

// Set stores v at column x, row y.
func (g Gray) Set(x, y int, v uint8) { g.Pix[y*g.W+x] = v }

// SameShape reports whether g and o have identical dimensions.
func (g Gray) SameShape(o Gray) bool { return g.W == o.W && g.H == o.H }

// Pattern is a named reference array belonging to one category.
type Pattern struct {
	Name     string
	Category Category
	Gray     Gray
}

// ErrMalformed marks a reference line that does not follow the file format.
var ErrMalformed = errors.New("malformed reference")

// LoadError reports why a reference file could not be loaded. Line is 1-based
// and zero when the failure concerns the whole file.
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load references %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("load references %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
