package match

import (
	"image"

	"github.com/soocke/teambuilder-tracker/domain/refs"
)

// DefaultCutoff is the binarization cutoff used when Options.Cutoff is zero.
const DefaultCutoff uint8 = 128

// Options configures a single match call.
type Options struct {
	// Threshold is the largest accepted normalised distance in [0,1].
	Threshold float64
	// Binarize maps both sides to {0,1} before comparing.
	Binarize bool
	// Cutoff is the binarization cutoff; samples >= Cutoff become 1.
	Cutoff uint8
}

// Result is the best candidate of a match. Found is false for the Unknown
// outcome; Name and Index then still describe the closest candidate, if any
// candidate had the region's shape.
type Result struct {
	Name     string
	Index    int
	Distance float64
	Found    bool
}

// Unknown is the result returned when nothing could be compared.
var Unknown = Result{Index: -1, Distance: 1}

// Binarize maps samples >= cutoff to 1 and the rest to 0. The cutoff is
// always applied, so a dark region stays dark even if its raw samples are 0
// and 1.
func Binarize(g refs.Gray, cutoff uint8) refs.Gray {
	if cutoff == 0 {
		cutoff = DefaultCutoff
	}
	out := refs.Gray{W: g.W, H: g.H, Pix: make([]uint8, len(g.Pix))}
	for i, v := range g.Pix {
		if v >= cutoff {
			out.Pix[i] = 1
		}
	}
	return out
}

// binaryReference binarizes a reference pattern. Patterns authored already
// binary (refgen -cutoff) are kept as they are.
func binaryReference(g refs.Gray, cutoff uint8) refs.Gray {
	if isBinary(g) {
		return g
	}
	return Binarize(g, cutoff)
}

func isBinary(g refs.Gray) bool {
	for _, v := range g.Pix {
		if v > 1 {
			return false
		}
	}
	return true
}

// Match condenses region and returns the closest candidate.
func Match(region image.Image, candidates []refs.Pattern, opts Options) Result {
	return MatchGray(Condense(region), candidates, opts)
}

// MatchGray compares g against every candidate of the same shape using the
// mean absolute difference, normalised to [0,1]. The first candidate with the
// minimum distance wins. The result is Unknown when no candidate has g's shape
// or the minimum exceeds opts.Threshold.
func MatchGray(g refs.Gray, candidates []refs.Pattern, opts Options) Result {
	if g.W <= 0 || g.H <= 0 {
		return Unknown
	}
	scale := 255.0
	if opts.Binarize {
		g = Binarize(g, opts.Cutoff)
		scale = 1
	}
	best := Unknown
	for i, c := range candidates {
		if !c.Gray.SameShape(g) {
			continue
		}
		ref := c.Gray
		if opts.Binarize {
			ref = binaryReference(ref, opts.Cutoff)
		}
		d := float64(sumAbsDiff(g.Pix, ref.Pix)) / (float64(len(g.Pix)) * scale)
		if best.Index < 0 || d < best.Distance {
			best = Result{Name: c.Name, Index: i, Distance: d}
		}
	}
	best.Found = best.Index >= 0 && best.Distance <= opts.Threshold
	return best
}

func sumAbsDiff(a, b []uint8) uint64 {
	var sum uint64
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return sum
}
