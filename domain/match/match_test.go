package match

import (
	"image"
	"image/color"
	"testing"

	"github.com/soocke/teambuilder-tracker/domain/refs"
)

// grayOf builds a w x h condensed array from row-major values.
func grayOf(w, h int, vals ...uint8) refs.Gray {
	g := refs.NewGray(w, h)
	copy(g.Pix, vals)
	return g
}

// rgbaFrom paints g into the red channel of an opaque RGBA image, with noise
// in green and blue that condense must ignore.
func rgbaFrom(g refs.Gray) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			img.SetRGBA(x, y, color.RGBA{R: g.At(x, y), G: uint8(x * 7), B: uint8(y * 13), A: 255})
		}
	}
	return img
}

func TestCondense_TakesFirstChannel(t *testing.T) {
	want := grayOf(3, 2, 0, 10, 20, 30, 40, 250)
	got := Condense(rgbaFrom(want))
	if !got.SameShape(want) || string(got.Pix) != string(want.Pix) {
		t.Fatalf("got %v want %v", got.Pix, want.Pix)
	}
}

func TestCondense_SubImageOffset(t *testing.T) {
	full := rgbaFrom(grayOf(4, 4, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15))
	sub := full.SubImage(image.Rect(1, 2, 3, 4))
	got := Condense(sub)
	want := []uint8{9, 10, 13, 14}
	if got.W != 2 || got.H != 2 || string(got.Pix) != string(want) {
		t.Fatalf("got %dx%d %v want %v", got.W, got.H, got.Pix, want)
	}
}

func TestCondense_Idempotent(t *testing.T) {
	g := grayOf(3, 1, 5, 128, 255)
	once := Condense(ToImage(g))
	twice := Condense(ToImage(once))
	if string(once.Pix) != string(g.Pix) || string(twice.Pix) != string(g.Pix) {
		t.Fatalf("condense not idempotent: %v %v", once.Pix, twice.Pix)
	}
	if c := CondenseGray(g); string(c.Pix) != string(g.Pix) || &c.Pix[0] == &g.Pix[0] {
		t.Fatalf("CondenseGray must copy unchanged")
	}
}

func TestCondense_StraightAlphaForNRGBAAndTranslucentRGBA(t *testing.T) {
	n := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	n.SetNRGBA(0, 0, color.NRGBA{R: 200, A: 128})
	if got := Condense(n); got.Pix[0] != 200 {
		t.Fatalf("nrgba: got %d", got.Pix[0])
	}
	r := image.NewRGBA(image.Rect(0, 0, 1, 1))
	r.Set(0, 0, color.NRGBA{R: 200, A: 255})
	if got := Condense(r); got.Pix[0] != 200 {
		t.Fatalf("rgba: got %d", got.Pix[0])
	}
}

func TestMatch_ExactRegionDistanceZero(t *testing.T) {
	target := grayOf(2, 2, 10, 20, 30, 40)
	cands := []refs.Pattern{
		{Name: "ana", Gray: grayOf(2, 2, 200, 200, 200, 200)},
		{Name: "mercy", Gray: target},
	}
	res := Match(rgbaFrom(target), cands, Options{Threshold: 0.05})
	if !res.Found || res.Name != "mercy" || res.Distance != 0 || res.Index != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMatch_TieGoesToFirstDeclared(t *testing.T) {
	target := grayOf(2, 1, 9, 9)
	cands := []refs.Pattern{
		{Name: "first", Gray: target},
		{Name: "second", Gray: target},
	}
	res := MatchGray(target, cands, Options{Threshold: 0})
	if !res.Found || res.Name != "first" {
		t.Fatalf("expected first-declared winner, got %+v", res)
	}
	// Equal non-zero distances also keep the earlier candidate.
	cands = []refs.Pattern{
		{Name: "low", Gray: grayOf(2, 1, 8, 9)},
		{Name: "high", Gray: grayOf(2, 1, 10, 9)},
	}
	if res := MatchGray(target, cands, Options{Threshold: 1}); res.Name != "low" {
		t.Fatalf("expected low, got %+v", res)
	}
}

func TestMatch_AboveThresholdIsUnknown(t *testing.T) {
	target := grayOf(2, 2, 0, 0, 0, 0)
	cands := []refs.Pattern{{Name: "bright", Gray: grayOf(2, 2, 255, 255, 0, 0)}}
	res := MatchGray(target, cands, Options{Threshold: 0.4})
	if res.Found {
		t.Fatalf("expected unknown, got %+v", res)
	}
	if res.Name != "bright" || res.Distance != 0.5 {
		t.Fatalf("closest candidate should still be reported: %+v", res)
	}
}

func TestMatch_ShapeMismatchSkipped(t *testing.T) {
	target := grayOf(2, 2, 1, 2, 3, 4)
	cands := []refs.Pattern{
		{Name: "wide", Gray: grayOf(4, 1, 1, 2, 3, 4)},
		{Name: "ok", Gray: grayOf(2, 2, 1, 2, 3, 5)},
	}
	res := MatchGray(target, cands, Options{Threshold: 0.1})
	if !res.Found || res.Name != "ok" || res.Index != 1 {
		t.Fatalf("unexpected %+v", res)
	}
	if res := MatchGray(target, cands[:1], Options{Threshold: 1}); res.Found || res.Index != -1 {
		t.Fatalf("no same-shape candidate must be unknown, got %+v", res)
	}
	if res := MatchGray(refs.Gray{}, cands, Options{Threshold: 1}); res.Found {
		t.Fatalf("empty region must be unknown")
	}
}

func TestMatch_BinarizeToleratesNoise(t *testing.T) {
	ref := grayOf(4, 1, 0, 1, 1, 0)
	noisy := grayOf(4, 1, 40, 210, 180, 100)
	strict := MatchGray(noisy, []refs.Pattern{{Name: "glyph", Gray: grayOf(4, 1, 0, 255, 255, 0)}}, Options{Threshold: 0.05})
	if strict.Found {
		t.Fatalf("raw comparison should reject noisy glyph: %+v", strict)
	}
	res := MatchGray(noisy, []refs.Pattern{{Name: "glyph", Gray: ref}}, Options{Threshold: 0.05, Binarize: true})
	if !res.Found || res.Distance != 0 {
		t.Fatalf("binarized comparison should match: %+v", res)
	}
}

func TestBinarize(t *testing.T) {
	got := Binarize(grayOf(4, 1, 0, 127, 128, 255), 0)
	if string(got.Pix) != string([]uint8{0, 0, 1, 1}) {
		t.Fatalf("unexpected %v", got.Pix)
	}
	dark := grayOf(3, 1, 0, 1, 1)
	if got := Binarize(dark, 200); string(got.Pix) != string([]uint8{0, 0, 0}) {
		t.Fatalf("cutoff must apply to dark samples, got %v", got.Pix)
	}
	if ref := binaryReference(dark, 200); string(ref.Pix) != string(dark.Pix) {
		t.Fatalf("binary reference must pass through, got %v", ref.Pix)
	}
}

func TestMatch_DarkRegionDoesNotMatchBrightReference(t *testing.T) {
	bright := []refs.Pattern{{Name: "lit", Gray: grayOf(2, 2, 1, 1, 1, 1)}}
	opts := Options{Threshold: 0.1, Binarize: true, Cutoff: 150}
	if res := MatchGray(grayOf(2, 2, 1, 1, 1, 1), bright, opts); res.Found || res.Distance != 1 {
		t.Fatalf("near-black region matched bright glyph: %+v", res)
	}
	if res := MatchGray(grayOf(2, 2, 200, 210, 220, 255), bright, opts); !res.Found || res.Distance != 0 {
		t.Fatalf("bright region should match: %+v", res)
	}
}
