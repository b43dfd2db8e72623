package capture

import (
	"image"
	"image/draw"
)

// Crop returns the sub-image of r covered by rect, with rect given relative to
// the region's top-left corner. The rectangle is clamped to the region bounds
// and is at least 1x1, so an out-of-range rect yields a sub-image whose shape
// differs from the request. The result shares pixels with r.
func (r *Region) Crop(rect image.Rectangle) *image.RGBA {
	if r == nil || r.img == nil {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	size := r.Bounds()
	clamped := rect.Canon().Intersect(size)
	if clamped.Empty() {
		x := min(max(rect.Min.X, 0), size.Dx()-1)
		y := min(max(rect.Min.Y, 0), size.Dy()-1)
		clamped = image.Rect(x, y, x+1, y+1)
	}
	abs := clamped.Add(r.img.Rect.Min)
	return r.img.SubImage(abs).(*image.RGBA)
}

// normalizeRGBA copies any image into a zero-origin *image.RGBA. RGBA images
// that already start at the origin are returned unchanged.
func normalizeRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
