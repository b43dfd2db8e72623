package match

import (
	"image"
	"image/color"

	"github.com/soocke/teambuilder-tracker/domain/refs"
)

// Condense reduces img to one intensity sample per pixel by keeping the first
// color channel (red, 8-bit, not alpha-premultiplied). This is the reduction
// the authoring tool applies to reference images, so both sides of a match
// share the same representation. Gray images keep their value, which makes
// condensing an already condensed array the identity.
func Condense(img image.Image) refs.Gray {
	if img == nil {
		return refs.Gray{}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return refs.Gray{}
	}
	out := refs.NewGray(w, h)
	switch src := img.(type) {
	case *image.RGBA:
		if opaque(src) {
			for y := 0; y < h; y++ {
				row := src.Pix[(b.Min.Y-src.Rect.Min.Y+y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
				dst := out.Pix[y*w : (y+1)*w]
				for x := range dst {
					dst[x] = row[x*4]
				}
			}
			return out
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[(b.Min.Y-src.Rect.Min.Y+y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			dst := out.Pix[y*w : (y+1)*w]
			for x := range dst {
				dst[x] = row[x*4]
			}
		}
		return out
	case *image.Gray:
		for y := 0; y < h; y++ {
			off := (b.Min.Y-src.Rect.Min.Y+y)*src.Stride + (b.Min.X - src.Rect.Min.X)
			copy(out.Pix[y*w:(y+1)*w], src.Pix[off:off+w])
		}
		return out
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			out.Pix[y*w+x] = c.R
		}
	}
	return out
}

// CondenseGray returns a copy of an already condensed array.
func CondenseGray(g refs.Gray) refs.Gray {
	out := refs.Gray{W: g.W, H: g.H, Pix: make([]uint8, len(g.Pix))}
	copy(out.Pix, g.Pix)
	return out
}

// ToImage renders g as an *image.Gray, mainly for debug dumps.
func ToImage(g refs.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+g.W], g.Pix[y*g.W:(y+1)*g.W])
	}
	return img
}

// opaque reports whether every pixel of the visible area has alpha 255, in
// which case premultiplied and straight red are identical.
func opaque(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			if img.Pix[i+x*4+3] != 0xFF {
				return false
			}
		}
	}
	return true
}
