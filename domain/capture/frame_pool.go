package capture

import (
	"image"
	"sync"
)

// Reusable RGBA buffers for screen grabs. Every poll cycle captures the same
// rectangle, so the backing slice of the previous frame fits the next one.
// Frames come back through Region.Release once classification is done; a
// frame that is never released is simply collected.

var framePool sync.Pool // stores *image.RGBA

// acquireFrame returns an RGBA image sized to rect with origin (0,0). Pix
// length is exactly width*height*4 and Stride is width*4.
func acquireFrame(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	bounds := image.Rect(0, 0, w, h)
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: image.Rectangle{}}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		return &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: bounds}
	}
	img.Stride = w * 4
	img.Rect = bounds
	img.Pix = img.Pix[:needed]
	return img
}

// RecycleFrame returns the frame to the pool. The caller must not touch the
// frame afterwards.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}
