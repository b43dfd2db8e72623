package capture

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrUnavailable reports that the capture device or API could not produce a frame.
var ErrUnavailable = errors.New("capture unavailable")

// Error describes a failed capture of Rect. It always unwraps to ErrUnavailable
// and additionally to the backend error when one is known.
type Error struct {
	Rect image.Rectangle
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture %v: %v", e.Rect, ErrUnavailable)
	}
	return fmt.Sprintf("capture %v: %v", e.Rect, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// Source produces a single snapshot of a fixed screen rectangle on demand.
type Source interface {
	Capture(rect image.Rectangle) (*Region, error)
}

// Region is an immutable captured pixel array. Coordinates are relative to the
// top-left corner of the captured rectangle.
type Region struct {
	img        *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
	pooled     bool
}

// NewRegion wraps img. The image must not be modified afterwards.
func NewRegion(img *image.RGBA) *Region {
	return &Region{img: img, CapturedAt: time.Now()}
}

// Image returns the backing image.
func (r *Region) Image() *image.RGBA {
	if r == nil {
		return nil
	}
	return r.img
}

// Bounds returns the zero-origin size of the region.
func (r *Region) Bounds() image.Rectangle {
	if r == nil || r.img == nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, r.img.Rect.Dx(), r.img.Rect.Dy())
}

// Release hands pooled pixel buffers back for reuse. Sub-images obtained via
// Crop must not be used after Release.
func (r *Region) Release() {
	if r == nil || !r.pooled {
		return
	}
	RecycleFrame(r.img)
	r.img = nil
	r.pooled = false
}

// Stats summarises capture behaviour for instrumentation.
type Stats struct {
	Captures    uint64
	Failures    uint64
	AvgCapture  time.Duration
	LastCapture time.Time
	Sequence    uint64
}
