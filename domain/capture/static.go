package capture

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
)

// StaticSource serves captures from a fixed screenshot instead of the live
// screen. It backs replay runs and tests.
type StaticSource struct {
	mu       sync.RWMutex
	screen   *image.RGBA
	sequence atomic.Uint64
}

// NewStaticSource serves rectangles of img, whose top-left is treated as the
// screen origin.
func NewStaticSource(img image.Image) *StaticSource {
	s := &StaticSource{}
	s.Set(img)
	return s
}

// OpenStaticSource decodes the screenshot at path.
func OpenStaticSource(path string) (*StaticSource, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open screenshot %s: %w", path, err)
	}
	return NewStaticSource(img), nil
}

// Set replaces the served screenshot. A nil image makes every capture fail.
func (s *StaticSource) Set(img image.Image) {
	var screen *image.RGBA
	if img != nil {
		screen = normalizeRGBA(img)
	}
	s.mu.Lock()
	s.screen = screen
	s.mu.Unlock()
}

// Capture copies rect out of the screenshot. Rectangles that do not overlap
// the screenshot fail with *Error.
func (s *StaticSource) Capture(rect image.Rectangle) (*Region, error) {
	s.mu.RLock()
	screen := s.screen
	s.mu.RUnlock()
	if screen == nil {
		return nil, &Error{Rect: rect}
	}
	r := rect.Intersect(screen.Rect)
	if r.Empty() {
		return nil, &Error{Rect: rect, Err: fmt.Errorf("rect outside screenshot %v", screen.Rect)}
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), screen, r.Min, draw.Src)
	return &Region{img: out, CapturedAt: time.Now(), Sequence: s.sequence.Add(1)}, nil
}

var _ Source = (*StaticSource)(nil)
