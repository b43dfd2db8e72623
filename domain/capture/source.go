package capture

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

const statsLogEvery = 50

// ScreenSource captures rectangles of the primary display. It keeps running
// counters that are logged at debug level every statsLogEvery captures.
type ScreenSource struct {
	logger       *slog.Logger
	grab         func(image.Rectangle) (*image.RGBA, bool, error)
	captures     atomic.Uint64
	failures     atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	last         atomic.Int64
}

// NewScreenSource returns a source backed by the platform screen grabber.
func NewScreenSource(logger *slog.Logger) *ScreenSource {
	return &ScreenSource{logger: logger, grab: grabRect}
}

// Capture grabs rect from the screen. Failures are reported as *Error.
func (s *ScreenSource) Capture(rect image.Rectangle) (*Region, error) {
	if rect.Empty() {
		s.failures.Add(1)
		return nil, &Error{Rect: rect}
	}
	start := time.Now()
	img, pooled, err := s.grab(rect)
	if err != nil || img == nil {
		s.failures.Add(1)
		return nil, &Error{Rect: rect, Err: err}
	}
	now := time.Now()
	s.captureNanos.Add(uint64(now.Sub(start).Nanoseconds()))
	n := s.captures.Add(1)
	seq := s.sequence.Add(1)
	s.last.Store(now.UnixNano())
	if n%statsLogEvery == 0 {
		s.logStats()
	}
	return &Region{img: normalizeRGBA(img), CapturedAt: now, Sequence: seq, pooled: pooled}, nil
}

// Stats returns a snapshot of the capture counters.
func (s *ScreenSource) Stats() Stats {
	captures := s.captures.Load()
	var avg time.Duration
	if total := s.captureNanos.Load(); captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
	}
	var last time.Time
	if ns := s.last.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Captures:    captures,
		Failures:    s.failures.Load(),
		AvgCapture:  avg,
		LastCapture: last,
		Sequence:    s.sequence.Load(),
	}
}

func (s *ScreenSource) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"failures", stats.Failures,
		"avg_capture", stats.AvgCapture,
	)
}

var _ Source = (*ScreenSource)(nil)
