package debug

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/soocke/teambuilder-tracker/domain/match"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// RegionDumper writes every classified sub-region to a directory as PNG. Each
// element has a fixed file name, so the directory always holds the latest
// capture of every element.
type RegionDumper struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	failed bool
}

// NewRegionDumper creates dir if needed.
func NewRegionDumper(dir string, logger *slog.Logger) (*RegionDumper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	return &RegionDumper{dir: dir, logger: logger}, nil
}

// FileName returns the file an element is written to.
func FileName(view state.View, c refs.Category, index int) string {
	return fmt.Sprintf("%s_%s_%02d.png", view, c, index)
}

// Dump saves img. Write failures are logged once.
func (d *RegionDumper) Dump(view state.View, c refs.Category, index int, img image.Image, res match.Result) {
	if d == nil {
		return
	}
	path := filepath.Join(d.dir, FileName(view, c, index))
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := imaging.Save(img, path); err != nil {
		if !d.failed {
			d.logger.Warn("debug dump failed", "path", path, "error", err)
			d.failed = true
		}
		return
	}
	d.logger.Debug("region dumped",
		"file", filepath.Base(path),
		"match", res.Name,
		"distance", res.Distance,
		"found", res.Found,
	)
}
