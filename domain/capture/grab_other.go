//go:build !windows

package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

// grabRect captures r through the screenshot library, which allocates a fresh
// frame per call.
func grabRect(r image.Rectangle) (*image.RGBA, bool, error) {
	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, false, err
	}
	return img, false, nil
}
