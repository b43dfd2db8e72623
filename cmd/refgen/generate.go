package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/classify"
	"github.com/soocke/teambuilder-tracker/domain/match"
	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

// Generate condenses every decodable image in src and writes one reference
// line per image to w, in file name order. A cutoff above zero binarizes the
// samples first. Files imaging cannot decode by extension are skipped.
func Generate(w io.Writer, src string, cutoff uint8) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := imaging.FormatFromFilename(e.Name()); err != nil {
			continue
		}
		files = append(files, e.Name())
	}
	slices.Sort(files)

	for i, file := range files {
		img, err := imaging.Open(filepath.Join(src, file))
		if err != nil {
			return i, err
		}
		g := match.Condense(img)
		if cutoff > 0 {
			g = match.Binarize(g, cutoff)
		}
		name := strings.TrimSuffix(file, filepath.Ext(file))
		if err := refs.Encode(w, name, g); err != nil {
			return i, err
		}
	}
	return len(files), nil
}

// Crop cuts every rectangle the default classifier table reads in view v out
// of the screenshot and saves them under dir as <category>_<index>.png.
func Crop(screenshot string, v state.View, dir string) (int, error) {
	src, err := capture.OpenStaticSource(screenshot)
	if err != nil {
		return 0, err
	}
	frame, err := src.Capture(classify.CaptureSize)
	if err != nil {
		return 0, err
	}
	defer frame.Release()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	table := classify.DefaultTable()
	cats := make([]refs.Category, 0, len(table))
	for c := range table {
		cats = append(cats, c)
	}
	slices.Sort(cats)

	n := 0
	for _, c := range cats {
		for i, r := range table.Rects(c, v) {
			name := fmt.Sprintf("%s_%02d.png", c, i)
			if err := imaging.Save(frame.Crop(r), filepath.Join(dir, name)); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
