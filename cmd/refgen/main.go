// Command refgen authors reference files for the tracker.
//
//	refgen -category hero -src shots/ [-out HeroImageList.txt] [-cutoff 150]
//	refgen -crop screen.png -view hero_select -out shots/
//
// The first form condenses every image in src into one reference line, keyed
// by the file name without extension, in file name order. The second form
// cuts every classifier rectangle of a view out of a 1920x1080 screenshot, so
// the crops can be renamed and fed back into the first form.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soocke/teambuilder-tracker/domain/refs"
	"github.com/soocke/teambuilder-tracker/domain/state"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("refgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		category = fs.String("category", "", "reference category, e.g. hero or map-standard")
		src      = fs.String("src", "", "directory of source images")
		out      = fs.String("out", "", "output file (generate) or directory (crop)")
		cutoff   = fs.Int("cutoff", 0, "binarize at this cutoff (1-255); 0 keeps gray values")
		crop     = fs.String("crop", "", "screenshot to cut classifier rectangles from")
		viewName = fs.String("view", state.ViewHeroSelect.String(), "view whose rectangles -crop cuts")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if *crop != "" {
		v, ok := state.ParseView(*viewName)
		if !ok {
			logger.Error("unknown view", "view", *viewName)
			return 2
		}
		dir := *out
		if dir == "" {
			dir = "."
		}
		n, err := Crop(*crop, v, dir)
		if err != nil {
			logger.Error("crop failed", "screenshot", *crop, "error", err)
			return 1
		}
		logger.Info("crops written", "view", v.String(), "files", n, "dir", dir)
		return 0
	}

	c := refs.Category(*category)
	name, ok := refs.DefaultFiles[c]
	if !ok {
		logger.Error("unknown category", "category", *category)
		return 2
	}
	if *src == "" {
		logger.Error("missing -src")
		return 2
	}
	if *cutoff < 0 || *cutoff > 255 {
		logger.Error("cutoff out of range", "cutoff", *cutoff)
		return 2
	}
	path := *out
	if path == "" {
		path = name
	}
	n, err := writeFile(path, *src, uint8(*cutoff))
	if err != nil {
		logger.Error("generate failed", "src", *src, "out", path, "error", err)
		return 1
	}
	logger.Info("references written", "category", string(c), "patterns", n, "out", path)
	return 0
}

func writeFile(path, src string, cutoff uint8) (n int, err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	n, err = Generate(f, src, cutoff)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
