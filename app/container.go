package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/teambuilder-tracker/bus"
	"github.com/soocke/teambuilder-tracker/config"
	"github.com/soocke/teambuilder-tracker/debug"
	"github.com/soocke/teambuilder-tracker/domain/bridge"
	"github.com/soocke/teambuilder-tracker/domain/capture"
	"github.com/soocke/teambuilder-tracker/domain/classify"
	"github.com/soocke/teambuilder-tracker/domain/refs"
)

// Options select the runtime variants of the container.
type Options struct {
	// Version is reported to the router.
	Version string
	// Replay serves captures from this screenshot instead of the screen.
	Replay string
	// Offline publishes to an in-process bus instead of dialing the router.
	Offline bool
	// Bus, when set, is used as is and never closed by the container.
	Bus bus.Bus
}

// Container assembles the reference library, classifier, capture source, bus
// and bridge.
type Container struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Library  *refs.Library
	Engine   *classify.Engine
	Source   capture.Source
	Bus      bus.Bus
	Bridge   *bridge.Bridge
	Uptime   *Uptime

	closers []func() error
}

// BuildContainer constructs all components. Reference or configuration
// errors are fatal; nothing is left open when an error is returned.
func BuildContainer(ctx context.Context, s *config.Settings, logger *slog.Logger, opts Options) (_ *Container, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Settings: s, Logger: logger, Uptime: &Uptime{}}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Library, err = refs.LoadDir(s.ReferenceDir)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	for _, cat := range c.Library.Categories() {
		logger.Debug("references loaded", "category", string(cat), "patterns", c.Library.Len(cat), "file", c.Library.Source(cat))
	}

	table, err := classify.DefaultTable().WithThresholds(s.Thresholds)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(classify.CaptureSize); err != nil {
		return nil, err
	}
	if r := s.Rect(); r.Dx() != classify.CaptureSize.Dx() || r.Dy() != classify.CaptureSize.Dy() {
		logger.Warn("capture rect differs from the classifier layout", "rect", r.String(), "layout", classify.CaptureSize.String())
	}
	c.Engine = classify.NewEngine(c.Library, table, logger)
	if s.DebugMode {
		d, err := debug.NewRegionDumper(s.DebugDir, logger)
		if err != nil {
			return nil, err
		}
		c.Engine.SetDumper(d)
	}

	if opts.Replay != "" {
		src, err := capture.OpenStaticSource(opts.Replay)
		if err != nil {
			return nil, err
		}
		c.Source = src
		logger.Info("replaying screenshot", "path", opts.Replay)
	} else {
		c.Source = capture.NewScreenSource(logger)
	}

	switch {
	case opts.Bus != nil:
		c.Bus = opts.Bus
	case opts.Offline:
		mem := bus.NewMemory()
		c.Bus = mem.Client()
		c.closers = append(c.closers, func() error { mem.Close(); return nil })
	default:
		ws, err := bus.Dial(ctx, s.RouterURL, opts.Version, logger)
		if err != nil {
			return nil, err
		}
		c.Bus = ws
		c.closers = append(c.closers, ws.Close)
	}

	c.Bridge = bridge.New(bridge.Config{
		Rect:           s.Rect(),
		Intervals:      intervals(s.Intervals),
		HandshakeDelay: s.HandshakeDelay(),
		DefaultMap:     s.DefaultMap,
		DefaultSide:    s.DefaultSide,
	}, c.Source, c.Engine, c.Bus, logger)
	c.Bridge.AddListener(c.Uptime.Listener(time.Now))
	return c, nil
}

// Close releases the bus connection. It is safe to call more than once.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func intervals(iv config.Intervals) bridge.Intervals {
	return bridge.Intervals{
		HeroSelect: config.Millis(iv.HeroSelect),
		Tab:        config.Millis(iv.Tab),
		InGame:     config.Millis(iv.InGame),
		Unknown:    config.Millis(iv.Unknown),
	}
}
