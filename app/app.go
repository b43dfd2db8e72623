package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/teambuilder-tracker/bus"
	"github.com/soocke/teambuilder-tracker/debug"
	"github.com/soocke/teambuilder-tracker/domain/bridge"
	"github.com/soocke/teambuilder-tracker/domain/capture"
)

const (
	statsInterval      = time.Minute
	goroutineLogPeriod = 5 * time.Second
	memLogPeriod       = 10 * time.Second
)

// App runs one session on a built container.
type App struct {
	c      *Container
	logger *slog.Logger

	statsEvery time.Duration
}

// New returns an App for c.
func New(c *Container) *App {
	return &App{c: c, logger: c.Logger, statsEvery: statsInterval}
}

// Run serves sessionID until ctx is done, the bridge fails or the router
// connection is lost.
func (a *App) Run(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.c.Settings.DebugMode {
		debug.StartGoroutineLogger(ctx, goroutineLogPeriod, a.logger)
		debug.StartMemLogger(ctx, memLogPeriod, a.logger)
	}
	a.c.Bridge.AddListener(func(prev, next bridge.Status) {
		if prev.Phase != next.Phase {
			a.logger.Info("bridge phase", "from", prev.Phase.String(), "to", next.Phase.String(), "session_id", next.SessionID)
			return
		}
		a.logger.Debug("view changed", "from", prev.View.String(), "to", next.View.String())
	})

	errCh := make(chan error, 1)
	go func() { errCh <- a.c.Bridge.Run(ctx, sessionID) }()

	var lost <-chan struct{}
	ws, _ := a.c.Bus.(*bus.WSClient)
	if ws != nil {
		lost = ws.Done()
	}
	ticker := time.NewTicker(a.statsEvery)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			a.logSummary()
			return err
		case <-lost:
			cancel()
			<-errCh
			a.logSummary()
			cause := ws.Err()
			if cause == nil {
				cause = bus.ErrClosed
			}
			return fmt.Errorf("router connection lost: %w", cause)
		case <-ticker.C:
			a.logStats()
		}
	}
}

func (a *App) logStats() {
	if sess := a.c.Bridge.Session(); sess != nil {
		st := sess.Stats()
		a.logger.Info("session.stats",
			"cycles", st.Cycles,
			"published", st.Published,
			"capture_errors", st.CaptureErrors,
			"publish_errors", st.PublishErrors,
		)
	}
	if src, ok := a.c.Source.(interface{ Stats() capture.Stats }); ok {
		st := src.Stats()
		a.logger.Debug("capture.stats", "captures", st.Captures, "failures", st.Failures, "avg_capture", st.AvgCapture)
	}
}

func (a *App) logSummary() {
	session, total := a.c.Uptime.Values()
	a.logger.Info("session ended", "active", session.Round(time.Second), "total_active", total.Round(time.Second))
}

// IsShutdown reports whether err only signals a requested stop.
func IsShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
