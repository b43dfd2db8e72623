package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"github.com/soocke/teambuilder-tracker/app"
	"github.com/soocke/teambuilder-tracker/config"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath = flag.String("config", "", "settings file (default: XDG config dir)")
		session = flag.String("session", "", "session id to join (default: settings or a new id)")
		replay  = flag.String("replay", "", "classify this screenshot instead of the screen")
		offline = flag.Bool("offline", false, "publish to an in-process bus instead of the router")
		router  = flag.String("router", "", "router websocket url")
		dbg     = flag.Bool("debug", false, "enable debug logging and region dumps")
	)
	flag.Parse()

	_ = godotenv.Load()

	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))
	path := *cfgPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			boot.Error("failed to resolve settings path", slog.Any("error", xerrors.New(err)))
			return 1
		}
		path = p
	}
	if created, err := config.EnsureFile(path); err != nil {
		boot.Warn("failed to write default settings", "path", path, slog.Any("error", xerrors.New(err)))
	} else if created {
		boot.Info("wrote default settings", "path", path)
	}
	settings, err := config.Load(path)
	if err != nil {
		boot.Warn("settings unreadable, using defaults", "path", path, slog.Any("error", xerrors.New(err)))
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		boot.Error("invalid environment override", slog.Any("error", xerrors.New(err)))
		return 2
	}
	if *router != "" {
		settings.RouterURL = *router
	}
	if *dbg {
		settings.DebugMode = true
	}
	if *session != "" {
		settings.SessionID = *session
	}
	if err := settings.Validate(); err != nil {
		boot.Error("invalid settings", slog.Any("error", xerrors.New(err)))
		return 2
	}

	level := slog.LevelInfo
	if settings.DebugMode {
		level = slog.LevelDebug
	}
	logger, closeLog, err := NewLogger(level, settings.LogFile)
	if err != nil {
		boot.Error("failed to open log file", "path", settings.LogFile, slog.Any("error", xerrors.New(err)))
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	sessionID := settings.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fmt.Fprintf(os.Stderr, "session id: %s\n", sessionID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.BuildContainer(ctx, settings, logger, app.Options{
		Version: version,
		Replay:  *replay,
		Offline: *offline,
	})
	if err != nil {
		logger.ErrorContext(ctx, "startup failed", slog.Any("error", xerrors.New(err)))
		return 1
	}
	defer c.Close()

	if err := app.New(c).Run(ctx, sessionID); !app.IsShutdown(err) {
		logger.ErrorContext(ctx, "tracker stopped", slog.Any("error", xerrors.New(err)))
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}
