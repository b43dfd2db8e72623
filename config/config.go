package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/soocke/teambuilder-tracker/assets"
)

// Frame geometry of a single 1080p display. StartPixel shifts it right to
// select a monitor on a horizontally extended desktop.
const (
	FrameWidth  = 1920
	FrameHeight = 1080
)

// Rect is a capture rectangle in screen coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Intervals holds the per-view poll intervals in milliseconds.
type Intervals struct {
	HeroSelect int `json:"hero_select"`
	Tab        int `json:"tab"`
	InGame     int `json:"in_game"`
	Unknown    int `json:"unknown"`
}

// Settings holds runtime configuration for the tracker.
// Fields may be loaded from a JSON file and overridden by environment
// variables and command-line flags.
type Settings struct {
	Version     string `json:"version"`
	DebugMode   bool   `json:"debug_mode"`
	StartPixel  int    `json:"start_pixel"`
	CaptureRect *Rect  `json:"capture_rect,omitempty"`
	DefaultMap  string `json:"default_map"`
	DefaultSide string `json:"default_side"`

	// Session and transport
	SessionID        string `json:"session_id"`
	RouterURL        string `json:"router_url"`
	HandshakeDelayMS int    `json:"handshake_delay_ms"`

	// Files
	ReferenceDir string `json:"reference_dir"`
	DebugDir     string `json:"debug_dir"`
	LogFile      string `json:"log_file"`

	Intervals  Intervals          `json:"intervals_ms"`
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
}

// Environment variables that override file values.
const (
	EnvRouterURL    = "TEAMBUILDER_ROUTER_URL"
	EnvReferenceDir = "TEAMBUILDER_REFERENCE_DIR"
	EnvDebug        = "TEAMBUILDER_DEBUG"
	EnvStartPixel   = "TEAMBUILDER_START_PIXEL"
	EnvSessionID    = "TEAMBUILDER_SESSION_ID"
)

const minIntervalMS = 50

// DefaultSettings returns Settings populated with standard defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Version:          "1.0",
		RouterURL:        "ws://127.0.0.1:8080/ws",
		HandshakeDelayMS: 500,
		ReferenceDir:     "Reference",
		DebugDir:         "debug",
		Intervals: Intervals{
			HeroSelect: 500,
			Tab:        1000,
			InGame:     1000,
			Unknown:    2000,
		},
	}
}

// Validate clamps/normalizes values to safe ranges. It fails only on values
// that cannot be repaired.
func (s *Settings) Validate() error {
	def := DefaultSettings()
	if s.Version == "" {
		s.Version = def.Version
	}
	if s.RouterURL == "" {
		s.RouterURL = def.RouterURL
	}
	if s.ReferenceDir == "" {
		s.ReferenceDir = def.ReferenceDir
	}
	if s.DebugDir == "" {
		s.DebugDir = def.DebugDir
	}
	if s.HandshakeDelayMS < 0 {
		s.HandshakeDelayMS = def.HandshakeDelayMS
	}
	clamp := func(v *int, fallback int) {
		if *v <= 0 {
			*v = fallback
		} else if *v < minIntervalMS {
			*v = minIntervalMS
		}
	}
	clamp(&s.Intervals.HeroSelect, def.Intervals.HeroSelect)
	clamp(&s.Intervals.Tab, def.Intervals.Tab)
	clamp(&s.Intervals.InGame, def.Intervals.InGame)
	clamp(&s.Intervals.Unknown, def.Intervals.Unknown)
	if r := s.CaptureRect; r != nil && (r.W <= 0 || r.H <= 0) {
		s.CaptureRect = nil
	}
	for name, th := range s.Thresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("threshold for %s out of range: %v", name, th)
		}
	}
	return nil
}

// Rect returns the capture rectangle: CaptureRect when set, otherwise one
// 1920x1080 frame starting StartPixel pixels from the left edge.
func (s *Settings) Rect() image.Rectangle {
	if r := s.CaptureRect; r != nil {
		return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
	}
	return image.Rect(s.StartPixel, 0, s.StartPixel+FrameWidth, FrameHeight)
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// HandshakeDelay returns the configured pause after the greeting.
func (s *Settings) HandshakeDelay() time.Duration { return Millis(s.HandshakeDelayMS) }

// ApplyEnv overrides fields from environment variables read through lookup,
// typically os.LookupEnv.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRouterURL); ok && v != "" {
		s.RouterURL = v
	}
	if v, ok := lookup(EnvReferenceDir); ok && v != "" {
		s.ReferenceDir = v
	}
	if v, ok := lookup(EnvSessionID); ok && v != "" {
		s.SessionID = v
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		s.DebugMode = b
	}
	if v, ok := lookup(EnvStartPixel); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStartPixel, err)
		}
		s.StartPixel = n
	}
	return nil
}

// DefaultPath returns the settings file location under the user's XDG config
// directory, creating the directory if needed.
func DefaultPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("teambuilder-tracker", "settings.json"))
}

// EnsureFile writes the embedded default settings to path if no file exists
// there yet. It reports whether a file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}
	if err := os.WriteFile(path, assets.DefaultSettingsJSON, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// Load attempts to read settings from the given JSON file path. If the file does not
// exist it returns DefaultSettings(). On JSON error it returns defaults with the error.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		return DefaultSettings(), fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return DefaultSettings(), fmt.Errorf("validate %s: %w", path, err)
	}
	return s, nil
}

// Save writes the settings to the given path in JSON format.
func (s *Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
