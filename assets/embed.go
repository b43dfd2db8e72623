package assets

import (
	_ "embed"
)

// DefaultSettingsJSON is the settings file written on first start.
//
//go:embed default_settings.json
var DefaultSettingsJSON []byte
