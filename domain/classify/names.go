package classify

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/soocke/teambuilder-tracker/domain/state"
)

// BaseName strips a "~variant" suffix. Several reference patterns may share a
// base name, e.g. "hanamura~dark" and "hanamura".
func BaseName(name string) string {
	if i := strings.IndexByte(name, '~'); i >= 0 {
		return name[:i]
	}
	return name
}

// DisplayName turns a reference name into its published form:
// "hanamura" -> "Hanamura", "kings_row" -> "Kings Row".
func DisplayName(name string) string {
	base := strings.ReplaceAll(BaseName(name), "_", " ")
	// Casers carry state and are not shared between goroutines.
	return cases.Title(language.English).String(base)
}

// modeForGameType maps a game-type reference name to its mode family.
func modeForGameType(name string) state.Mode {
	switch strings.ToLower(BaseName(name)) {
	case "assault", "escort":
		return state.ModeStandard
	case "control":
		return state.ModeControl
	case "arena":
		return state.ModeArena
	case "hybrid":
		return state.ModeHybrid
	default:
		return state.ModeUnknown
	}
}

// trailingInt parses the number at the end of a pattern name, after the last
// underscore: "progress_66" -> 66, "7" -> 7.
func trailingInt(name string) (int, bool) {
	base := BaseName(name)
	if i := strings.LastIndexByte(base, '_'); i >= 0 {
		base = base[i+1:]
	}
	n, err := strconv.Atoi(base)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
