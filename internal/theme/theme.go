// Package theme provides the Lip Gloss color palette and reusable styles
// for the mbdash TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Log level colors.
var (
	ColorDebug    = lipgloss.Color("#6b7280")
	ColorInfo     = lipgloss.Color("#3b82f6")
	ColorWarn     = lipgloss.Color("#d97706")
	ColorError    = lipgloss.Color("#dc2626")
	ColorCritical = lipgloss.Color("#a855f7")
	ColorDefault  = lipgloss.Color("#9ca3af")
)

// Entity kind colors.
var (
	ColorInstance = lipgloss.Color("#06b6d4")
	ColorClient   = lipgloss.Color("#22c55e")
	ColorPlugin   = lipgloss.Color("#f59e0b")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorPending = lipgloss.Color("#7c3aed")
)

// LevelColor returns the color for a log level name such as "WARNING".
func LevelColor(level string) lipgloss.Color {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return ColorDebug
	case "INFO":
		return ColorInfo
	case "WARN", "WARNING":
		return ColorWarn
	case "ERROR":
		return ColorError
	case "CRITICAL", "FATAL":
		return ColorCritical
	default:
		return ColorDefault
	}
}

// LevelBadge returns a fixed-width colored level tag.
func LevelBadge(level string) string {
	tag := strings.ToUpper(level)
	if tag == "WARNING" {
		tag = "WARN"
	}
	if len(tag) > 5 {
		tag = tag[:5]
	}
	return lipgloss.NewStyle().Foreground(LevelColor(level)).Width(5).Render(tag)
}

// StateGlyph returns a glyph for an entity's enabled/started flags.
func StateGlyph(enabled, started bool) string {
	switch {
	case !enabled:
		return lipgloss.NewStyle().Foreground(ColorDimmed).Render("○")
	case started:
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("●")
	default:
		return lipgloss.NewStyle().Foreground(ColorWarning).Render("◌")
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleLink = lipgloss.NewStyle().
			Foreground(ColorInstance).
			Underline(true)
)

// Truncate shortens s to max runes, ending in "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
