// Package help renders the key binding overlay from markdown with glamour.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/theme"
)

// Model holds the bindings shown in the overlay and caches the last render.
type Model struct {
	Bindings []key.Binding
	Style    string // glamour standard style, "dark" when empty

	width    int
	rendered string
}

// New creates a help overlay for the given bindings.
func New(bindings ...key.Binding) Model {
	return Model{Bindings: bindings}
}

// Markdown returns the overlay source.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# mbdash\n\n")
	b.WriteString("Live view of a maubot server: entities on the left, the server log on the right.\n\n")
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, kb := range m.Bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\nLog lines show `time level name message`, followed by the entity link when the entry belongs to a client or instance.\n")
	return b.String()
}

// Render renders the markdown for width, reusing the cached output when the
// width has not changed.
func (m *Model) Render(width int) (string, error) {
	if m.rendered != "" && m.width == width {
		return m.rendered, nil
	}
	style := m.Style
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(m.Markdown())
	if err != nil {
		return "", err
	}
	m.width = width
	m.rendered = out
	return out, nil
}

// View renders the overlay panel. A glamour failure falls back to the raw
// markdown.
func (m *Model) View(width, height int) string {
	innerW := width - 8
	if innerW < 30 {
		innerW = 30
	}
	body, err := m.Render(innerW)
	if err != nil {
		body = m.Markdown()
	}
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	if max := height - 4; max > 0 && len(lines) > max {
		lines = lines[:max]
	}
	footer := theme.StyleDimmed.Render("esc:close")
	return lipgloss.NewStyle().
		Width(innerW+4).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), footer))
}
