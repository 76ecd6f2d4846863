// Package logview renders the scrolling server log panel.
package logview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/theme"
)

// DefaultMaxLines caps the buffer when New is given a non-positive limit.
const DefaultMaxLines = 1000

// Model holds the log buffer and scroll position.
type Model struct {
	Lines  []client.LogRecord
	Max    int
	Offset int // scroll offset (from bottom)
	Filter string
}

// New creates an empty log view that keeps at most max lines.
func New(max int) Model {
	if max <= 0 {
		max = DefaultMaxLines
	}
	return Model{Max: max}
}

// SetHistory replaces the buffer with a server history batch.
func (m *Model) SetHistory(records []client.LogRecord) {
	m.Lines = append(m.Lines[:0:0], records...)
	m.trim()
	m.Offset = 0
}

// Append adds a live entry. A scrolled-back view stays on the same lines.
func (m *Model) Append(rec client.LogRecord) {
	m.Lines = append(m.Lines, rec)
	if m.Offset > 0 {
		m.Offset++
	}
	m.trim()
}

func (m *Model) trim() {
	if len(m.Lines) > m.Max {
		m.Lines = m.Lines[len(m.Lines)-m.Max:]
	}
	if max := m.maxOffset(); m.Offset > max {
		m.Offset = max
	}
}

func (m Model) maxOffset() int {
	if len(m.Lines) == 0 {
		return 0
	}
	return len(m.Lines) - 1
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	if max := m.maxOffset(); m.Offset > max {
		m.Offset = max
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// visible returns the lines that pass the name filter.
func (m Model) visible() []client.LogRecord {
	if m.Filter == "" {
		return m.Lines
	}
	out := make([]client.LogRecord, 0, len(m.Lines))
	for _, l := range m.Lines {
		if l.Name == m.Filter || strings.HasPrefix(l.Name, m.Filter+".") {
			out = append(out, l)
		}
	}
	return out
}

// View renders the log panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 3
	if visibleLines < 1 {
		visibleLines = 1
	}

	title := theme.StyleHeader.Render(" LOGS ")
	if m.Filter != "" {
		title += theme.StyleDimmed.Render(" filter: " + m.Filter)
	}

	lines := m.visible()
	if len(lines) == 0 {
		body := theme.StyleDimmed.Render("  Waiting for log entries...")
		return theme.StyleBorder.Width(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	end := len(lines) - m.Offset
	if end < 0 {
		end = 0
	}
	start := end - visibleLines
	if start < 0 {
		start = 0
	}

	rendered := make([]string, 0, end-start)
	for _, rec := range lines[start:end] {
		rendered = append(rendered, FormatLine(rec, innerW))
	}

	footer := ""
	if m.Offset > 0 {
		footer = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rendered, "\n"), footer)
	return theme.StyleBorder.Width(innerW).Render(content)
}

// FormatLine renders one log record as "time level name message [link]",
// truncated to width.
func FormatLine(rec client.LogRecord, width int) string {
	ts := "--:--:--"
	if !rec.Time.IsZero() {
		ts = rec.Time.Format("15:04:05")
	}
	name := lipgloss.NewStyle().Foreground(nameColor(rec)).Render(theme.Truncate(rec.Name, 24))
	used := len(ts) + 1 + 5 + 1 + lipgloss.Width(name) + 1

	msg := rec.Message
	if rec.NameLink != "" {
		msg += " " + rec.NameLink
	}
	if room := width - used; room > 3 {
		msg = theme.Truncate(msg, room)
	}
	return fmt.Sprintf("%s %s %s %s", theme.StyleDimmed.Render(ts), theme.LevelBadge(rec.Level), name, msg)
}

func nameColor(rec client.LogRecord) lipgloss.Color {
	switch {
	case strings.HasPrefix(rec.NameLink, "/client/"):
		return theme.ColorClient
	case strings.HasPrefix(rec.NameLink, "/instance/"):
		return theme.ColorInstance
	default:
		return theme.ColorDefault
	}
}
