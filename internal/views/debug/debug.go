// Package debug provides a scrollable overlay of log stream lifecycle events.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/theme"
)

const maxEntries = 200

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string // "conn", "auth", "wait", "err", "api"
	Message string
}

// Model holds debug log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
}

// New creates an empty debug model.
func New() Model {
	return Model{}
}

// Add appends a log entry and caps the buffer.
func (m *Model) Add(kind, message string) {
	m.add(Entry{Time: time.Now(), Kind: kind, Message: message})
}

// AddEvent records a log stream lifecycle event.
func (m *Model) AddEvent(e client.Event) {
	kind, msg := Describe(e)
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	m.add(Entry{Time: at, Kind: kind, Message: msg})
}

func (m *Model) add(e Entry) {
	m.Entries = append(m.Entries, e)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	// Reset scroll to bottom on new entry.
	m.Offset = 0
}

// Describe returns the debug kind and a one-line message for e.
func Describe(e client.Event) (kind, message string) {
	switch e.Kind {
	case client.EventScheduled:
		if e.Delay == 0 {
			return "wait", fmt.Sprintf("connecting now (failures=%d)", e.Failures)
		}
		return "wait", fmt.Sprintf("retrying in %s (failures=%d)", e.Delay, e.Failures)
	case client.EventConnecting:
		return "conn", "dialing"
	case client.EventConnected:
		return "conn", "connected, sending token"
	case client.EventAuthenticated:
		return "auth", "authenticated"
	case client.EventAuthFailed:
		if e.Code != 0 {
			return "err", fmt.Sprintf("authentication failed (close %d)", e.Code)
		}
		return "err", "authentication failed"
	case client.EventClosed:
		msg := "closed"
		if e.Code != 0 {
			msg += fmt.Sprintf(" (code %d)", e.Code)
		}
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return "conn", msg
	case client.EventMalformed:
		return "err", "malformed frame: " + errString(e.Err)
	default:
		return "?", e.Kind.String()
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
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

// panelStyle returns the shared border style for the debug overlay.
func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the debug log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 6
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := theme.StyleHeader.Render(" CONNECTION LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
		return panelStyle(innerW).Render(content)
	}

	end := len(m.Entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}

	var lines []string
	for i := start; i < end; i++ {
		e := m.Entries[i]
		tsStr := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kindStr := lipgloss.NewStyle().Foreground(kindToColor(e.Kind)).Width(4).Render(e.Kind)
		msgStr := e.Message
		if innerW > 23 {
			msgStr = theme.Truncate(msgStr, innerW-20)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", tsStr, kindStr, msgStr))
	}

	body := strings.Join(lines, "\n")
	scrollIndicator := ""
	if m.Offset > 0 {
		scrollIndicator = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body, scrollIndicator, help)
	return panelStyle(innerW).Render(content)
}

func kindToColor(kind string) lipgloss.Color {
	switch kind {
	case "conn":
		return theme.ColorInfo
	case "auth":
		return theme.ColorHealthy
	case "err":
		return theme.ColorDanger
	case "wait":
		return theme.ColorWarning
	case "api":
		return theme.ColorPending
	default:
		return theme.ColorDimmed
	}
}
