// Package status renders the connection status bar.
package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/theme"
)

// ReloginAfter is how many auth failures in a row make the bar show the
// re-login hint.
const ReloginAfter = 2

// Model holds the status bar state.
type Model struct {
	Server    string
	Username  string
	Status    client.Status
	Failures  int
	Instances int
	Clients   int
	Plugins   int
	Lines     int
	Width     int

	// AuthFailures counts auth failures since the last successful
	// authentication.
	AuthFailures int
}

// New creates a status bar model.
func New(server string) Model {
	return Model{Server: server}
}

// SetCounts updates the entity counts.
func (m *Model) SetCounts(instances, clients, plugins int) {
	m.Instances = instances
	m.Clients = clients
	m.Plugins = plugins
}

// NeedsRelogin reports whether the token has been rejected repeatedly.
func (m Model) NeedsRelogin() bool {
	return m.AuthFailures >= ReloginAfter
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Status.Authenticated:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	case m.Status.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorPending).Render("◎ Authenticating...")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr
	if m.Failures > 0 {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("%d failed attempts", m.Failures))
	}
	if m.NeedsRelogin() {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDanger).Bold(true).Render(
			"re-login required: check your token")
	}

	counts := fmt.Sprintf("%d instances  %d clients  %d plugins  %d lines",
		m.Instances, m.Clients, m.Plugins, m.Lines)
	content += sep + counts

	who := m.Server
	if m.Username != "" {
		who = m.Username + "@" + m.Server
	}
	if who != "" {
		content += sep + theme.StyleDimmed.Render(who)
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
