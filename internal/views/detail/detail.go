// Package detail renders the entity info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/theme"
)

const (
	panelWidth = 64
	labelWidth = 14
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the state for the detail overlay. Exactly one of Instance,
// Client or Plugin is set.
type Model struct {
	Instance *client.Instance
	Client   *client.Client
	Plugin   *client.Plugin

	AvatarURL string
	LogLines  int
	LastLog   time.Time
}

// View renders the detail panel. Returns an empty string if nothing is set.
func (m Model) View() string {
	var inner string
	switch {
	case m.Instance != nil:
		inner = m.renderInstance(m.Instance)
	case m.Client != nil:
		inner = m.renderClient(m.Client)
	case m.Plugin != nil:
		inner = m.renderPlugin(m.Plugin)
	default:
		return ""
	}
	return stylePanel.Width(panelWidth).Render(inner)
}

func (m Model) renderInstance(in *client.Instance) string {
	var b strings.Builder
	writeTitle(&b, "Instance: "+in.ID, theme.ColorInstance)
	writeRow(&b, "Type", in.Type)
	writeRow(&b, "State", state(in.Enabled, in.Started))
	writeRow(&b, "Primary User", string(in.PrimaryUser))
	writeRow(&b, "Database", yesNo(in.Database))
	if in.Config != "" {
		lines := strings.Count(strings.TrimRight(in.Config, "\n"), "\n") + 1
		writeRow(&b, "Config", fmt.Sprintf("%d lines", lines))
	}
	m.writeLogRows(&b)
	b.WriteString("\n" + styleFooter.Render("[f] filter logs  [esc] close"))
	return b.String()
}

func (m Model) renderClient(c *client.Client) string {
	var b strings.Builder
	title := string(c.ID)
	if c.DisplayName != "" {
		title = c.DisplayName + " (" + title + ")"
	}
	writeTitle(&b, "Client: "+title, theme.ColorClient)
	writeRow(&b, "Homeserver", c.Homeserver)
	writeRow(&b, "Device", string(c.DeviceID))
	writeRow(&b, "State", state(c.Enabled, c.Started))
	writeRow(&b, "Sync", yesNo(c.Sync))
	writeRow(&b, "Autojoin", yesNo(c.AutoJoin))
	if m.AvatarURL != "" {
		writeRow(&b, "Avatar", theme.Truncate(m.AvatarURL, panelWidth-labelWidth-4))
	}
	if len(c.Instances) > 0 {
		writeRow(&b, "Instances", strings.Join(instanceIDs(c.Instances), ", "))
	}
	m.writeLogRows(&b)
	b.WriteString("\n" + styleFooter.Render("[f] filter logs  [esc] close"))
	return b.String()
}

func (m Model) renderPlugin(p *client.Plugin) string {
	var b strings.Builder
	writeTitle(&b, "Plugin: "+p.ID, theme.ColorPlugin)
	writeRow(&b, "Version", p.Version)
	writeRow(&b, "Main Class", p.MainClass)
	writeRow(&b, "Modules", strings.Join(p.Modules, ", "))
	writeRow(&b, "Database", yesNo(p.Database))
	if len(p.Instances) > 0 {
		writeRow(&b, "Instances", strings.Join(instanceIDs(p.Instances), ", "))
	} else {
		writeRow(&b, "Instances", "none")
	}
	b.WriteString("\n" + styleFooter.Render("[esc] close"))
	return b.String()
}

func (m Model) writeLogRows(b *strings.Builder) {
	b.WriteString("\n")
	writeRow(b, "Log Lines", fmt.Sprintf("%d", m.LogLines))
	if !m.LastLog.IsZero() {
		writeRow(b, "Last Log", formatAge(m.LastLog))
	}
}

func instanceIDs(instances []client.Instance) []string {
	ids := make([]string, 0, len(instances))
	for _, in := range instances {
		ids = append(ids, in.ID)
	}
	return ids
}

func writeTitle(b *strings.Builder, title string, color lipgloss.Color) {
	b.WriteString(styleTitle.Foreground(color).Render(theme.Truncate(title, panelWidth-4)) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")
}

func writeRow(b *strings.Builder, label, value string) {
	if value == "" {
		value = "-"
	}
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

func state(enabled, started bool) string {
	switch {
	case !enabled:
		return theme.StateGlyph(enabled, started) + " disabled"
	case started:
		return theme.StateGlyph(enabled, started) + " running"
	default:
		return theme.StateGlyph(enabled, started) + " stopped"
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm ago", h, m)
	}
}
