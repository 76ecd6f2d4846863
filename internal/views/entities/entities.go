// Package entities renders the instance/client/plugin sidebar.
package entities

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/theme"
)

// Section is one sidebar list.
type Section int

const (
	SectionInstances Section = iota
	SectionClients
	SectionPlugins
	sectionCount
)

func (s Section) String() string {
	switch s {
	case SectionInstances:
		return "Instances"
	case SectionClients:
		return "Clients"
	case SectionPlugins:
		return "Plugins"
	default:
		return "?"
	}
}

// Item is one selectable sidebar row.
type Item struct {
	Section Section
	ID      string
	Label   string
	Enabled bool
	Started bool
}

// LogName is the normalized log name entries about this item carry, or ""
// when plugins have no log name of their own.
func (it Item) LogName() string {
	switch it.Section {
	case SectionInstances:
		return "instance." + it.ID
	case SectionClients:
		return it.ID
	default:
		return ""
	}
}

// Model holds the sidebar state.
type Model struct {
	Instances []client.Instance
	Clients   []client.Client
	Plugins   []client.Plugin
	Err       error
	Loaded    bool

	Section  Section
	Selected int
}

// New creates an empty sidebar.
func New() Model {
	return Model{}
}

// Set replaces all three lists, sorted by ID.
func (m *Model) Set(instances []client.Instance, clients []client.Client, plugins []client.Plugin) {
	m.Instances = append([]client.Instance(nil), instances...)
	m.Clients = append([]client.Client(nil), clients...)
	m.Plugins = append([]client.Plugin(nil), plugins...)
	sort.Slice(m.Instances, func(i, j int) bool { return m.Instances[i].ID < m.Instances[j].ID })
	sort.Slice(m.Clients, func(i, j int) bool { return m.Clients[i].ID < m.Clients[j].ID })
	sort.Slice(m.Plugins, func(i, j int) bool { return m.Plugins[i].ID < m.Plugins[j].ID })
	m.Err = nil
	m.Loaded = true
	m.clamp()
}

// Items returns the rows of the active section.
func (m Model) Items() []Item {
	return m.items(m.Section)
}

func (m Model) items(s Section) []Item {
	var out []Item
	switch s {
	case SectionInstances:
		for _, in := range m.Instances {
			out = append(out, Item{Section: s, ID: in.ID, Label: in.ID + " (" + in.Type + ")", Enabled: in.Enabled, Started: in.Started})
		}
	case SectionClients:
		for _, c := range m.Clients {
			label := string(c.ID)
			if c.DisplayName != "" {
				label = c.DisplayName + " " + label
			}
			out = append(out, Item{Section: s, ID: string(c.ID), Label: label, Enabled: c.Enabled, Started: c.Started})
		}
	case SectionPlugins:
		for _, p := range m.Plugins {
			out = append(out, Item{Section: s, ID: p.ID, Label: p.ID + " v" + p.Version, Enabled: true, Started: len(p.Instances) > 0})
		}
	}
	return out
}

// Current returns the selected row.
func (m Model) Current() (Item, bool) {
	items := m.Items()
	if m.Selected < 0 || m.Selected >= len(items) {
		return Item{}, false
	}
	return items[m.Selected], true
}

// NextSection cycles to the next list.
func (m *Model) NextSection() {
	m.Section = (m.Section + 1) % sectionCount
	m.Selected = 0
}

// Down moves the selection down, wrapping.
func (m *Model) Down() {
	if n := len(m.Items()); n > 0 {
		m.Selected = (m.Selected + 1) % n
	}
}

// Up moves the selection up, wrapping.
func (m *Model) Up() {
	if n := len(m.Items()); n > 0 {
		m.Selected = (m.Selected - 1 + n) % n
	}
}

func (m *Model) clamp() {
	n := len(m.Items())
	if m.Selected >= n {
		m.Selected = n - 1
	}
	if m.Selected < 0 {
		m.Selected = 0
	}
}

// View renders the sidebar.
func (m Model) View(width, height int) string {
	innerW := width - 2
	if innerW < 16 {
		innerW = 16
	}

	var tabs []string
	for s := Section(0); s < sectionCount; s++ {
		label := s.String()
		if s == m.Section {
			tabs = append(tabs, theme.StyleSelected.Render("["+label+"]"))
		} else {
			tabs = append(tabs, theme.StyleDimmed.Render(label))
		}
	}
	lines := []string{strings.Join(tabs, " ")}

	switch {
	case m.Err != nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(theme.Truncate(m.Err.Error(), innerW)))
	case !m.Loaded:
		lines = append(lines, theme.StyleDimmed.Render("  Loading..."))
	}

	items := m.Items()
	if m.Loaded && len(items) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  None"))
	}
	for i, it := range items {
		if height > 0 && len(lines) >= height-2 {
			break
		}
		prefix := "  "
		label := theme.Truncate(it.Label, innerW-4)
		if i == m.Selected {
			prefix = "> "
			label = theme.StyleSelected.Render(label)
		}
		lines = append(lines, prefix+theme.StateGlyph(it.Enabled, it.Started)+" "+label)
	}

	return theme.StyleBorder.Width(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
