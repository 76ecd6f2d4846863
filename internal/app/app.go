// Package app wires the log stream and the management API into the Bubble
// Tea root model.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/theme"
	"github.com/maubot-tools/mbdash/internal/views/debug"
	"github.com/maubot-tools/mbdash/internal/views/detail"
	"github.com/maubot-tools/mbdash/internal/views/entities"
	"github.com/maubot-tools/mbdash/internal/views/help"
	"github.com/maubot-tools/mbdash/internal/views/logview"
	"github.com/maubot-tools/mbdash/internal/views/status"
	"github.com/rs/zerolog"
)

const (
	tickInterval = time.Second
	fetchTimeout = 15 * time.Second
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayDebug
	OverlayHelp
)

// StreamStatus is the read side of client.LogStream the model polls.
type StreamStatus interface {
	Status() client.Status
	Failures() int
}

// API is the part of client.HTTPClient the dashboard uses.
type API interface {
	Ping(ctx context.Context) (string, error)
	Instances(ctx context.Context) ([]client.Instance, error)
	Clients(ctx context.Context) ([]client.Client, error)
	Plugins(ctx context.Context) ([]client.Plugin, error)
	AvatarURL(c client.Client) (string, error)
}

// Context is everything the dashboard needs, built once at startup.
type Context struct {
	Stream   StreamStatus
	API      API
	Inbox    *Inbox
	Debug    *DebugAccessor
	Server   string
	MaxLines int
	Logger   *zerolog.Logger
}

// EntitiesMsg is the result of fetching all entity lists.
type EntitiesMsg struct {
	Instances []client.Instance
	Clients   []client.Client
	Plugins   []client.Plugin
	Err       error
}

// WhoamiMsg is the result of the token ping.
type WhoamiMsg struct {
	Username string
	Err      error
}

type tickMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	actx   Context
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	keys   KeyMap
	width  int
	height int

	overlay Overlay

	// Sub-views.
	statusBar status.Model
	sidebar   entities.Model
	logs      logview.Model
	debugLog  debug.Model
	detail    detail.Model
	help      *help.Model
}

// New creates the root model.
func New(actx Context) Model {
	if actx.Debug == nil {
		actx.Debug = NewDebugAccessor()
	}
	logger := zerolog.Nop()
	if actx.Logger != nil {
		logger = *actx.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	keys := DefaultKeyMap()
	h := help.New(keys.Bindings()...)
	actx.Debug.Update(func(s *Snapshot) { s.Server = actx.Server })
	return Model{
		actx:      actx,
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.With().Str("component", "tui").Logger(),
		keys:      keys,
		statusBar: status.New(actx.Server),
		sidebar:   entities.New(),
		logs:      logview.New(actx.MaxLines),
		debugLog:  debug.New(),
		help:      &h,
	}
}

// Init starts draining the stream inbox and fetches the entity lists.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchEntities(), m.whoami(), tick()}
	if m.actx.Inbox != nil {
		cmds = append(cmds, m.actx.Inbox.Next())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.publish()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case HistoryMsg:
		m.logs.SetHistory(msg.Records)
		m.debugLog.Add("conn", "history replaced log buffer")
		return m, m.nextInbox()

	case LogMsg:
		m.logs.Append(msg.Record)
		return m, m.nextInbox()

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, m.nextInbox()

	case EntitiesMsg:
		if msg.Err != nil {
			m.sidebar.Err = msg.Err
			m.debugLog.Add("api", "fetch failed: "+msg.Err.Error())
			if errors.Is(msg.Err, client.ErrUnauthorized) {
				m.statusBar.AuthFailures = status.ReloginAfter
			}
			return m, nil
		}
		m.sidebar.Set(msg.Instances, msg.Clients, msg.Plugins)
		m.statusBar.SetCounts(len(msg.Instances), len(msg.Clients), len(msg.Plugins))
		m.debugLog.Add("api", "entities refreshed")
		return m, nil

	case WhoamiMsg:
		if msg.Err != nil {
			m.debugLog.Add("api", "ping failed: "+msg.Err.Error())
			return m, nil
		}
		m.statusBar.Username = msg.Username
		return m, nil

	case tickMsg:
		m.refreshStatus()
		return m, tick()
	}

	return m, nil
}

func (m *Model) handleEvent(e client.Event) {
	m.debugLog.AddEvent(e)
	m.actx.Debug.RecordEvent(e)
	switch e.Kind {
	case client.EventAuthenticated:
		m.statusBar.AuthFailures = 0
	case client.EventAuthFailed:
		m.statusBar.AuthFailures++
	}
	m.refreshStatus()
}

func (m *Model) refreshStatus() {
	if m.actx.Stream == nil {
		return
	}
	m.statusBar.Status = m.actx.Stream.Status()
	failures := m.actx.Stream.Failures()
	if failures < 0 {
		failures = 0
	}
	m.statusBar.Failures = failures
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDetail && key.Matches(msg, m.keys.Filter):
			m.toggleFilter()
			m.overlay = OverlayNone
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.logs.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logs.ScrollDown(1)
	case key.Matches(msg, m.keys.Bottom):
		m.logs.Offset = 0
	case key.Matches(msg, m.keys.Next):
		m.sidebar.Down()
	case key.Matches(msg, m.keys.Prev):
		m.sidebar.Up()
	case key.Matches(msg, m.keys.Tab):
		m.sidebar.NextSection()
	case key.Matches(msg, m.keys.Filter):
		m.toggleFilter()
	case key.Matches(msg, m.keys.Enter):
		if m.openDetail() {
			m.overlay = OverlayDetail
		}
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	case key.Matches(msg, m.keys.Refresh):
		m.debugLog.Add("api", "refetching entities")
		return m, m.fetchEntities()
	}
	return m, nil
}

func (m *Model) toggleFilter() {
	item, ok := m.sidebar.Current()
	name := item.LogName()
	if !ok || name == "" || m.logs.Filter == name {
		m.logs.Filter = ""
		return
	}
	m.logs.Filter = name
	m.logs.Offset = 0
}

// openDetail fills the detail overlay from the selected sidebar row.
func (m *Model) openDetail() bool {
	item, ok := m.sidebar.Current()
	if !ok {
		return false
	}
	d := detail.Model{}
	switch item.Section {
	case entities.SectionInstances:
		for i := range m.sidebar.Instances {
			if m.sidebar.Instances[i].ID == item.ID {
				d.Instance = &m.sidebar.Instances[i]
			}
		}
	case entities.SectionClients:
		for i := range m.sidebar.Clients {
			if string(m.sidebar.Clients[i].ID) == item.ID {
				c := m.sidebar.Clients[i]
				d.Client = &c
				if m.actx.API != nil {
					if u, err := m.actx.API.AvatarURL(c); err == nil {
						d.AvatarURL = u
					} else {
						m.log.Debug().Err(err).Str("client", item.ID).Msg("no avatar url")
					}
				}
			}
		}
	case entities.SectionPlugins:
		for i := range m.sidebar.Plugins {
			if m.sidebar.Plugins[i].ID == item.ID {
				d.Plugin = &m.sidebar.Plugins[i]
			}
		}
	}
	if name := item.LogName(); name != "" {
		for _, rec := range m.logs.Lines {
			if rec.Name == name {
				d.LogLines++
				if rec.Time.After(d.LastLog) {
					d.LastLog = rec.Time
				}
			}
		}
	}
	m.detail = d
	return true
}

func (m Model) publish() {
	items := func(s entities.Section) []string {
		var ids []string
		switch s {
		case entities.SectionInstances:
			for _, in := range m.sidebar.Instances {
				ids = append(ids, in.ID)
			}
		case entities.SectionClients:
			for _, c := range m.sidebar.Clients {
				ids = append(ids, string(c.ID))
			}
		case entities.SectionPlugins:
			for _, p := range m.sidebar.Plugins {
				ids = append(ids, p.ID)
			}
		}
		return ids
	}
	m.actx.Debug.Update(func(s *Snapshot) {
		s.Username = m.statusBar.Username
		s.Status = m.statusBar.Status
		s.Failures = m.statusBar.Failures
		s.Instances = items(entities.SectionInstances)
		s.Clients = items(entities.SectionClients)
		s.Plugins = items(entities.SectionPlugins)
		s.LogLines = len(m.logs.Lines)
	})
}

func (m Model) nextInbox() tea.Cmd {
	if m.actx.Inbox == nil {
		return nil
	}
	return m.actx.Inbox.Next()
}

func (m Model) fetchEntities() tea.Cmd {
	api := m.actx.API
	if api == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		var out EntitiesMsg
		var err error
		if out.Instances, err = api.Instances(ctx); err != nil {
			return EntitiesMsg{Err: err}
		}
		if out.Clients, err = api.Clients(ctx); err != nil {
			return EntitiesMsg{Err: err}
		}
		if out.Plugins, err = api.Plugins(ctx); err != nil {
			return EntitiesMsg{Err: err}
		}
		return out
	}
}

func (m Model) whoami() tea.Cmd {
	api := m.actx.API
	if api == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		user, err := api.Ping(ctx)
		return WhoamiMsg{Username: user, Err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	bodyH := m.height - 4
	if bodyH < 5 {
		bodyH = 5
	}

	var body string
	switch m.overlay {
	case OverlayDetail:
		body = m.detail.View()
	case OverlayDebug:
		body = m.debugLog.View(m.width, bodyH)
	case OverlayHelp:
		body = m.help.View(m.width, bodyH)
	default:
		body = m.renderMain(bodyH)
	}

	sections := []string{
		m.statusBar.View(),
		body,
		theme.StyleDimmed.Render("  j/k:scroll  n/p:select  tab:section  enter:detail  f:filter  r:refetch  d:debug  ?:help  q:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderMain(height int) string {
	sideW := m.width / 3
	if sideW < 28 {
		sideW = 28
	}
	if sideW > 48 {
		sideW = 48
	}
	logW := m.width - sideW - 2
	if logW < 20 {
		logW = 20
	}

	logPanel := m.logs.View(logW, height)
	if banner := m.disconnectBanner(); banner != "" {
		logPanel = lipgloss.JoinVertical(lipgloss.Left, banner, m.logs.View(logW, height-1))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(sideW, height), logPanel)
}

func (m Model) disconnectBanner() string {
	st := m.statusBar.Status
	if st.Connected || m.statusBar.Failures == 0 {
		return ""
	}
	return lipgloss.NewStyle().Foreground(theme.ColorDanger).Bold(true).Render(
		" DISCONNECTED · Reconnecting with backoff, " + pluralAttempts(m.statusBar.Failures))
}

func pluralAttempts(n int) string {
	if n == 1 {
		return "1 failed attempt"
	}
	return fmt.Sprintf("%d failed attempts", n)
}
