package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/maubot-tools/mbdash/internal/client"
)

type fakeStream struct {
	status   client.Status
	failures int
}

func (f *fakeStream) Status() client.Status { return f.status }
func (f *fakeStream) Failures() int         { return f.failures }

type fakeAPI struct {
	instances []client.Instance
	clients   []client.Client
	plugins   []client.Plugin
	err       error
}

func (f *fakeAPI) Ping(context.Context) (string, error) { return "admin", f.err }
func (f *fakeAPI) Instances(context.Context) ([]client.Instance, error) {
	return f.instances, f.err
}
func (f *fakeAPI) Clients(context.Context) ([]client.Client, error) { return f.clients, f.err }
func (f *fakeAPI) Plugins(context.Context) ([]client.Plugin, error) { return f.plugins, f.err }
func (f *fakeAPI) AvatarURL(c client.Client) (string, error) {
	return "https://example.com/avatar/" + string(c.ID), nil
}

func newTestModel(stream *fakeStream, api *fakeAPI) Model {
	m := New(Context{Stream: stream, API: api, Server: "localhost:29316", MaxLines: 100})
	m.width = 120
	m.height = 30
	m.statusBar.Width = 120
	return m
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDisconnectOverlay(t *testing.T) {
	stream := &fakeStream{failures: 2}
	m := newTestModel(stream, nil)
	m = step(t, m, EventMsg{Event: client.Event{Kind: client.EventClosed}})

	v := m.View()
	if !strings.Contains(v, "DISCONNECTED") {
		t.Error("disconnect overlay should contain 'DISCONNECTED'")
	}
	if !strings.Contains(v, "Reconnecting") {
		t.Error("disconnect overlay should contain 'Reconnecting'")
	}

	stream.status = client.Status{Connected: true, Authenticated: true}
	stream.failures = 0
	m = step(t, m, EventMsg{Event: client.Event{Kind: client.EventAuthenticated}})
	if strings.Contains(m.View(), "DISCONNECTED") {
		t.Error("banner should clear once authenticated")
	}
}

func TestHistoryThenLive(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)
	m = step(t, m, LogMsg{Record: client.LogRecord{Message: "stale"}})
	m = step(t, m, HistoryMsg{Records: []client.LogRecord{{Message: "h1"}, {Message: "h2"}}})
	m = step(t, m, LogMsg{Record: client.LogRecord{Message: "live"}})

	var got []string
	for _, l := range m.logs.Lines {
		got = append(got, l.Message)
	}
	if strings.Join(got, ",") != "h1,h2,live" {
		t.Errorf("log buffer = %v, want [h1 h2 live]", got)
	}
	if snap := m.actx.Debug.Snapshot(); snap.LogLines != 3 {
		t.Errorf("snapshot LogLines = %d, want 3", snap.LogLines)
	}
}

func TestMaxLinesCap(t *testing.T) {
	m := New(Context{MaxLines: 3})
	for i := 0; i < 5; i++ {
		m = step(t, m, LogMsg{Record: client.LogRecord{Message: fmt.Sprint(i)}})
	}
	if len(m.logs.Lines) != 3 || m.logs.Lines[0].Message != "2" {
		t.Errorf("expected the newest 3 lines, got %+v", m.logs.Lines)
	}
}

func TestReloginHint(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)
	for i := 0; i < 2; i++ {
		m = step(t, m, EventMsg{Event: client.Event{Kind: client.EventAuthFailed, Code: client.CloseInvalidToken}})
	}
	if !m.statusBar.NeedsRelogin() {
		t.Fatal("two auth failures should ask for a re-login")
	}
	if !strings.Contains(m.View(), "re-login") {
		t.Error("view should show the re-login hint")
	}

	m = step(t, m, EventMsg{Event: client.Event{Kind: client.EventAuthenticated}})
	if m.statusBar.NeedsRelogin() {
		t.Error("authentication should clear the re-login hint")
	}
}

func TestUnauthorizedFetch(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)
	err := &client.APIError{Method: "GET", Path: "/instances", StatusCode: 401}
	m = step(t, m, EntitiesMsg{Err: err})
	if !m.statusBar.NeedsRelogin() {
		t.Error("a 401 from the API should ask for a re-login")
	}
	if m.sidebar.Err == nil {
		t.Error("sidebar should show the fetch error")
	}
}

func TestFetchEntities(t *testing.T) {
	api := &fakeAPI{
		instances: []client.Instance{{ID: "echo"}},
		clients:   []client.Client{{ID: "@bot:example.com"}},
		plugins:   []client.Plugin{{ID: "xyz.maubot.echo"}},
	}
	m := newTestModel(&fakeStream{}, api)

	msg, ok := m.fetchEntities()().(EntitiesMsg)
	if !ok {
		t.Fatal("fetchEntities should produce EntitiesMsg")
	}
	if msg.Err != nil {
		t.Fatalf("unexpected error: %v", msg.Err)
	}

	m = step(t, m, msg)
	if m.statusBar.Instances != 1 || m.statusBar.Clients != 1 || m.statusBar.Plugins != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", m.statusBar.Instances, m.statusBar.Clients, m.statusBar.Plugins)
	}
	snap := m.actx.Debug.Snapshot()
	if len(snap.Instances) != 1 || snap.Instances[0] != "echo" {
		t.Errorf("snapshot instances = %v", snap.Instances)
	}
	if len(snap.Clients) != 1 || snap.Clients[0] != "@bot:example.com" {
		t.Errorf("snapshot clients = %v", snap.Clients)
	}
}

func TestWhoami(t *testing.T) {
	m := newTestModel(&fakeStream{}, &fakeAPI{})
	m = step(t, m, m.whoami()())
	if m.statusBar.Username != "admin" {
		t.Errorf("Username = %q, want admin", m.statusBar.Username)
	}
	if snap := m.actx.Debug.Snapshot(); snap.Username != "admin" {
		t.Errorf("snapshot Username = %q, want admin", snap.Username)
	}
}

func TestOverlayKeys(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)

	m = step(t, m, keyRunes("?"))
	if m.overlay != OverlayHelp {
		t.Fatalf("? should open help, overlay = %d", m.overlay)
	}
	m = step(t, m, keyRunes("d"))
	if m.overlay != OverlayHelp {
		t.Error("keys other than esc should not switch overlays")
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Fatal("esc should close the overlay")
	}
	m = step(t, m, keyRunes("d"))
	if m.overlay != OverlayDebug {
		t.Error("d should open the connection log")
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)
	_, cmd := m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if m.ctx.Err() == nil {
		t.Error("quitting should cancel in-flight requests")
	}
}

func TestDetailAndFilter(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)
	m = step(t, m, EntitiesMsg{
		Instances: []client.Instance{{ID: "echo", Type: "xyz.maubot.echo"}},
		Clients:   []client.Client{{ID: "@bot:example.com"}},
	})
	at := time.UnixMilli(5000)
	m = step(t, m, LogMsg{Record: client.LogRecord{Name: "instance.echo", Time: at}})
	m = step(t, m, LogMsg{Record: client.LogRecord{Name: "@bot:example.com"}})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != OverlayDetail {
		t.Fatal("enter should open the detail overlay")
	}
	if m.detail.Instance == nil || m.detail.Instance.ID != "echo" {
		t.Fatalf("detail instance = %+v", m.detail.Instance)
	}
	if m.detail.LogLines != 1 || !m.detail.LastLog.Equal(at) {
		t.Errorf("detail log stats = %d, %v", m.detail.LogLines, m.detail.LastLog)
	}

	m = step(t, m, keyRunes("f"))
	if m.overlay != OverlayNone || m.logs.Filter != "instance.echo" {
		t.Errorf("f in detail should filter by instance, overlay %d filter %q", m.overlay, m.logs.Filter)
	}
	m = step(t, m, keyRunes("f"))
	if m.logs.Filter != "" {
		t.Errorf("f again should clear the filter, got %q", m.logs.Filter)
	}
}

func TestClientDetailAvatar(t *testing.T) {
	m := newTestModel(&fakeStream{}, &fakeAPI{})
	m = step(t, m, EntitiesMsg{Clients: []client.Client{{ID: "@bot:example.com"}}})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.detail.Client == nil {
		t.Fatal("expected client detail")
	}
	if m.detail.AvatarURL != "https://example.com/avatar/@bot:example.com" {
		t.Errorf("AvatarURL = %q", m.detail.AvatarURL)
	}
}

func TestEventsRecorded(t *testing.T) {
	m := newTestModel(&fakeStream{}, nil)
	m = step(t, m, EventMsg{Event: client.Event{Kind: client.EventConnecting}})
	m = step(t, m, EventMsg{Event: client.Event{Kind: client.EventConnected}})

	if len(m.debugLog.Entries) != 2 {
		t.Errorf("debug log entries = %d, want 2", len(m.debugLog.Entries))
	}
	snap := m.actx.Debug.Snapshot()
	if snap.Events != 2 || snap.LastEvent == nil || snap.LastEvent.Kind != client.EventConnected {
		t.Errorf("snapshot events = %d, last %+v", snap.Events, snap.LastEvent)
	}
}
