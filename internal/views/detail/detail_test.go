package detail

import (
	"strings"
	"testing"
	"time"

	"github.com/maubot-tools/mbdash/internal/client"
)

func TestViewEmpty(t *testing.T) {
	if v := (Model{}).View(); v != "" {
		t.Errorf("empty model should render nothing, got %q", v)
	}
}

func TestViewInstance(t *testing.T) {
	m := Model{
		Instance: &client.Instance{ID: "echo", Type: "xyz.maubot.echo", Enabled: true, Started: true, PrimaryUser: "@bot:example.com"},
		LogLines: 12,
		LastLog:  time.Now(),
	}
	v := m.View()
	for _, want := range []string{"Instance: echo", "xyz.maubot.echo", "running", "@bot:example.com", "12"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestViewClient(t *testing.T) {
	m := Model{
		Client: &client.Client{
			ID:         "@bot:example.com",
			Homeserver: "https://example.com",
			Instances:  []client.Instance{{ID: "echo"}, {ID: "rss"}},
		},
		AvatarURL: "https://bots.example.com/avatar",
	}
	v := m.View()
	for _, want := range []string{"Client: @bot:example.com", "https://example.com", "disabled", "echo, rss", "Avatar"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestViewPlugin(t *testing.T) {
	m := Model{Plugin: &client.Plugin{ID: "xyz.maubot.echo", Version: "1.4.0"}}
	v := m.View()
	if !strings.Contains(v, "1.4.0") || !strings.Contains(v, "none") {
		t.Errorf("plugin view missing version or instances: %q", v)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{5 * time.Second, "5s ago"},
		{3*time.Minute + 4*time.Second, "3m 4s ago"},
		{2*time.Hour + 5*time.Minute, "2h 5m ago"},
	}
	for _, tt := range tests {
		if got := formatAge(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("formatAge(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
