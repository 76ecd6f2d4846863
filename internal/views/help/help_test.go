package help

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func bindings() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "connection log")),
		key.NewBinding(key.WithKeys("x")),
	}
}

func TestMarkdownListsBindings(t *testing.T) {
	md := New(bindings()...).Markdown()
	if !strings.Contains(md, "| `q` | quit |") {
		t.Errorf("markdown should list q, got:\n%s", md)
	}
	if !strings.Contains(md, "| `d` | connection log |") {
		t.Errorf("markdown should list d, got:\n%s", md)
	}
	if strings.Count(md, "| `") != 2 {
		t.Error("bindings without help text should be skipped")
	}
}

func TestRenderNoTTY(t *testing.T) {
	m := New(bindings()...)
	m.Style = "notty"
	out, err := m.Render(60)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "quit") {
		t.Errorf("rendered help should mention quit:\n%s", out)
	}

	again, err := m.Render(60)
	if err != nil || again != out {
		t.Error("second render at the same width should return the cached output")
	}
}

func TestViewFits(t *testing.T) {
	m := New(bindings()...)
	m.Style = "notty"
	v := m.View(80, 10)
	if !strings.Contains(v, "esc:close") {
		t.Error("view should include the close hint")
	}
}
