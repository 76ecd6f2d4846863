package theme

import "testing"

func TestLevelColor(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"DEBUG", string(ColorDebug)},
		{"info", string(ColorInfo)},
		{"WARNING", string(ColorWarn)},
		{"ERROR", string(ColorError)},
		{"CRITICAL", string(ColorCritical)},
		{"", string(ColorDefault)},
	}
	for _, tt := range tests {
		if got := string(LevelColor(tt.level)); got != tt.want {
			t.Errorf("LevelColor(%q) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"much longer than that", 10, "much lo..."},
		{"ünïcödé-name", 8, "ünïcö..."},
		{"tiny", 2, "tiny"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
