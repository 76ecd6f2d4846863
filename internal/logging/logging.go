// Package logging builds the zerolog logger shared by every mbdash command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "MBDASH_LOG_LEVEL"
	EnvLogFormat  = "MBDASH_LOG_FORMAT"
	EnvLogNoColor = "MBDASH_LOG_NOCOLOR"
)

// Format selects the log encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options describes a logger. The zero value logs info and above to stderr
// through a ConsoleWriter.
type Options struct {
	Level   string
	Format  Format
	NoColor bool
	Out     io.Writer
}

// Setup applies env overrides to opts, builds the logger and installs it as
// the zerolog global.
func Setup(opts Options) (zerolog.Logger, error) {
	applyEnvOverrides(&opts)

	level := zerolog.InfoLevel
	if opts.Level != "" {
		lvl, ok := parseLevel(opts.Level)
		if !ok {
			return zerolog.Nop(), fmt.Errorf("unknown log level %q", opts.Level)
		}
		level = lvl
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	switch opts.Format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", "mbdash").Logger()
	log.Logger = logger
	return logger, nil
}

// OpenFile opens path for appending, creating parent directories. The TUI
// logs here so output does not tear the alternate screen.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// DefaultFilePath is mbdash.log in the user cache directory, or in the
// working directory when there is none.
func DefaultFilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "mbdash.log"
	}
	return filepath.Join(dir, "mbdash", "mbdash.log")
}

func applyEnvOverrides(opts *Options) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		opts.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		opts.Format = Format(strings.ToLower(v))
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
