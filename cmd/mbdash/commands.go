package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/maubot-tools/mbdash/internal/app"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/config"
	"github.com/maubot-tools/mbdash/internal/logging"
	"github.com/rs/zerolog"
)

var (
	colorDim      = color.New(color.FgHiBlack)
	colorDebug    = color.New(color.FgHiBlack)
	colorInfo     = color.New(color.FgBlue)
	colorWarn     = color.New(color.FgYellow)
	colorError    = color.New(color.FgRed)
	colorCritical = color.New(color.FgMagenta, color.Bold)
	colorName     = color.New(color.FgCyan)
	colorOK       = color.New(color.FgGreen)
)

func levelColor(level string) *color.Color {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return colorDebug
	case "INFO":
		return colorInfo
	case "WARN", "WARNING":
		return colorWarn
	case "ERROR":
		return colorError
	case "CRITICAL", "FATAL":
		return colorCritical
	default:
		return colorDim
	}
}

// setupStderrLogger builds the logger for the commands that keep the
// terminal. The returned func closes the log file, if any.
func setupStderrLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	opts := logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Out:    os.Stderr,
	}
	closeFn := func() {}
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("open log file: %w", err)
		}
		opts.Out = f
		opts.NoColor = true
		closeFn = func() { f.Close() }
	}
	logger, err := logging.Setup(opts)
	if err != nil {
		closeFn()
		return zerolog.Nop(), func() {}, err
	}
	return logger, closeFn, nil
}

// recordPrinter writes normalized entries to an io.Writer.
type recordPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

func (p *recordPrinter) print(rec client.LogRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		json.NewEncoder(p.out).Encode(rec)
		return
	}
	ts := "--:--:--.---"
	if !rec.Time.IsZero() {
		ts = rec.Time.Format("15:04:05.000")
	}
	level := fmt.Sprintf("%-8s", rec.Level)
	line := fmt.Sprintf("%s %s %s %s",
		colorDim.Sprint(ts), levelColor(rec.Level).Sprint(level), colorName.Sprint(rec.Name), rec.Message)
	if rec.NameLink != "" {
		line += " " + colorDim.Sprint(rec.NameLink)
	}
	fmt.Fprintln(p.out, line)
}

func runTail(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	asJSON := fs.Bool("json", false, "Print one JSON object per entry")
	noHistory := fs.Bool("no-history", false, "Skip the history batch sent after each authentication")
	debugDump := fs.Bool("debug", false, "Print a connection snapshot on exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupStderrLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	scfg, err := streamConfig(cfg, &logger)
	if err != nil {
		return err
	}

	accessor := app.NewDebugAccessor()
	accessor.Update(func(s *app.Snapshot) { s.Server = cfg.Server.URL })
	printer := &recordPrinter{out: stdout, json: *asJSON}

	scfg.Observer = accessor.RecordEvent
	scfg.Subscriber = &client.Subscriber{
		OnHistory: func(records []client.LogRecord) {
			if *noHistory {
				return
			}
			for _, rec := range records {
				printer.print(rec)
			}
			accessor.Update(func(s *app.Snapshot) { s.LogLines += len(records) })
		},
		OnLog: func(rec client.LogRecord) {
			printer.print(rec)
			accessor.Update(func(s *app.Snapshot) { s.LogLines++ })
		},
	}
	stream := client.OpenLogStream(ctx, scfg)

	<-ctx.Done()
	st, failures := stream.Status(), stream.Failures()
	stream.Close()

	if *debugDump {
		accessor.Update(func(s *app.Snapshot) {
			s.Status = st
			s.Failures = failures
		})
		printSnapshot(os.Stderr, accessor.Snapshot())
	}
	return nil
}

func printSnapshot(w io.Writer, s app.Snapshot) {
	fmt.Fprintf(w, "server:        %s\n", s.Server)
	fmt.Fprintf(w, "connected:     %v\n", s.Status.Connected)
	fmt.Fprintf(w, "authenticated: %v\n", s.Status.Authenticated)
	fmt.Fprintf(w, "failures:      %d\n", s.Failures)
	fmt.Fprintf(w, "log lines:     %d\n", s.LogLines)
	fmt.Fprintf(w, "events:        %d\n", s.Events)
	if s.LastEvent != nil {
		fmt.Fprintf(w, "last event:    %s at %s\n", s.LastEvent.Kind, s.LastEvent.Time.Format(time.RFC3339))
	}
}

func runWhoami(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	api := apiClient(cfg)
	user, err := api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Server.URL, err)
	}
	fmt.Fprintf(stdout, "%s %s\n", colorOK.Sprint("✓"), user)
	return nil
}

func runList(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: mbdash list [flags] instances|clients|plugins")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("list needs exactly one of instances, clients, plugins")
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	api := apiClient(cfg)

	switch fs.Arg(0) {
	case "instances":
		instances, err := api.Instances(ctx)
		if err != nil {
			return err
		}
		for _, in := range instances {
			fmt.Fprintf(stdout, "%s %-24s %s\n", stateMark(in.Enabled, in.Started), in.ID, colorDim.Sprint(in.Type))
		}
	case "clients":
		clients, err := api.Clients(ctx)
		if err != nil {
			return err
		}
		for _, c := range clients {
			fmt.Fprintf(stdout, "%s %-32s %s\n", stateMark(c.Enabled, c.Started), c.ID, colorDim.Sprint(c.Homeserver))
		}
	case "plugins":
		plugins, err := api.Plugins(ctx)
		if err != nil {
			return err
		}
		for _, p := range plugins {
			fmt.Fprintf(stdout, "%-32s %s  %d instances\n", p.ID, colorDim.Sprint(p.Version), len(p.Instances))
		}
	default:
		return fmt.Errorf("unknown entity kind %q", fs.Arg(0))
	}
	return nil
}

func stateMark(enabled, started bool) string {
	switch {
	case !enabled:
		return colorDim.Sprint("○")
	case started:
		return colorOK.Sprint("●")
	default:
		return colorWarn.Sprint("◌")
	}
}
