package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/maubot-tools/mbdash/internal/app"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/config"
	"github.com/maubot-tools/mbdash/internal/logging"
	"github.com/rs/zerolog"
)

const usage = `Usage: mbdash [command] [flags]

Commands:
  tui      interactive dashboard (default)
  tail     follow the server log on stdout
  whoami   check the token and print its username
  list     list instances, clients or plugins
  instance enable, disable, rename or delete a plugin instance
  client   enable, disable or delete a Matrix client
  plugin   upload or delete a plugin

Run "mbdash <command> -h" for the flags of a command.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cmd := "tui"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "tui":
		return runTUI(ctx, args)
	case "tail":
		return runTail(ctx, args, stdout)
	case "whoami":
		return runWhoami(ctx, args, stdout)
	case "list":
		return runList(ctx, args, stdout)
	case "instance":
		return runInstance(ctx, args, stdout)
	case "client":
		return runClient(ctx, args, stdout)
	case "plugin":
		return runPlugin(ctx, args, stdout)
	case "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commonFlags are shared by every command. Empty values leave the config
// and environment untouched.
type commonFlags struct {
	configPath string
	url        string
	token      string
	tokenFile  string
	logLevel   string
	logFormat  string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to config file (YAML, or TOML when it ends in .toml)")
	fs.StringVar(&c.url, "url", "", "Base URL of the maubot server, e.g. http://localhost:29316")
	fs.StringVar(&c.token, "token", "", "Management API access token")
	fs.StringVar(&c.tokenFile, "token-file", "", "Read the access token from this file on every connect")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	fs.StringVar(&c.logFormat, "log-format", "", "Log format (console or json)")
}

// load resolves the config: file, then environment, then flags.
func (c *commonFlags) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.LoadOrDefault(config.DefaultPath())
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if c.url != "" {
		cfg.Server.URL = c.url
	}
	if c.token != "" {
		cfg.Server.Token, cfg.Server.TokenFile = c.token, ""
	}
	if c.tokenFile != "" {
		cfg.Server.TokenFile, cfg.Server.Token = c.tokenFile, ""
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func tokenSource(cfg *config.Config) client.TokenSource {
	if cfg.Server.TokenFile != "" {
		return client.FileToken(cfg.Server.TokenFile)
	}
	return client.StaticToken(cfg.Server.Token)
}

func streamConfig(cfg *config.Config, logger *zerolog.Logger) (client.LogStreamConfig, error) {
	wsURL, err := client.LogsURL(cfg.Server.URL)
	if err != nil {
		return client.LogStreamConfig{}, err
	}
	return client.LogStreamConfig{
		URL:    wsURL,
		Tokens: tokenSource(cfg),
		Backoff: client.Backoff{
			Base:    cfg.Stream.BackoffBase.Duration,
			Ceiling: cfg.Stream.BackoffCeiling.Duration,
		},
		ConnectTimeout: cfg.Stream.ConnectTimeout.Duration,
		AuthTimeout:    cfg.Stream.AuthTimeout.Duration,
		Logger:         logger,
	}, nil
}

func apiClient(cfg *config.Config) *client.HTTPClient {
	return client.NewHTTPClient(httpBase(cfg.Server.URL), tokenSource(cfg))
}

// httpBase converts a ws:// or wss:// server URL to its http(s) form.
func httpBase(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "wss://"):
		return "https://" + strings.TrimPrefix(serverURL, "wss://")
	case strings.HasPrefix(serverURL, "ws://"):
		return "http://" + strings.TrimPrefix(serverURL, "ws://")
	default:
		return serverURL
	}
}

func runTUI(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	logFile := fs.String("log-file", "", "Write logs here while the dashboard runs (default: user cache dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal, so logs go to a file.
	path := *logFile
	if path == "" {
		path = cfg.Log.File
	}
	if path == "" {
		path = logging.DefaultFilePath()
	}
	f, err := logging.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	logger, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		Format:  logging.Format(cfg.Log.Format),
		NoColor: true,
		Out:     f,
	})
	if err != nil {
		return err
	}

	scfg, err := streamConfig(cfg, &logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	inbox := app.NewInbox(ctx, 256)
	sub := inbox.Subscriber()
	scfg.Observer = inbox.Observer()
	scfg.Subscriber = &sub
	stream := client.OpenLogStream(ctx, scfg)
	defer stream.Close()
	// Cancel first so callbacks blocked on the inbox return before Close
	// waits for the supervisor.
	defer cancel()

	m := app.New(app.Context{
		Stream:   stream,
		API:      apiClient(cfg),
		Inbox:    inbox,
		Debug:    app.NewDebugAccessor(),
		Server:   cfg.Server.URL,
		MaxLines: cfg.UI.MaxLines,
		Logger:   &logger,
	})
	logger.Info().Str("server", cfg.Server.URL).Str("log_file", path).Msg("starting dashboard")

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
