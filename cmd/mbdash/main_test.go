package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/maubot-tools/mbdash/internal/client"
	"github.com/maubot-tools/mbdash/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the tail goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvTokenFile, "")
}

func TestHTTPBase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ws://127.0.0.1:29316", "http://127.0.0.1:29316"},
		{"wss://bots.example.com/maubot", "https://bots.example.com/maubot"},
		{"https://bots.example.com", "https://bots.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpBase(tt.in), tt.in)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  url: http://file.example.com\n  token_file: /from/file\n")

	t.Run("file", func(t *testing.T) {
		c := commonFlags{configPath: path}
		cfg, err := c.load()
		require.NoError(t, err)
		assert.Equal(t, "http://file.example.com", cfg.Server.URL)
		assert.Equal(t, client.FileToken("/from/file"), tokenSource(cfg))
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv(config.EnvURL, "http://env.example.com")
		t.Setenv(config.EnvToken, "env-token")
		c := commonFlags{configPath: path}
		cfg, err := c.load()
		require.NoError(t, err)
		assert.Equal(t, "http://env.example.com", cfg.Server.URL)
		assert.Equal(t, client.StaticToken("env-token"), tokenSource(cfg))
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv(config.EnvURL, "http://env.example.com")
		c := commonFlags{configPath: path, url: "http://flag.example.com", token: "flag-token"}
		cfg, err := c.load()
		require.NoError(t, err)
		assert.Equal(t, "http://flag.example.com", cfg.Server.URL)
		assert.Equal(t, client.StaticToken("flag-token"), tokenSource(cfg))
	})

	t.Run("invalid", func(t *testing.T) {
		c := commonFlags{configPath: path, url: "ftp://nope"}
		_, err := c.load()
		assert.Error(t, err)
	})
}

func TestStreamConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.URL = "https://bots.example.com"
	cfg.Stream.BackoffBase = config.Duration{Duration: 2 * time.Second}

	scfg, err := streamConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://bots.example.com/_matrix/maubot/v1/logs", scfg.URL)
	assert.Equal(t, 2*time.Second, scfg.Backoff.Base)
	assert.Equal(t, 30*time.Second, scfg.Backoff.Ceiling)
	assert.Equal(t, 10*time.Second, scfg.AuthTimeout)
}

func TestRunUnknownCommand(t *testing.T) {
	err := run([]string{"frobnicate"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "frobnicate")
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "tail")
}

func newAPI(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(client.BasePath+"/auth/ping", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errcode":"auth_token_invalid","error":"Invalid token"}`))
			return
		}
		w.Write([]byte(`{"username":"admin"}`))
	})
	mux.HandleFunc(client.BasePath+"/instances", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"echo","type":"xyz.maubot.echo","enabled":true,"started":true}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestWhoami(t *testing.T) {
	clearEnv(t)
	url := newAPI(t)
	cfgPath := writeConfig(t, "")

	var out bytes.Buffer
	err := runWhoami(context.Background(), []string{"-config", cfgPath, "-url", url, "-token", "secret"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "admin")

	err = runWhoami(context.Background(), []string{"-config", cfgPath, "-url", url, "-token", "wrong"}, &out)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestListInstances(t *testing.T) {
	clearEnv(t)
	url := newAPI(t)
	cfgPath := writeConfig(t, "")

	var out bytes.Buffer
	err := runList(context.Background(), []string{"-config", cfgPath, "-url", url, "-token", "secret", "instances"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "echo")
	assert.Contains(t, out.String(), "xyz.maubot.echo")

	err = runList(context.Background(), []string{"-config", cfgPath, "-url", url}, &out)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	clearEnv(t)
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc(client.BasePath+"/logs", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(map[string]bool{"auth_success": true})
		conn.WriteJSON(map[string]any{"history": []map[string]any{
			{"name": "maubot.instance.echo", "msg": "from history", "levelname": "INFO", "time": 1000},
		}})
		conn.WriteJSON(map[string]any{"name": "maubot.client.@bot:example.com", "msg": "live message", "levelname": "WARNING", "time": 2000})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	cfgPath := writeConfig(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runTail(ctx, []string{"-config", cfgPath, "-url", srv.URL, "-token", "secret", "-log-level", "off"}, out)
	}()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "live message") }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop after cancel")
	}

	got := out.String()
	assert.Contains(t, got, "instance.echo")
	assert.Contains(t, got, "/instance/echo")
	assert.Contains(t, got, "@bot:example.com")
	assert.Less(t, strings.Index(got, "from history"), strings.Index(got, "live message"))
}
