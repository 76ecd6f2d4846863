package client

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken is returned by token sources that have nothing to offer.
var ErrNoToken = errors.New("no access token")

// TokenSource yields the bearer token. It is called once per log stream
// session and once per REST call, so a changed token takes effect on the
// next attempt without restarting anything.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// FileToken reads the token from a file on every call.
type FileToken string

func (p FileToken) Token() (string, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s: %w", string(p), ErrNoToken)
	}
	return tok, nil
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, error)

func (f TokenFunc) Token() (string, error) { return f() }
