package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SessionState is where a Session is in its lifecycle.
type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionAuthenticating
	SessionAuthenticated
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionAuthenticating:
		return "authenticating"
	case SessionAuthenticated:
		return "authenticated"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

var (
	ErrAuthRejected = errors.New("authentication rejected")
	ErrAuthTimeout  = errors.New("authentication timed out")
)

// sessionSink receives what a Session produces. LogStream implements it.
type sessionSink interface {
	sessionConnected()
	sessionAuthenticated()
	deliverHistory([]LogRecord)
	deliverLog(LogRecord)
	malformed(error)
}

// Session owns one connection attempt from dial to close. It is never
// reused; the supervisor creates a fresh one for every attempt.
type Session struct {
	id             string
	url            string
	dialer         Dialer
	tokens         TokenSource
	connectTimeout time.Duration
	authTimeout    time.Duration
	log            zerolog.Logger
	sink           sessionSink

	state    atomic.Int32
	timedOut atomic.Bool
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// run drives the session until it closes. It returns the peer's close code
// (0 when there was none) and the error that ended the session.
func (s *Session) run(ctx context.Context) (int, error) {
	defer s.state.Store(int32(SessionClosed))

	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	conn, err := s.dialer.Dial(dialCtx, s.url)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	defer conn.Close()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	s.state.Store(int32(SessionAuthenticating))
	s.sink.sessionConnected()

	// Auth is in-band: the endpoint cannot take headers at connect time.
	token, err := s.tokens.Token()
	if err != nil {
		return 0, fmt.Errorf("read token: %w", err)
	}
	if err := conn.WriteText([]byte(token)); err != nil {
		return closeCode(err), fmt.Errorf("send token: %w", err)
	}

	authTimer := time.AfterFunc(s.authTimeout, func() { s.expireAuth(conn) })
	defer authTimer.Stop()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if s.timedOut.Load() {
				return 0, ErrAuthTimeout
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return closeCode(err), err
		}
		if err := s.handle(data); err != nil {
			return 0, err
		}
	}
}

// expireAuth ends a session still waiting for auth_success. It reports
// false when authentication won the race.
func (s *Session) expireAuth(conn Conn) bool {
	if !s.state.CompareAndSwap(int32(SessionAuthenticating), int32(SessionClosed)) {
		return false
	}
	s.timedOut.Store(true)
	conn.Close()
	return true
}

// handle dispatches one inbound frame. A non-nil error ends the session.
func (s *Session) handle(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		s.sink.malformed(err)
		return nil
	}

	if raw, ok := fields["auth_success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err != nil {
			s.sink.malformed(fmt.Errorf("%w: auth_success: %v", ErrMalformed, err))
			return nil
		}
		if !success {
			return ErrAuthRejected
		}
		if !s.state.CompareAndSwap(int32(SessionAuthenticating), int32(SessionAuthenticated)) {
			if s.State() == SessionAuthenticated {
				s.log.Debug().Msg("ignoring repeated auth_success")
				return nil
			}
			return ErrAuthTimeout
		}
		s.sink.sessionAuthenticated()
		return nil
	}

	if s.State() != SessionAuthenticated {
		s.log.Debug().Msg("dropping frame received before authentication")
		return nil
	}

	if raw, ok := fields["history"]; ok && !falsy(raw) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			s.sink.malformed(fmt.Errorf("%w: history: %v", ErrMalformed, err))
			return nil
		}
		records := make([]LogRecord, 0, len(items))
		for _, item := range items {
			rec, err := Normalize(item)
			if err != nil {
				s.sink.malformed(err)
				continue
			}
			records = append(records, rec)
		}
		s.sink.deliverHistory(records)
		return nil
	}

	s.sink.deliverLog(normalizeFields(fields))
	return nil
}

// falsy reports JSON values that do not mark a history batch: null, false,
// 0 and "". Such frames are live records.
func falsy(raw json.RawMessage) bool {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return false
	}
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return v == ""
	}
	return false
}

func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}
