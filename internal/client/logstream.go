package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultAuthTimeout    = 10 * time.Second
)

// Subscriber receives log entries. Either callback may be nil.
type Subscriber struct {
	OnHistory func([]LogRecord)
	OnLog     func(LogRecord)
}

// EventKind names a lifecycle transition of the log stream.
type EventKind int

const (
	EventScheduled EventKind = iota
	EventConnecting
	EventConnected
	EventAuthenticated
	EventAuthFailed
	EventClosed
	EventMalformed
)

func (k EventKind) String() string {
	switch k {
	case EventScheduled:
		return "scheduled"
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventAuthenticated:
		return "authenticated"
	case EventAuthFailed:
		return "auth_failed"
	case EventClosed:
		return "closed"
	case EventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition. Code and Err are set for
// EventClosed and EventAuthFailed, Delay for EventScheduled, Err for
// EventMalformed.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Code     int
	Err      error
	Delay    time.Duration
	Failures int
}

// LogStreamConfig configures OpenLogStream. Only URL is required.
type LogStreamConfig struct {
	URL            string
	Tokens         TokenSource
	Dialer         Dialer
	Clock          Clock
	Backoff        Backoff
	ConnectTimeout time.Duration
	AuthTimeout    time.Duration
	Logger         *zerolog.Logger

	// Observer is called on the supervisor goroutine for every Event. It
	// must not block.
	Observer func(Event)

	// Subscriber, when set, is attached before the first dial so the first
	// history batch cannot be missed. Subscribe can replace it later.
	Subscriber *Subscriber
}

// LogStream keeps one log stream alive across any number of underlying
// sessions. Subscribers and status readers never see the reconnects.
type LogStream struct {
	cfg LogStreamConfig
	log zerolog.Logger

	mu       sync.Mutex
	status   Status
	failures int
	sub      *Subscriber

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenLogStream starts the supervisor and returns at once. The stream is
// disconnected and has no subscriber until the caller attaches one. It keeps
// reconnecting until ctx is cancelled or Close is called.
func OpenLogStream(ctx context.Context, cfg LogStreamConfig) *LogStream {
	if cfg.Tokens == nil {
		cfg.Tokens = StaticToken("")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &LogStream{
		cfg:      cfg,
		log:      logger.With().Str("component", "logstream").Logger(),
		failures: -1,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if cfg.Subscriber != nil {
		sub := *cfg.Subscriber
		l.sub = &sub
	}
	go l.run(ctx)
	return l
}

// Subscribe installs s as the only subscriber, replacing any previous one
// from the next delivery on. The returned func removes s if it is still the
// current subscriber.
func (l *LogStream) Subscribe(s Subscriber) (unsubscribe func()) {
	sub := &s
	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		if l.sub == sub {
			l.sub = nil
		}
		l.mu.Unlock()
	}
}

// Status returns the current connection flags.
func (l *LogStream) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Failures returns the consecutive failure count since the last successful
// authentication.
func (l *LogStream) Failures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}

// Close stops reconnecting, closes the open session and waits for the
// supervisor to exit.
func (l *LogStream) Close() {
	l.cancel()
	<-l.done
}

func (l *LogStream) run(ctx context.Context) {
	defer close(l.done)
	for {
		failures, delay := l.scheduleNext()
		timer := l.cfg.Clock.After(delay)
		l.emit(Event{Kind: EventScheduled, Delay: delay, Failures: failures})
		if delay > 0 {
			l.log.Info().Dur("delay", delay).Int("failures", failures).Msg("reconnecting after backoff")
		}
		select {
		case <-ctx.Done():
			return
		case <-timer:
		}

		sess := l.newSession()
		l.emit(Event{Kind: EventConnecting})
		code, err := sess.run(ctx)
		l.setStatus(Status{})
		if ctx.Err() != nil {
			sess.log.Debug().Msg("log stream stopped")
			return
		}
		l.sessionClosed(sess, code, err)
	}
}

// scheduleNext counts a close event and returns the delay before the next
// attempt. The counter starts at -1, so the first attempt is immediate and
// the first retry after a failure waits Delay(1).
func (l *LogStream) scheduleNext() (int, time.Duration) {
	l.mu.Lock()
	l.failures++
	failures := l.failures
	l.mu.Unlock()
	return failures, l.cfg.Backoff.Delay(failures)
}

func (l *LogStream) newSession() *Session {
	sid := uuid.NewString()
	return &Session{
		id:             sid,
		url:            l.cfg.URL,
		dialer:         l.cfg.Dialer,
		tokens:         l.cfg.Tokens,
		connectTimeout: l.cfg.ConnectTimeout,
		authTimeout:    l.cfg.AuthTimeout,
		log:            l.log.With().Str("session", sid).Logger(),
		sink:           l,
	}
}

func (l *LogStream) sessionClosed(sess *Session, code int, err error) {
	authFailed := false
	switch {
	case code == CloseInvalidToken:
		authFailed = true
		sess.log.Error().Int("code", code).Msg("log stream closed: access token invalid or not provided")
	case code == CloseServiceRestart:
		sess.log.Info().Int("code", code).Msg("log stream closed: server is restarting")
	case errors.Is(err, ErrAuthRejected):
		authFailed = true
		sess.log.Warn().Msg("log stream authentication failed")
	case errors.Is(err, ErrAuthTimeout):
		sess.log.Warn().Dur("timeout", l.cfg.AuthTimeout).Msg("log stream authentication timed out")
	default:
		sess.log.Warn().Err(err).Int("code", code).Msg("log stream disconnected")
	}
	if authFailed {
		l.emit(Event{Kind: EventAuthFailed, Code: code, Err: err})
	}
	l.emit(Event{Kind: EventClosed, Code: code, Err: err})
}

func (l *LogStream) setStatus(s Status) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

func (l *LogStream) emit(e Event) {
	if l.cfg.Observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.cfg.Observer(e)
}

func (l *LogStream) subscriber() *Subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub
}

// --- sessionSink ---

func (l *LogStream) sessionConnected() {
	l.setStatus(Status{Connected: true})
	l.emit(Event{Kind: EventConnected})
}

func (l *LogStream) sessionAuthenticated() {
	l.mu.Lock()
	l.status = Status{Connected: true, Authenticated: true}
	l.failures = 0
	l.mu.Unlock()
	l.log.Info().Msg("log stream authentication successful")
	l.emit(Event{Kind: EventAuthenticated})
}

func (l *LogStream) deliverHistory(records []LogRecord) {
	if sub := l.subscriber(); sub != nil && sub.OnHistory != nil {
		sub.OnHistory(records)
	}
}

func (l *LogStream) deliverLog(rec LogRecord) {
	if sub := l.subscriber(); sub != nil && sub.OnLog != nil {
		sub.OnLog(rec)
	}
}

func (l *LogStream) malformed(err error) {
	l.log.Warn().Err(err).Msg("dropping malformed log stream message")
	l.emit(Event{Kind: EventMalformed, Err: err})
}
