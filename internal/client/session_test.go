package client

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	authenticated int
	history       [][]LogRecord
	logs          []LogRecord
	bad           []error
}

func (s *recordingSink) sessionConnected() {}
func (s *recordingSink) sessionAuthenticated() { s.authenticated++ }
func (s *recordingSink) deliverHistory(records []LogRecord) { s.history = append(s.history, records) }
func (s *recordingSink) deliverLog(rec LogRecord) { s.logs = append(s.logs, rec) }
func (s *recordingSink) malformed(err error) { s.bad = append(s.bad, err) }

// waitingSession is a session that has sent its token and waits for
// auth_success.
func waitingSession(sink *recordingSink) *Session {
	s := &Session{id: "test", log: zerolog.Nop(), sink: sink}
	s.state.Store(int32(SessionAuthenticating))
	return s
}

func TestSession_ExpireAuthAfterAuthentication(t *testing.T) {
	sink := &recordingSink{}
	s := waitingSession(sink)
	require.NoError(t, s.handle([]byte(`{"auth_success": true}`)))

	conn := newFakeConn()
	assert.False(t, s.expireAuth(conn))
	assert.False(t, conn.isClosed())
	assert.False(t, s.timedOut.Load())
	assert.Equal(t, SessionAuthenticated, s.State())
	assert.Equal(t, 1, sink.authenticated)
}

func TestSession_AuthSuccessAfterExpiry(t *testing.T) {
	sink := &recordingSink{}
	s := waitingSession(sink)

	conn := newFakeConn()
	require.True(t, s.expireAuth(conn))
	assert.True(t, conn.isClosed())

	err := s.handle([]byte(`{"auth_success": true}`))
	assert.ErrorIs(t, err, ErrAuthTimeout)
	assert.Equal(t, 0, sink.authenticated)
	assert.Equal(t, SessionClosed, s.State())
}

func TestSession_RepeatedAuthSuccess(t *testing.T) {
	sink := &recordingSink{}
	s := waitingSession(sink)
	require.NoError(t, s.handle([]byte(`{"auth_success": true}`)))
	require.NoError(t, s.handle([]byte(`{"auth_success": true}`)))
	assert.Equal(t, 1, sink.authenticated)
}

func TestSession_FalsyHistoryIsLiveRecord(t *testing.T) {
	for _, raw := range []string{`null`, `false`, `0`, `""`} {
		t.Run(raw, func(t *testing.T) {
			sink := &recordingSink{}
			s := waitingSession(sink)
			require.NoError(t, s.handle([]byte(`{"auth_success": true}`)))

			require.NoError(t, s.handle([]byte(`{"history": `+raw+`, "name": "maubot.loader", "msg": "m"}`)))
			assert.Empty(t, sink.history)
			require.Len(t, sink.logs, 1)
			assert.Equal(t, "loader", sink.logs[0].Name)
			assert.Equal(t, "m", sink.logs[0].Message)
		})
	}
}

func TestSession_EmptyHistoryBatch(t *testing.T) {
	sink := &recordingSink{}
	s := waitingSession(sink)
	require.NoError(t, s.handle([]byte(`{"auth_success": true}`)))

	require.NoError(t, s.handle([]byte(`{"history": []}`)))
	require.Len(t, sink.history, 1)
	assert.Empty(t, sink.history[0])
	assert.Empty(t, sink.logs)
}

func TestSession_HistoryNotAnArray(t *testing.T) {
	sink := &recordingSink{}
	s := waitingSession(sink)
	require.NoError(t, s.handle([]byte(`{"auth_success": true}`)))

	require.NoError(t, s.handle([]byte(`{"history": {"name": "maubot"}}`)))
	assert.Empty(t, sink.history)
	require.Len(t, sink.bad, 1)
	assert.ErrorIs(t, sink.bad[0], ErrMalformed)
}
