package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one live connection. Closing is idempotent and a closed
// session is never reopened; reconnection creates a new one.
type Session struct {
	Handle string

	conn          Conn
	lastHeartbeat atomic.Int64
	done          chan struct{}
	closeOnce     sync.Once
}

func newSession(conn Conn, now time.Time) *Session {
	s := &Session{
		Handle: uuid.NewString(),
		conn:   conn,
		done:   make(chan struct{}),
	}
	s.touch(now)
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastHeartbeat.Store(now.UnixNano())
}

func (s *Session) LastHeartbeatAt() time.Time {
	return time.Unix(0, s.lastHeartbeat.Load())
}

// Close reports whether this call performed the close.
func (s *Session) Close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		closed = true
	})
	return closed
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}
