// Package gateway keeps the long-lived WebSocket link to the OneBot
// gateway alive and turns inbound frames into chat events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"replybot/internal/config"
	"replybot/internal/logger"
	apperrors "replybot/pkg/errors"
	"replybot/pkg/metrics"
	"replybot/pkg/models"
	"replybot/pkg/retry"
)

var (
	ErrReconnectExhausted = errors.New("gateway reconnection attempts exhausted")
	ErrHeartbeatTimeout   = errors.New("gateway heartbeat timeout")
	ErrShutdown           = errors.New("gateway manager is shut down")
	ErrNotStarted         = errors.New("gateway manager not started")
)

const defaultHeartbeatInterval = 5 * time.Second

// EventHandler receives decoded chat events. It must not block.
type EventHandler func(event models.InboundEvent)

type Options struct {
	URL                  string
	AccessToken          string
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	ReconnectDelays      []time.Duration
	MaxReconnectAttempts int
}

func OptionsFromConfig(cfg config.GatewayConfig) Options {
	return Options{
		URL:                  cfg.URL,
		AccessToken:          cfg.AccessToken,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		HeartbeatTimeout:     cfg.HeartbeatTimeout,
		ReconnectDelays:      cfg.ReconnectDelays,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSleep replaces the wait between reconnection attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// Manager owns the gateway session lifecycle: connect, read, heartbeat
// supervision and capped reconnection. At most one session and one
// reconnection supervisor exist at any time.
type Manager struct {
	opts    Options
	dialer  Dialer
	decoder Decoder
	handler EventHandler
	logger  logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu                sync.Mutex
	state             State
	session           *Session
	reconnectAttempts int
	supervising       bool
	exhausted         bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  chan error
}

func NewManager(opts Options, dialer Dialer, decoder Decoder, handler EventHandler, log logger.Logger, options ...Option) *Manager {
	if len(opts.ReconnectDelays) == 0 {
		opts.ReconnectDelays = config.DefaultReconnectDelays()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 3 * opts.HeartbeatInterval
	}
	m := &Manager{
		opts:    opts,
		dialer:  dialer,
		decoder: decoder,
		handler: handler,
		logger:  log,
		now:     time.Now,
		sleep:   sleepContext,
		state:   StateConnecting,
		fatal:   make(chan error, 1),
	}
	for _, o := range options {
		o(m)
	}
	metrics.SetGatewayConnectionState(int(m.state))
	return m
}

// Start performs the first connection attempt. A failed attempt hands
// over to the reconnection supervisor; Start itself only fails when the
// manager was already started.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return fmt.Errorf("gateway manager already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if err := m.connect(); err != nil {
		m.logger.WarnwCtx(ctx, "Initial gateway connection failed",
			"url", m.opts.URL,
			"error", err,
		)
		m.scheduleReconnect()
	}
	return nil
}

// Fatal delivers ErrReconnectExhausted once the supervisor gives up.
func (m *Manager) Fatal() <-chan error {
	return m.fatal
}

func (m *Manager) setState(s State) {
	m.state = s
	metrics.SetGatewayConnectionState(int(s))
}

func (m *Manager) shuttingDown() bool {
	return m.state == StateClosing || m.state == StateClosed
}

func (m *Manager) connect() error {
	m.mu.Lock()
	if m.shuttingDown() {
		m.mu.Unlock()
		return ErrShutdown
	}
	m.setState(StateConnecting)
	ctx := m.ctx
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, m.opts.URL, m.opts.AccessToken)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.shuttingDown() {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrShutdown
	}
	s := newSession(conn, m.now())
	m.session = s
	m.reconnectAttempts = 0
	m.exhausted = false
	m.setState(StateOpen)
	m.wg.Add(2)
	m.mu.Unlock()

	go m.readLoop(s)
	go m.monitorHeartbeat(s)

	m.logger.InfowCtx(ctx, "Connected to gateway",
		"url", m.opts.URL,
		"session", s.Handle,
	)
	return nil
}

func (m *Manager) readLoop(s *Session) {
	defer m.wg.Done()

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			m.sessionLost(s, err)
			return
		}
		s.touch(m.now())
		m.handleFrame(data)
	}
}

func (m *Manager) handleFrame(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			metrics.GatewayFramesTotal.WithLabelValues("panic").Inc()
			m.logger.ErrorwCtx(m.ctx, "Panic while handling gateway frame", "error", err)
		}
	}()

	event, err := m.decoder.Decode(data)
	if err != nil {
		metrics.GatewayFramesTotal.WithLabelValues("invalid").Inc()
		m.logger.WarnwCtx(m.ctx, "Failed to decode gateway frame", "error", err)
		return
	}
	if event == nil {
		metrics.GatewayFramesTotal.WithLabelValues("ignored").Inc()
		return
	}

	metrics.GatewayFramesTotal.WithLabelValues("message").Inc()
	m.handler(*event)
}

func (m *Manager) monitorHeartbeat(s *Session) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Done():
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			silence := m.now().Sub(s.LastHeartbeatAt())
			if silence > m.opts.HeartbeatTimeout {
				metrics.GatewayHeartbeatTimeoutsTotal.Inc()
				m.logger.WarnwCtx(m.ctx, "Gateway heartbeat timed out, closing session",
					"session", s.Handle,
					"silence", silence,
				)
				m.sessionLost(s, ErrHeartbeatTimeout)
				return
			}
		}
	}
}

// sessionLost closes s and starts reconnection, unless s is no longer the
// current session or the manager is shutting down.
func (m *Manager) sessionLost(s *Session, cause error) {
	m.mu.Lock()
	current := m.session == s
	if current {
		m.session = nil
	}
	stopping := m.shuttingDown()
	if current && !stopping {
		m.setState(StateConnecting)
	}
	m.mu.Unlock()

	s.Close()
	if !current || stopping {
		return
	}

	m.logger.WarnwCtx(m.ctx, "Gateway session lost",
		"session", s.Handle,
		"error", cause,
	)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.supervising || m.shuttingDown() || m.ctx == nil {
		m.mu.Unlock()
		return
	}
	m.supervising = true
	m.exhausted = false
	m.wg.Add(1)
	m.mu.Unlock()

	go m.supervise()
}

func (m *Manager) supervise() {
	defer m.wg.Done()

	for {
		if !m.reconnect() {
			return
		}

		m.mu.Lock()
		// The new session may already be gone; its loss found the
		// supervisor still running and left the restart to us.
		if m.session == nil && !m.shuttingDown() {
			m.mu.Unlock()
			continue
		}
		m.supervising = false
		m.mu.Unlock()
		return
	}
}

func (m *Manager) stopSupervising() {
	m.mu.Lock()
	m.supervising = false
	m.mu.Unlock()
}

// reconnect runs one capped backoff sequence and reports whether a
// session was established. When it was not, the supervisor slot is
// released before returning.
func (m *Manager) reconnect() bool {
	b := backoff.WithMaxRetries(retry.NewSequenceBackOff(m.opts.ReconnectDelays...), uint64(m.opts.MaxReconnectAttempts))

	for {
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			m.exhaust()
			return false
		}

		m.mu.Lock()
		m.reconnectAttempts++
		attempt := m.reconnectAttempts
		m.mu.Unlock()

		m.logger.InfowCtx(m.ctx, "Reconnecting to gateway",
			"attempt", attempt,
			"max_attempts", m.opts.MaxReconnectAttempts,
			"delay", delay,
		)

		if err := m.sleep(m.ctx, delay); err != nil {
			m.stopSupervising()
			return false
		}

		err := m.connect()
		if err == nil {
			metrics.GatewayReconnectAttemptsTotal.WithLabelValues("success").Inc()
			return true
		}
		if errors.Is(err, ErrShutdown) {
			m.stopSupervising()
			return false
		}

		metrics.GatewayReconnectAttemptsTotal.WithLabelValues("failure").Inc()
		m.logger.WarnwCtx(m.ctx, "Gateway reconnection attempt failed",
			"attempt", attempt,
			"error", err,
		)
	}
}

func (m *Manager) exhaust() {
	m.mu.Lock()
	m.exhausted = true
	m.supervising = false
	attempts := m.reconnectAttempts
	m.mu.Unlock()

	metrics.GatewayReconnectAttemptsTotal.WithLabelValues("exhausted").Inc()
	m.logger.ErrorwCtx(m.ctx, "Giving up on gateway reconnection",
		"attempts", attempts,
	)

	select {
	case m.fatal <- ErrReconnectExhausted:
	default:
	}
}

// Reconnect restarts the supervisor after it gave up.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	switch {
	case m.ctx == nil:
		m.mu.Unlock()
		return ErrNotStarted
	case m.shuttingDown():
		m.mu.Unlock()
		return ErrShutdown
	case m.session != nil || m.supervising:
		m.mu.Unlock()
		return nil
	}
	m.reconnectAttempts = 0
	m.mu.Unlock()

	m.scheduleReconnect()
	return nil
}

// Shutdown closes the current session, stops every background goroutine
// and leaves the manager CLOSED. It is safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.setState(StateClosing)
	s := m.session
	m.session = nil
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s != nil {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("gateway shutdown: %w", ctx.Err())
	}

	m.mu.Lock()
	m.setState(StateClosed)
	m.mu.Unlock()

	return err
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) StateName() string {
	return m.State().String()
}

func (m *Manager) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:             m.state.String(),
		ReconnectAttempts: m.reconnectAttempts,
		Exhausted:         m.exhausted,
	}
	if m.session != nil {
		snap.SessionHandle = m.session.Handle
		last := m.session.LastHeartbeatAt()
		snap.LastHeartbeatAt = &last
	}
	return snap
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
