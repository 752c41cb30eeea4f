// Package client is the Go network manager for dustline servers: it dials
// the websocket endpoint, joins the match, and surfaces server messages both
// through a polling queue and through per-kind handlers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dustline/server/internal/net/proto"
)

// Config holds the manager's connection settings.
type Config struct {
	// Identity sent in the join request.
	Name    string
	Faction string

	// ConnectTimeout bounds the whole dial plus websocket handshake.
	ConnectTimeout time.Duration

	// HeartbeatInterval is how often the manager pings the server. Keep it
	// under the server's idle timeout or the session gets swept.
	HeartbeatInterval time.Duration

	// QueueSize caps the inbound poll queue. When the consumer falls this
	// far behind, newer messages are dropped with a warning.
	QueueSize int

	Logger *zap.Logger
}

// DefaultConfig returns the settings a typical client wants.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    5 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		QueueSize:         256,
	}
}

// Handler consumes one decoded server message. Handlers run synchronously on
// the read goroutine, so they observe messages in arrival order and must not
// block; returned errors are logged and do not stop delivery.
type Handler func(msg proto.Outbound) error

// Manager owns one client connection to a dustline server. Every inbound
// message is fed to BOTH consumption paths: appended to the bounded queue
// behind Poll/Messages and dispatched to the handlers registered for its
// kind. A Manager is not reusable after Close.
type Manager struct {
	config Config
	logger *zap.Logger

	mu   sync.Mutex // guards conn swaps across Connect/Close
	conn *websocket.Conn

	writeMu sync.Mutex // gorilla allows one concurrent writer

	handlerMu sync.RWMutex
	handlers  map[proto.Kind][]Handler

	inbound chan proto.Outbound

	connected int32 // atomic bool
	closed    int32 // atomic bool
	rttMillis int64 // atomic, last server-reported round trip

	workers sync.WaitGroup
}

// New creates a manager. Zero config fields fall back to DefaultConfig.
func New(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		config:   cfg,
		logger:   cfg.Logger.Named("client"),
		handlers: make(map[proto.Kind][]Handler),
		inbound:  make(chan proto.Outbound, cfg.QueueSize),
	}
}

// Connect dials the server and sends the join request. The handshake is
// bounded by ConnectTimeout measured from the call, not per packet; timeouts
// come back as a ConnectionError wrapping ErrConnectTimeout.
func (m *Manager) Connect(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Checked under the lock so a racing Close cannot slip between the
	// check and the worker start.
	if m.IsClosed() {
		return ErrClosed
	}
	if atomic.LoadInt32(&m.connected) == 1 {
		return ErrAlreadyConnected
	}
	// A previous connection's workers must be fully gone before the conn
	// slot is reused.
	m.workers.Wait()

	dialer := websocket.Dialer{HandshakeTimeout: m.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		m.logger.Error("connect failed", zap.String("url", url), zap.Error(err))
		return dialError(url, err)
	}

	join, err := proto.Encode(proto.KindJoin, proto.JoinRequest{
		Name:    m.config.Name,
		Faction: m.config.Faction,
	}, time.Now())
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, join)
	}
	if err != nil {
		_ = conn.Close()
		m.logger.Error("join send failed", zap.String("url", url), zap.Error(err))
		return &ConnectionError{URL: url, Err: err}
	}

	m.conn = conn
	atomic.StoreInt32(&m.connected, 1)

	stop := make(chan struct{})
	m.workers.Add(2)
	go m.readPump(conn, stop)
	go m.heartbeatLoop(conn, stop)

	m.logger.Info("connected",
		zap.String("url", url),
		zap.String("name", m.config.Name),
		zap.String("faction", m.config.Faction))
	return nil
}

// dialError classifies a handshake failure. Deadline and net timeouts map to
// ErrConnectTimeout; everything else keeps its cause.
func dialError(url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ConnectionError{URL: url, Err: ErrConnectTimeout}
	}
	return &ConnectionError{URL: url, Err: err}
}

// SendCommand ships one command to the server, fire and forget. When the
// manager is not connected the command is dropped with a warning; a send
// that fails on a live connection is logged, never retried, never returned.
func (m *Manager) SendCommand(kind string, data any) {
	if atomic.LoadInt32(&m.connected) == 0 {
		m.logger.Warn("dropping command, not connected", zap.String("commandKind", kind))
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		m.logger.Warn("dropping command, payload not marshalable",
			zap.String("commandKind", kind), zap.Error(err))
		return
	}
	frame, err := proto.Encode(proto.KindCommand, proto.CommandRequest{
		CommandKind: kind,
		Data:        raw,
	}, time.Now())
	if err != nil {
		m.logger.Warn("dropping command, encode failed",
			zap.String("commandKind", kind), zap.Error(err))
		return
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		m.logger.Warn("dropping command, not connected", zap.String("commandKind", kind))
		return
	}

	m.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	m.writeMu.Unlock()
	if err != nil && !m.IsClosed() {
		m.logger.Warn("command send failed", zap.String("commandKind", kind), zap.Error(err))
	}
}

// OnMessage registers a handler for one message kind. Handlers fire in
// registration order, after the message was queued for polling.
func (m *Manager) OnMessage(kind proto.Kind, handler Handler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handlers[kind] = append(m.handlers[kind], handler)
}

// Messages exposes the inbound queue for range or select consumers. The
// channel closes when the manager does.
func (m *Manager) Messages() <-chan proto.Outbound {
	return m.inbound
}

// Poll pops the oldest queued message without blocking. ok is false when the
// queue is empty or the manager is closed.
func (m *Manager) Poll() (msg proto.Outbound, ok bool) {
	select {
	case msg, ok = <-m.inbound:
		return msg, ok
	default:
		return nil, false
	}
}

// RTT reports the last round trip the server measured from our heartbeats,
// zero until the first echo arrives.
func (m *Manager) RTT() time.Duration {
	return time.Duration(atomic.LoadInt64(&m.rttMillis)) * time.Millisecond
}

// IsConnected reports whether the socket is believed live.
func (m *Manager) IsConnected() bool {
	return atomic.LoadInt32(&m.connected) == 1
}

// IsClosed reports whether Close was called.
func (m *Manager) IsClosed() bool {
	return atomic.LoadInt32(&m.closed) == 1
}

// Close shuts the connection down and releases the manager. It is
// idempotent; later calls return nil without side effects.
func (m *Manager) Close() error {
	if !atomic.CompareAndSwapInt32(&m.closed, 0, 1) {
		return nil
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"), deadline)
		_ = conn.Close()
	}

	m.workers.Wait()
	atomic.StoreInt32(&m.connected, 0)
	close(m.inbound)
	m.logger.Info("client closed")
	return nil
}

// readPump decodes every inbound frame and hands it to deliver. It owns the
// connected flag: when the read side dies, the manager is disconnected and
// the heartbeat loop is told to stand down.
func (m *Manager) readPump(conn *websocket.Conn, stop chan struct{}) {
	defer m.workers.Done()
	defer close(stop)
	defer atomic.StoreInt32(&m.connected, 0)
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.IsClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Info("server closed the connection")
			} else {
				m.logger.Warn("connection lost", zap.Error(err))
			}
			return
		}

		env, err := proto.DecodeEnvelope(data)
		if err != nil {
			m.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		msg, err := proto.DecodeOutbound(env)
		if err != nil {
			m.logger.Warn("dropping unreadable payload",
				zap.String("kind", string(env.Kind)), zap.Error(err))
			continue
		}

		if hb, ok := msg.(proto.Heartbeat); ok && hb.RTTMillis > 0 {
			atomic.StoreInt64(&m.rttMillis, hb.RTTMillis)
		}
		m.deliver(env.Kind, msg)
	}
}

// deliver fans one message into both consumption paths: the poll queue and
// the registered handlers. Both see the same message, so handler side
// effects and queue draining are not mutually exclusive.
func (m *Manager) deliver(kind proto.Kind, msg proto.Outbound) {
	select {
	case m.inbound <- msg:
	default:
		m.logger.Warn("inbound queue full, dropping message", zap.String("kind", string(kind)))
	}

	m.handlerMu.RLock()
	handlers := m.handlers[kind]
	m.handlerMu.RUnlock()

	for _, handler := range handlers {
		if err := handler(msg); err != nil {
			m.logger.Warn("message handler failed",
				zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

// heartbeatLoop pings the server on a fixed cadence so the session survives
// the idle sweep. The server echoes each ping back with its RTT measurement.
func (m *Manager) heartbeatLoop(conn *websocket.Conn, stop chan struct{}) {
	defer m.workers.Done()

	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			frame, err := proto.Encode(proto.KindHeartbeat, proto.Heartbeat{
				SentAt: time.Now().UnixMilli(),
			}, time.Now())
			if err != nil {
				continue
			}
			m.writeMu.Lock()
			err = conn.WriteMessage(websocket.TextMessage, frame)
			m.writeMu.Unlock()
			if err != nil {
				if !m.IsClosed() {
					m.logger.Warn("heartbeat send failed", zap.Error(err))
				}
				// The read pump notices the dead conn and winds down.
			}
		case <-stop:
			return
		}
	}
}
