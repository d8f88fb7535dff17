package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// Frame is an inbound message from the FinX socket. The server either
// acknowledges authentication or delivers a result keyed by the cache_key that
// was sent with the request.
type Frame struct {
	CacheKey        string          `json:"cache_key,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	Message         json.RawMessage `json:"message,omitempty"`
	Error           json.RawMessage `json:"error,omitempty"`
	IsAuthenticated *bool           `json:"is_authenticated,omitempty"`
}

// HasError reports whether the frame carries a non-null error field.
func (f *Frame) HasError() bool {
	return !types.IsNullJSON([]byte(f.Error))
}

// Payload returns the result payload, falling back to the message field when
// data is absent.
func (f *Frame) Payload() []byte {
	if !types.IsNullJSON([]byte(f.Data)) {
		return []byte(f.Data)
	}
	return []byte(f.Message)
}

// Handler receives every result frame. It runs on the read goroutine.
type Handler func(*Frame)

// Manager manages a single authenticated WebSocket connection to the FinX API.
type Manager struct {
	url             string
	apiKey          string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          Config
	handler         Handler
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex // guards conn and authed
	writeMu         sync.Mutex
	authed          chan struct{} // closed once the server acknowledges the credential
	started         atomic.Bool
	connected       atomic.Bool
	authenticated   atomic.Bool
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64 // Unix timestamp of connection start
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	APIKey                string
	DialTimeout           time.Duration
	WriteTimeout          time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	ReconnectMaxAttempts  int
	Logger                *zap.Logger
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
		MaxAttempts:       cfg.ReconnectMaxAttempts,
	}

	return &Manager{
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		authed:       make(chan struct{}),
	}
}

// Start opens the connection, sends the credential frame and begins delivering
// result frames to handler.
func (m *Manager) Start(handler Handler) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("websocket manager already started")
	}

	m.handler = handler
	m.logger.Info("websocket-manager-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	if m.config.PingInterval > 0 {
		m.wg.Add(1)
		go m.pingLoop()
	}

	return nil
}

// connect dials the socket, sends the credential and starts a read loop for
// the new connection.
func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	m.logger.Info("connecting-to-websocket", zap.String("url", m.url))

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	now := time.Now()
	m.connected.Store(true)
	m.lastPongTime.Store(now.Unix())
	m.connectionStart.Store(now.Unix())
	ActiveConnections.Set(1)

	m.logger.Info("websocket-connected")

	// The credential must be the first frame on every connection.
	err = m.write(ctx, conn, map[string]string{types.FieldAPIKey: m.apiKey})
	if err != nil {
		m.markDisconnected(conn)
		conn.Close()
		return fmt.Errorf("send credential: %w", err)
	}

	m.wg.Add(1)
	go m.readLoop(conn)

	return nil
}

// readLoop reads frames from conn until it fails or the manager closes.
func (m *Manager) readLoop(conn *websocket.Conn) {
	defer m.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-m.ctx.Done():
				return
			default:
			}

			m.logger.Warn("read-error", zap.Error(err))
			m.markDisconnected(conn)
			return
		}

		start := time.Now()

		var frame Frame
		err = json.Unmarshal(message, &frame)
		if err != nil {
			messageStr := string(message)
			previewLen := len(messageStr)
			if previewLen > 100 {
				previewLen = 100
			}
			m.logger.Warn("websocket-unparseable-message",
				zap.Error(err),
				zap.Int("bytes", len(message)),
				zap.String("preview", messageStr[:previewLen]))
			MessagesDroppedTotal.WithLabelValues("malformed").Inc()
			continue
		}

		if frame.IsAuthenticated != nil {
			MessagesReceivedTotal.WithLabelValues("auth").Inc()
			m.handleAuth(*frame.IsAuthenticated)
			continue
		}

		if frame.CacheKey == "" {
			m.logger.Warn("websocket-frame-missing-cache-key", zap.Int("bytes", len(message)))
			MessagesDroppedTotal.WithLabelValues("missing_cache_key").Inc()
			continue
		}

		if frame.HasError() {
			MessagesReceivedTotal.WithLabelValues("error").Inc()
		} else {
			MessagesReceivedTotal.WithLabelValues("result").Inc()
		}

		if m.handler != nil {
			m.handler(&frame)
		}

		MessageLatencySeconds.Observe(time.Since(start).Seconds())
	}
}

func (m *Manager) handleAuth(ok bool) {
	if !ok {
		AuthenticationsTotal.WithLabelValues("rejected").Inc()
		m.logger.Warn("socket-authentication-rejected")
		return
	}

	m.mu.Lock()
	if !m.authenticated.Load() {
		m.authenticated.Store(true)
		close(m.authed)
	}
	m.mu.Unlock()

	AuthenticationsTotal.WithLabelValues("accepted").Inc()
	m.logger.Info("socket-authenticated")
}

// markDisconnected resets connection and authentication state if conn is still
// the current connection.
func (m *Manager) markDisconnected(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		return
	}

	startTime := m.connectionStart.Load()
	if startTime > 0 {
		ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
	}

	m.connected.Store(false)
	ActiveConnections.Set(0)

	if m.authenticated.Load() {
		m.authenticated.Store(false)
		m.authed = make(chan struct{})
	}

	m.logger.Info("socket-closed")
}

// WaitAuthenticated blocks until the server acknowledges the credential or
// timeout elapses. Callers released together proceed in no particular order.
func (m *Manager) WaitAuthenticated(ctx context.Context, timeout time.Duration) error {
	if m.authenticated.Load() {
		return nil
	}

	m.mu.RLock()
	authed := m.authed
	m.mu.RUnlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-authed:
		return nil
	case <-timer.C:
		return types.ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes payload as a JSON text frame.
func (m *Manager) Send(ctx context.Context, payload any) error {
	if !m.connected.Load() {
		return types.ErrNotConnected
	}

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil {
		return types.ErrNotConnected
	}

	err := m.write(ctx, conn, payload)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

func (m *Manager) write(ctx context.Context, conn *websocket.Conn, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	deadline := time.Now().Add(m.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	err = conn.SetWriteDeadline(deadline)
	if err != nil {
		return err
	}

	err = conn.WriteMessage(websocket.TextMessage, data)
	if err != nil {
		return err
	}

	MessagesSentTotal.Inc()

	return nil
}

// Reconnect re-establishes a dropped connection with exponential backoff. It is
// a no-op while connected.
func (m *Manager) Reconnect(ctx context.Context) error {
	if m.connected.Load() {
		return nil
	}

	m.logger.Warn("connection-lost-initiating-reconnect")

	err := m.reconnectMgr.Reconnect(ctx, m.connect)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	return nil
}

// pingLoop sends periodic PING messages.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// IsConnected reports whether the socket is open.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// IsAuthenticated reports whether the current connection has been acknowledged.
func (m *Manager) IsAuthenticated() bool {
	return m.authenticated.Load()
}

// LastPong returns the time the last pong was received.
func (m *Manager) LastPong() time.Time {
	return time.Unix(m.lastPongTime.Load(), 0)
}

// Close gracefully closes the WebSocket manager.
func (m *Manager) Close() error {
	m.logger.Info("closing-websocket-manager")

	m.cancel()

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}

	m.wg.Wait()

	m.connected.Store(false)
	m.authenticated.Store(false)
	ActiveConnections.Set(0)

	m.logger.Info("websocket-manager-closed")

	return nil
}
