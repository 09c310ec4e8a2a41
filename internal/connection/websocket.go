package connection

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/haltwatch/internal/version"
)

// wsClient implements Source over a WebSocket connection.
type wsClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Delivery to the engine
	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Guarded by mu
	mu         sync.RWMutex
	connected  bool
	lastPingAt time.Time
	closed     bool
}

// NewWSClient creates a new WebSocket stream client.
func NewWSClient(cfg ClientConfig, logger *slog.Logger) Source {
	if logger == nil {
		logger = slog.Default()
	}
	// Zero values fall back to the defaults
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultClientConfig().BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultClientConfig().WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultClientConfig().PingInterval
	}

	return &wsClient{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials url. http(s) schemes are rewritten to ws(s).
func (c *wsClient) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	// Handshake headers
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())
	if c.cfg.Authorization != "" {
		header.Set("Authorization", c.cfg.Authorization)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// ctx bounds the handshake only
	conn, resp, err := dialer.DialContext(ctx, toWebSocketURL(url), header)
	if err != nil {
		// A refused upgrade still carries the HTTP status
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	// Server pings count as liveness; answer with a pong.
	conn.SetPingHandler(func(data string) error {
		c.markAlive()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// Pongs answering our keepalive pings
	conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	// Reader and keepalive run until Close or the first error
	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("websocket stream connected", "url", url)
	return nil
}

// Close gracefully closes the connection.
func (c *wsClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	// Stop the loops before tearing down the socket
	close(c.done)

	if conn != nil {
		// Best effort close frame
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// Messages returns the messages channel.
func (c *wsClient) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *wsClient) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *wsClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop reads frames and forwards them to the messages channel.
func (c *wsClient) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			c.report(err)
			return
		}

		msg := TimestampedMessage{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message")
		}
	}
}

// heartbeatLoop pings the server and reports a stale connection.
func (c *wsClient) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			// Keepalive ping; the pong refreshes lastPingAt
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			if c.cfg.ReadTimeout > 0 && time.Since(lastPing) > c.cfg.ReadTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.ReadTimeout,
				)
				c.report(ErrStaleConnection)
				return
			}
		}
	}
}

func (c *wsClient) markAlive() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// report delivers err once. Errors after Close are dropped.
func (c *wsClient) report(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.errors <- err:
	default:
	}
}

// toWebSocketURL maps http(s) stream URLs onto ws(s).
func toWebSocketURL(url string) string {
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		return "ws://" + rest
	}
	return url
}
