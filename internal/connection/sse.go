package connection

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/rickgao/haltwatch/internal/version"
)

// maxEventSize bounds a single SSE event.
const maxEventSize = 1 << 20

// sseClient reads a text/event-stream response through r3labs/sse with the
// library's reconnect strategy disabled.
type sseClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	cancel context.CancelFunc

	mu        sync.RWMutex
	connected bool
	closed    bool
	stale     bool
	lastData  time.Time
}

// NewSSEClient creates a new SSE stream client.
func NewSSEClient(cfg ClientConfig, logger *slog.Logger) Source {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultClientConfig().BufferSize
	}

	return &sseClient{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// newSubscription builds a one-shot library client for url. The validator
// runs once per handshake; ready is closed when the server accepts.
func (c *sseClient) newSubscription(url string, ready chan<- struct{}) *sse.Client {
	sub := sse.NewClient(url, sse.ClientMaxBufferSize(maxEventSize))

	// No client timeout: the response body lives as long as the stream.
	sub.Connection = &http.Client{}
	sub.ReconnectStrategy = &backoff.StopBackOff{}
	sub.Headers["User-Agent"] = version.UserAgent()
	if c.cfg.Authorization != "" {
		sub.Headers["Authorization"] = c.cfg.Authorization
	}
	sub.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		close(ready)
		return nil
	}
	return sub
}

// Connect issues the stream request and returns once the server has
// accepted it or refused it.
func (c *sseClient) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	// The stream outlives ctx; ctx only bounds the handshake.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	ready := make(chan struct{})
	sub := c.newSubscription(url, ready)

	result := make(chan error, 1)
	go func() {
		result <- sub.SubscribeRawWithContext(streamCtx, c.handle)
	}()

	if err := awaitHandshake(ready, result); err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	c.cancel = cancel
	c.connected = true
	c.lastData = time.Now()
	c.mu.Unlock()

	go c.waitLoop(result)
	if c.cfg.ReadTimeout > 0 {
		go c.watchdogLoop()
	}

	c.logger.Debug("sse stream connected", "url", url)
	return nil
}

// awaitHandshake waits for the server to accept or refuse the stream.
func awaitHandshake(ready <-chan struct{}, result chan error) error {
	select {
	case <-ready:
		return nil
	case err := <-result:
		select {
		case <-ready:
			// Accepted, then ended before we looked.
			result <- err
			return nil
		default:
		}
		if err == nil {
			err = ErrStreamEnded
		}
		return err
	}
}

// Close cancels the request.
func (c *sseClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	cancel := c.cancel
	c.mu.Unlock()

	close(c.done)

	if cancel != nil {
		cancel()
	}
	return nil
}

// Messages returns the messages channel.
func (c *sseClient) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *sseClient) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *sseClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// handle receives each event that carries a field. Only data is forwarded;
// event names and ids carry nothing we use.
func (c *sseClient) handle(ev *sse.Event) {
	c.touch()
	if len(ev.Data) == 0 {
		return
	}

	msg := TimestampedMessage{
		Data:       bytes.Clone(ev.Data),
		ReceivedAt: time.Now(),
	}

	select {
	case c.messages <- msg:
	case <-c.done:
	default:
		c.logger.Warn("message buffer full, dropping message")
	}
}

// waitLoop reports how the subscription ended. A clean EOF from the server
// comes back as a nil error.
func (c *sseClient) waitLoop(result <-chan error) {
	err := <-result

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if err == nil {
		err = ErrStreamEnded
	}
	c.fail(err)
}

func (c *sseClient) touch() {
	c.mu.Lock()
	c.lastData = time.Now()
	c.mu.Unlock()
}

// fail reports err unless Close was called first.
func (c *sseClient) fail(err error) {
	select {
	case <-c.done:
		return
	default:
	}

	c.mu.RLock()
	if c.stale {
		err = ErrStaleConnection
	}
	c.mu.RUnlock()

	select {
	case c.errors <- err:
	default:
	}
}

// watchdogLoop cancels the request when nothing arrives within ReadTimeout.
func (c *sseClient) watchdogLoop() {
	ticker := time.NewTicker(c.cfg.ReadTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			idle := time.Since(c.lastData)
			if idle <= c.cfg.ReadTimeout {
				c.mu.Unlock()
				continue
			}
			c.stale = true
			cancel := c.cancel
			c.mu.Unlock()

			c.logger.Warn("no stream data received, connection stale",
				"idle", idle,
				"timeout", c.cfg.ReadTimeout,
			)
			cancel()
			return
		}
	}
}
