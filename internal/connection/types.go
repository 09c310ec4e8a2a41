package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no data within read timeout)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrStreamEnded     = errors.New("stream ended by server")
)

// StatusError is returned when the stream endpoint rejects the handshake.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream handshake rejected: %s", e.Status)
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // One JSON payload
	ReceivedAt time.Time // Local timestamp when the payload was complete
}

// Transport selects the Source implementation.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// ClientConfig holds settings shared by all transports.
type ClientConfig struct {
	// Authorization header value, e.g. "Bearer ...". Optional; stream
	// tickets normally carry authorization in the URL.
	Authorization string

	BufferSize   int           // Default: 1000
	ReadTimeout  time.Duration // Default: 60s, 0 disables the stale check
	WriteTimeout time.Duration // Default: 5s (WebSocket control frames)
	PingInterval time.Duration // Default: 30s (WebSocket only)
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:   1000,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}
