package connection

import (
	"context"
	"fmt"
	"log/slog"
)

// Source represents a single push-stream connection.
type Source interface {
	// Connect opens the stream at url.
	Connect(ctx context.Context, url string) error

	// Close closes the stream. Safe to call more than once.
	Close() error

	// Messages returns a channel of payloads in arrival order.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel that receives at most one transport error.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// Factory creates a fresh, unconnected Source.
type Factory func() Source

// NewFactory returns a Factory for the given transport.
func NewFactory(transport Transport, cfg ClientConfig, logger *slog.Logger) (Factory, error) {
	switch transport {
	case TransportSSE, "":
		return func() Source { return NewSSEClient(cfg, logger) }, nil
	case TransportWebSocket:
		return func() Source { return NewWSClient(cfg, logger) }, nil
	default:
		return nil, fmt.Errorf("unknown stream transport %q", transport)
	}
}
