// Package watcher runs the halt stream as a supervised service.
//
// One Serve call bootstraps a stream ticket, seeds the store from the
// fetch-all endpoint, opens the engine and then blocks until the stream
// fails or the context ends. The engine never reconnects on its own; the
// supervisor restarting Serve is the reconnection policy.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/rickgao/haltwatch/internal/api"
	"github.com/rickgao/haltwatch/internal/auth"
	"github.com/rickgao/haltwatch/internal/model"
)

// Bootstrapper is the REST side of a stream start. *api.Client satisfies it.
type Bootstrapper interface {
	StreamTicket(ctx context.Context) (string, error)
	ListHalts(ctx context.Context) ([]model.HaltRecord, error)
}

// Stream is the engine side. *reconcile.Engine satisfies it.
type Stream interface {
	Open(ctx context.Context, url string) error
	Errors() <-chan error
}

// Seeder receives the fetch-all snapshot. *reconcile.Store satisfies it.
type Seeder interface {
	Seed(records []model.HaltRecord)
}

// SessionInvalidator ends the session after a 401.
type SessionInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Watcher is a suture.Service keeping one halt stream open.
type Watcher struct {
	boot      Bootstrapper
	stream    Stream
	store     Seeder
	streamURL string
	session   SessionInvalidator
	logger    *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSession sets the collaborator invalidated on 401.
func WithSession(s SessionInvalidator) Option {
	return func(w *Watcher) {
		w.session = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a Watcher for the stream at streamURL.
func New(boot Bootstrapper, stream Stream, store Seeder, streamURL string, opts ...Option) *Watcher {
	w := &Watcher{
		boot:      boot,
		stream:    stream,
		store:     store,
		streamURL: streamURL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Serve implements suture.Service. A stream failure is returned so the
// supervisor restarts Serve after its backoff. A missing or expired session
// terminates the supervisor tree.
func (w *Watcher) Serve(ctx context.Context) error {
	ticket, err := w.boot.StreamTicket(ctx)
	if err != nil {
		return w.bootstrapError(ctx, "stream ticket", err)
	}

	records, err := w.boot.ListHalts(ctx)
	if err != nil {
		return w.bootstrapError(ctx, "list halts", err)
	}
	w.store.Seed(records)
	w.logger.Info("seeded halt snapshot", "halts", len(records))

	url, err := api.StreamURL(w.streamURL, ticket)
	if err != nil {
		return fmt.Errorf("stream url: %w", err)
	}

	// Drop an error left over from a previous connection.
	select {
	case <-w.stream.Errors():
	default:
	}

	if err := w.stream.Open(ctx, url); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-w.stream.Errors():
		return fmt.Errorf("halt stream: %w", err)
	}
}

func (w *Watcher) bootstrapError(ctx context.Context, op string, err error) error {
	if errors.Is(err, auth.ErrNoToken) || errors.Is(err, auth.ErrTokenExpired) {
		w.logger.Error("session ended, stopping watcher", "op", op, "error", err)
		return suture.ErrTerminateSupervisorTree
	}
	if api.IsUnauthorized(err) && w.session != nil {
		if ierr := w.session.Invalidate(ctx); ierr != nil {
			w.logger.Error("session invalidation failed", "error", ierr)
		}
	}
	w.logger.Warn("stream bootstrap failed", "op", op, "error", err)
	return err
}

// String implements fmt.Stringer for suture logging.
func (w *Watcher) String() string {
	return "halt-watcher"
}

// SupervisorConfig holds restart policy settings.
type SupervisorConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// NewSupervisor creates a supervisor that logs its events through logger.
func NewSupervisor(name string, cfg SupervisorConfig, logger *slog.Logger) *suture.Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	return suture.New(name, suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}
