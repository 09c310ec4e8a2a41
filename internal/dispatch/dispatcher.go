package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rickgao/haltwatch/internal/api"
	"github.com/rickgao/haltwatch/internal/metrics"
	"github.com/rickgao/haltwatch/internal/model"
)

// ErrInvalidMutation is returned for mutations that fail validation.
var ErrInvalidMutation = errors.New("invalid mutation")

// Poster issues a single POST. Errors that are not transport failures must
// not be retried by the caller.
type Poster interface {
	Post(ctx context.Context, path, idempotencyKey string, body []byte) ([]byte, error)
}

// SessionInvalidator ends the user session after a 401.
type SessionInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Config holds dispatcher settings.
type Config struct {
	MaxRetries int           // Retries after the first attempt. Default: 3
	BaseDelay  time.Duration // Delay before the first retry, doubled each retry. Default: 1s
	RateLimit  float64       // Attempts per second across all operations; 0 disables
	Breaker    bool          // Stop calling a server that keeps failing at the transport level
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Result is the outcome of one logical operation.
type Result struct {
	Body           json.RawMessage // Parsed response body
	IdempotencyKey string          // Token sent on every attempt
	Attempts       int             // Network calls made
	Shared         bool            // Another submit received the same result
}

// Dispatcher deduplicates, retries and sends mutations.
type Dispatcher struct {
	poster  Poster
	session SessionInvalidator
	cfg     Config
	logger  *slog.Logger

	inflight singleflight.Group
	breaker  *gobreaker.CircuitBreaker[[]byte]
	limiter  *rate.Limiter

	sleep       func(ctx context.Context, d time.Duration) error
	newToken    func() string
	isTransient func(err error) bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSession sets the collaborator invalidated on 401.
func WithSession(s SessionInvalidator) Option {
	return func(d *Dispatcher) {
		d.session = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Dispatcher that sends through poster.
func New(poster Poster, cfg Config, opts ...Option) *Dispatcher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}

	d := &Dispatcher{
		poster:      poster,
		cfg:         cfg,
		logger:      slog.Default(),
		sleep:       sleepContext,
		newToken:    uuid.NewString,
		isTransient: api.IsTransport,
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.Breaker {
		d.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "halt-dispatch",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// The server answered, so the transport is healthy.
			IsSuccessful: func(err error) bool {
				return err == nil || !d.isTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				d.logger.Warn("dispatch circuit breaker state change",
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return d
}

// Submit sends m to endpoint. A submit whose key matches an in-flight
// operation waits for that operation and returns its result. The shared
// operation keeps running if ctx ends; only this caller stops waiting.
func (d *Dispatcher) Submit(ctx context.Context, endpoint string, m model.Mutation) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidMutation, err)
	}

	body, err := json.Marshal(m)
	if err != nil {
		return Result{}, fmt.Errorf("marshal mutation: %w", err)
	}

	key := m.Key()
	detached := context.WithoutCancel(ctx)
	ch := d.inflight.DoChan(key, func() (any, error) {
		return d.run(detached, endpoint, m.Action, key, body)
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		if r.Shared {
			res.Shared = true
			metrics.DispatchShared.Inc()
		}
		return res, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// run performs one logical operation: up to 1+MaxRetries attempts with the
// same token, sleeping BaseDelay, 2*BaseDelay, ... between them.
func (d *Dispatcher) run(ctx context.Context, endpoint string, action model.Action, key string, body []byte) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	}()

	res := Result{IdempotencyKey: d.newToken()}
	var lastErr error

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := d.cfg.BaseDelay << (attempt - 1)
			d.logger.Debug("retrying mutation",
				"key", key,
				"attempt", attempt+1,
				"delay", delay,
			)
			if err := d.sleep(ctx, delay); err != nil {
				return res, lastErr
			}
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return res, err
			}
		}

		respBody, err := d.post(ctx, endpoint, res.IdempotencyKey, body)
		res.Attempts = attempt + 1
		if err == nil {
			metrics.DispatchAttempts.WithLabelValues(string(action), "success").Inc()
			res.Body = respBody
			d.logger.Info("mutation accepted",
				"key", key,
				"attempts", res.Attempts,
			)
			return res, nil
		}
		lastErr = err

		if !d.isTransient(err) {
			d.reject(ctx, action, key, err)
			return res, err
		}

		metrics.DispatchAttempts.WithLabelValues(string(action), "transport_error").Inc()
		d.logger.Warn("mutation transport failure",
			"key", key,
			"attempt", attempt+1,
			"error", err,
		)
	}

	d.logger.Error("mutation retries exhausted",
		"key", key,
		"attempts", res.Attempts,
		"error", lastErr,
	)
	return res, lastErr
}

func (d *Dispatcher) post(ctx context.Context, endpoint, token string, body []byte) ([]byte, error) {
	if d.breaker == nil {
		return d.poster.Post(ctx, endpoint, token, body)
	}
	return d.breaker.Execute(func() ([]byte, error) {
		return d.poster.Post(ctx, endpoint, token, body)
	})
}

// reject records a non-retryable failure and ends the session on 401.
func (d *Dispatcher) reject(ctx context.Context, action model.Action, key string, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		metrics.DispatchAttempts.WithLabelValues(string(action), "rejected").Inc()
		d.logger.Warn("mutation failed", "key", key, "error", err)
		return
	}

	metrics.DispatchAttempts.WithLabelValues(string(action), "http_error").Inc()
	d.logger.Warn("mutation rejected by server",
		"key", key,
		"status", apiErr.StatusCode,
		"message", apiErr.Message,
	)

	if apiErr.IsUnauthorized() && d.session != nil {
		if ierr := d.session.Invalidate(ctx); ierr != nil {
			d.logger.Error("session invalidation failed", "error", ierr)
		}
	}
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
