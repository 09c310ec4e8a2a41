package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/haltwatch/internal/connection"
	"github.com/rickgao/haltwatch/internal/metrics"
	"github.com/rickgao/haltwatch/internal/model"
	"github.com/rickgao/haltwatch/internal/router"
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("engine closed")

// Notifier receives the de-duplicated messages of one flush.
type Notifier interface {
	Notify(messages []string)
}

// Applied is one event committed by a flush.
type Applied struct {
	Event      model.HaltEvent
	Collection model.CollectionName // "" when the event changed nothing
	Raw        []byte               // Payload as received
}

// FlushObserver is called after each commit with the events it applied.
type FlushObserver func(applied []Applied)

// Config holds Engine settings.
type Config struct {
	BufferSize int // Initial pending buffer capacity. Default: 1000
}

// Stats contains engine counters.
type Stats struct {
	Flushes       int64
	EventsApplied int64
	Skipped       int64 // malformed payloads
	StreamErrors  int64
}

// Engine owns the push-stream connection and commits batched events to a
// Store once per frame.
type Engine struct {
	store    *Store
	factory  connection.Factory
	decoder  *router.Decoder
	merger   *Merger
	notifier Notifier
	sched    Scheduler
	logger   *slog.Logger

	observers []FlushObserver

	// openMu serializes Open calls; flushMu serializes flushes with each
	// other and with Close.
	openMu  sync.Mutex
	flushMu sync.Mutex

	mu         sync.Mutex
	source     connection.Source
	stopPump   chan struct{}
	gen        uint64
	buffer     *router.GrowableBuffer[router.Pending]
	scheduled  bool
	cancelNext func()
	closed     bool

	errs chan error

	flushes      atomic.Int64
	applied      atomic.Int64
	skipped      atomic.Int64
	streamErrors atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler replaces the frame timer.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithNotifier sets where flush notifications go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithFlushObserver adds an observer of committed events.
func WithFlushObserver(fn FlushObserver) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, fn)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine writing to store. factory supplies a fresh
// Source for every Open.
func NewEngine(cfg Config, store *Store, factory connection.Factory, opts ...Option) *Engine {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}

	e := &Engine{
		store:   store,
		factory: factory,
		sched:   FrameScheduler{Interval: DefaultFrameInterval},
		logger:  slog.Default(),
		buffer:  router.NewGrowableBuffer[router.Pending](cfg.BufferSize),
		errs:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.decoder = router.NewDecoder(e.logger)
	e.merger = NewMerger(e.logger)

	return e
}

// Open connects to url, replacing any live connection. Events already
// buffered from a previous connection are kept.
func (e *Engine) Open(ctx context.Context, url string) error {
	e.openMu.Lock()
	defer e.openMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.detachLocked()
	e.mu.Unlock()

	src := e.factory()
	if err := src.Connect(ctx, url); err != nil {
		src.Close()
		return fmt.Errorf("open stream: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		src.Close()
		return ErrClosed
	}
	e.gen++
	e.source = src
	e.stopPump = make(chan struct{})
	go e.pump(src, e.gen, e.stopPump)
	e.mu.Unlock()

	metrics.StreamConnected.Set(1)
	e.logger.Info("halt stream opened")
	return nil
}

// Close disconnects, cancels a scheduled flush and discards buffered
// events. No flush runs after Close returns.
func (e *Engine) Close() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.cancelNext != nil {
		e.cancelNext()
		e.cancelNext = nil
	}
	e.scheduled = false
	if n := e.buffer.Reset(); n > 0 {
		e.logger.Debug("discarded buffered events on close", "count", n)
	}
	e.buffer.Close()
	e.detachLocked()

	e.logger.Info("halt engine closed")
	return nil
}

// Errors delivers transport errors. After one arrives the engine stays
// disconnected until Open is called again.
func (e *Engine) Errors() <-chan error {
	return e.errs
}

// Connected reports whether a stream is currently attached.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source != nil
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *Store {
	return e.store
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Flushes:       e.flushes.Load(),
		EventsApplied: e.applied.Load(),
		Skipped:       e.skipped.Load(),
		StreamErrors:  e.streamErrors.Load(),
	}
}

// DecoderStats returns the decoder's counters.
func (e *Engine) DecoderStats() router.Stats {
	return e.decoder.Stats()
}

// detachLocked closes the live source, if any. Caller holds e.mu.
func (e *Engine) detachLocked() {
	if e.source == nil {
		return
	}
	close(e.stopPump)
	if err := e.source.Close(); err != nil {
		e.logger.Debug("error closing stream", "error", err)
	}
	e.source = nil
	e.stopPump = nil
	metrics.StreamConnected.Set(0)
}

// pump forwards one source's messages until it fails or is replaced.
func (e *Engine) pump(src connection.Source, gen uint64, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg := <-src.Messages():
			e.enqueue(gen, msg)
		case err := <-src.Errors():
			e.fail(gen, err)
			return
		}
	}
}

// enqueue buffers a data payload and schedules a flush if none is pending.
func (e *Engine) enqueue(gen uint64, msg connection.TimestampedMessage) {
	if e.decoder.Classify(msg.Data) == router.KindHeartbeat {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.gen {
		return
	}
	e.buffer.Send(router.Pending{Data: msg.Data, ReceivedAt: msg.ReceivedAt})

	if !e.scheduled {
		e.scheduled = true
		e.cancelNext = e.sched.Schedule(e.flush)
	}
}

// fail closes the connection that produced err and reports it.
func (e *Engine) fail(gen uint64, err error) {
	e.mu.Lock()
	if e.closed || gen != e.gen || e.source == nil {
		e.mu.Unlock()
		return
	}
	e.detachLocked()
	e.mu.Unlock()

	e.streamErrors.Add(1)
	metrics.StreamErrors.Inc()
	e.logger.Error("halt stream failed, connection closed", "error", err)

	// Keep only the latest error for the caller.
	select {
	case <-e.errs:
	default:
	}
	select {
	case e.errs <- err:
	default:
	}
}

// flush applies every buffered event in arrival order and commits once.
func (e *Engine) flush() {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.scheduled = false
	e.cancelNext = nil
	batch := e.buffer.Drain()
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	events := make([]model.HaltEvent, 0, len(batch))
	decoded := make([]router.Pending, 0, len(batch))
	for _, p := range batch {
		ev, err := e.decoder.Decode(p)
		if err != nil {
			e.skipped.Add(1)
			e.logger.Warn("skipping malformed halt event",
				"error", err,
				"payload", truncate(p.Data, 256),
			)
			continue
		}
		events = append(events, ev)
		decoded = append(decoded, p)
	}

	var notes Notes
	applied := make([]Applied, 0, len(events))
	if len(events) > 0 {
		e.store.Update(func(snap *model.Snapshot) bool {
			for i, ev := range events {
				where := e.merger.Apply(snap, ev, &notes)
				applied = append(applied, Applied{
					Event:      ev,
					Collection: where,
					Raw:        decoded[i].Data,
				})
			}
			return true
		})
	}

	e.flushes.Add(1)
	e.applied.Add(int64(len(applied)))
	metrics.Flushes.Inc()
	metrics.FlushBatchSize.Observe(float64(len(batch)))

	e.logger.Debug("flush committed",
		"events", len(applied),
		"skipped", len(batch)-len(applied),
		"notifications", notes.Len(),
	)

	if e.notifier != nil && notes.Len() > 0 {
		e.notifier.Notify(notes.List())
	}
	if len(applied) > 0 {
		for _, fn := range e.observers {
			fn(applied)
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
