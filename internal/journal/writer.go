package journal

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/haltwatch/internal/metrics"
	"github.com/rickgao/haltwatch/internal/reconcile"
)

// DB is the subset of *pgxpool.Pool the writer needs.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Writer batches applied events into halt_events.
type Writer struct {
	cfg    Config
	db     DB
	logger *slog.Logger

	batch   []eventRow
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats Stats
}

// NewWriter creates a new Writer.
func NewWriter(cfg Config, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
		ctx:    context.Background(),
	}
}

// EnsureSchema creates the journal table if it does not exist.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Start begins the periodic flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop ends the flush loop and writes what remains.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush
	return w.flushContext(ctx)
}

// Observe is a reconcile.FlushObserver.
func (w *Writer) Observe(applied []reconcile.Applied) {
	rows := make([]eventRow, 0, len(applied))
	for _, a := range applied {
		rows = append(rows, transform(a))
	}

	w.batchMu.Lock()
	w.batch = append(w.batch, rows...)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	ctx := w.ctx
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	_ = w.flushContext(ctx)
}

// flushContext writes the current batch. A failed batch is dropped and
// counted; the journal never blocks reconciliation.
func (w *Writer) flushContext(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("journal batch insert failed", "error", err, "count", len(batch))
		metrics.JournalErrors.Inc()
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return err
	}

	metrics.JournalRows.Add(float64(len(batch) - conflicts))
	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed halt events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO halt_events (event_key, halt_id, symbol, halt_type, status, state, collection, payload, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (event_key) DO NOTHING
		`, r.EventKey, r.HaltID, r.Symbol, r.HaltType, r.Status, r.State, r.Collection, r.Payload, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// transform converts an applied event to an eventRow.
func transform(a reconcile.Applied) eventRow {
	ev := a.Event
	payload := a.Raw
	if !json.Valid(payload) {
		payload, _ = json.Marshal(ev)
	}
	return eventRow{
		EventKey:   eventKey(a.Raw, ev.ReceivedAt),
		HaltID:     ev.HaltID,
		Symbol:     ev.SymbolValue(),
		HaltType:   string(ev.TypeValue()),
		Status:     string(ev.StatusValue()),
		State:      string(ev.StateValue()),
		Collection: string(a.Collection),
		Payload:    payload,
		ReceivedAt: ev.ReceivedAt.UTC(),
	}
}

func eventKey(raw []byte, receivedAt time.Time) string {
	h := sha256.New()
	h.Write(raw)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(receivedAt.UnixNano()))
	h.Write(ts[:])
	return hex.EncodeToString(h.Sum(nil))
}
