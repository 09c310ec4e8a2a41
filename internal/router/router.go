package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/rickgao/haltwatch/internal/metrics"
	"github.com/rickgao/haltwatch/internal/model"
)

// ErrMissingHaltID is returned for payloads that cannot be keyed.
var ErrMissingHaltID = errors.New("event has no haltId")

// Decoder classifies and decodes push-stream payloads.
type Decoder struct {
	logger *slog.Logger

	received    atomic.Int64
	heartbeats  atomic.Int64
	decoded     atomic.Int64
	parseErrors atomic.Int64
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Classify reports whether data is a heartbeat. Payloads that fail the
// envelope parse are classified as data so the flush can log them.
func (d *Decoder) Classify(data []byte) Kind {
	d.received.Add(1)
	metrics.StreamMessages.Inc()

	var env heartbeatEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Heartbeat {
		d.heartbeats.Add(1)
		metrics.StreamHeartbeats.Inc()
		return KindHeartbeat
	}
	return KindData
}

// Decode parses a pending payload into a HaltEvent.
func (d *Decoder) Decode(p Pending) (model.HaltEvent, error) {
	var ev model.HaltEvent
	if err := json.Unmarshal(p.Data, &ev); err != nil {
		d.parseFailed()
		return model.HaltEvent{}, fmt.Errorf("decode halt event: %w", err)
	}
	if ev.HaltID == "" {
		d.parseFailed()
		return model.HaltEvent{}, ErrMissingHaltID
	}

	if ev.Symbol != nil {
		sym := model.NormalizeSymbol(*ev.Symbol)
		ev.Symbol = &sym
	}
	ev.ReceivedAt = p.ReceivedAt
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	d.decoded.Add(1)
	return ev, nil
}

func (d *Decoder) parseFailed() {
	d.parseErrors.Add(1)
	metrics.StreamParseErrors.Inc()
}

// Stats returns current counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Received:    d.received.Load(),
		Heartbeats:  d.heartbeats.Load(),
		Decoded:     d.decoded.Load(),
		ParseErrors: d.parseErrors.Load(),
	}
}
