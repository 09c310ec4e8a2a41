package journal

import "time"

// Config contains configuration for the journal writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// Schema creates the halt_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS halt_events (
	event_key   TEXT PRIMARY KEY,
	halt_id     TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	halt_type   TEXT NOT NULL,
	status      TEXT NOT NULL,
	state       TEXT NOT NULL,
	collection  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS halt_events_halt_id_idx ON halt_events (halt_id, received_at);
`

// eventRow represents a row for the halt_events table.
type eventRow struct {
	EventKey   string // sha256 of payload and receive time
	HaltID     string
	Symbol     string
	HaltType   string
	Status     string
	State      string
	Collection string // "" when the event changed nothing
	Payload    []byte // JSONB
	ReceivedAt time.Time
}

// Stats holds writer counters.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
