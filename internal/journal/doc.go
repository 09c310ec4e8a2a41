// Package journal writes an append-only audit trail of applied halt events
// to PostgreSQL.
//
// The Writer is registered as a reconcile.FlushObserver. Rows accumulate in
// memory and are flushed with pgx.Batch when the batch is full or on a
// ticker. Inserts use ON CONFLICT DO NOTHING, so replaying the same event is
// harmless.
package journal
