// Package reconcile folds push-stream halt events into the categorized
// collections.
//
// Data flow:
//
//	Source -> Engine.enqueue (heartbeats dropped) -> pending buffer
//	       -> one flush per frame -> Merger over a local copy -> Store commit
//	       -> Notifier (de-duplicated messages) and flush observers
//
// The Store is the only shared state. Every commit replaces the whole
// snapshot, so readers never observe a partially applied flush. The Engine
// does not reconnect on its own: a transport error closes the connection and
// is reported on Errors(); the caller decides when to Open again.
//
// Callers that dispatch mutations in the same process may write the accepted
// record with Store.Provisional; the next event for that haltId wins.
package reconcile
