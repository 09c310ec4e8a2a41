// Package router decodes raw push-stream payloads into halt events.
//
// The router:
//   - Drops heartbeat messages before they reach reconciliation
//   - Decodes the remaining payloads into partial model.HaltEvent updates
//   - Normalizes symbols and timestamps on the way in
//   - Holds the pending buffer the reconciliation engine flushes once per frame
package router
