// Package connection implements push-stream transports.
//
// A Source is an EventSource-like handle: Connect once, read Messages until
// Errors reports a transport failure, then Close. Sources never reconnect on
// their own; the caller owns reconnection policy and opens a fresh Source.
//
// Transports:
//   - SSE: text/event-stream over HTTP via r3labs/sse, one payload per event
//   - WebSocket: one JSON payload per text frame
package connection
