// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Push-stream message, heartbeat and parse-error rates
//   - Flush counts, batch sizes and notification volume
//   - Dispatcher attempts by outcome, retries and collapsed duplicate calls
//   - Audit journal write throughput
package metrics
