// Package api provides the REST client for the halt management service.
//
// Endpoints used:
//   - POST {ticket_path}: one-time stream access ticket ({"sseTicket": "..."})
//   - GET  {halts_path}: fetch-all snapshot of halt records
//   - POST {mutation_path}: halt mutations, one attempt per call, carrying an
//     Idempotency-Key header
//
// Mutations are not retried here; retry and deduplication live in the
// dispatch package. Reads use doWithRetry with jittered backoff.
package api
