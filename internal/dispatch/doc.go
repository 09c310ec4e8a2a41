// Package dispatch sends halt mutations to the server at most once per
// logical operation.
//
// A logical operation is identified by Mutation.Key (action plus haltId, or
// symbol when no halt exists yet). Concurrent submits for the same key share
// one in-flight call and its result. Each operation gets one idempotency
// token, reused on every retry. Only transport failures are retried; an HTTP
// error response is returned immediately, and a 401 also invalidates the
// session.
package dispatch
