// Package model defines the halt entity shapes shared across the client.
//
// Conventions:
//   - haltId is the primary key in every collection and index
//   - Push events are partial records: nil pointer fields mean "not present"
//   - Timestamps are normalized to UTC on decode; Display renders the UI format
//   - Symbols are NFKC-normalized and upper-cased
package model
