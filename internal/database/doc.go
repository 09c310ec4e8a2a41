// Package database provides the PostgreSQL connection pool for the audit
// journal.
package database
