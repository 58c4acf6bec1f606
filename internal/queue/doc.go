// Package queue persists background jobs and coordinates their ownership
// across worker processes.
//
// A Store hands each queued job to exactly one worker at a time through an
// atomic Acquire, records progress and heartbeats while the job runs, and
// applies the terminal transitions (completed, failed) or a release back to
// queued. Ownership is a lease: a job whose heartbeat is older than the lock
// timeout becomes eligible for Acquire again, so a crashed worker never
// strands work. Execution is therefore at-least-once and handlers must be
// idempotent.
//
// Two backends share the same semantics. SQLiteStore relies on SQLite's
// single-writer lock and retries on SQLITE_BUSY. PostgresStore uses
// FOR UPDATE SKIP LOCKED and degrades to a compare-and-set update when the
// server rejects row locking. Open picks the backend from the store URL.
package queue
