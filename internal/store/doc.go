// Package store is the SQLite-backed job ledger.
//
// Every job the adapter submits is recorded with its latest state and
// status document, so jobs orphaned by a crashed process can be listed
// and deleted later. Tables:
//   - jobs: one row per job, upserted on every transition
//   - transitions: append-only state history per job
//   - solutions: canonical snapshot of the decoded solution
//
// # Ordering
//
// Queries order by seq (an INTEGER autoincrement), then id COLLATE BINARY,
// never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
