// Package store persists procedure lifecycle records in SQLite.
//
// Every trace belongs to a session, one per scenario run or CLI
// invocation. Records are keyed by (session_id, seq) and written with
// ON CONFLICT DO NOTHING, so replaying the same session is idempotent.
//
// # Ordering
//
// All reads order by seq ASC. Wall-clock time is never stored; seq is
// the logical clock stamped by the procedure registry.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Records must reference an existing session
package store
