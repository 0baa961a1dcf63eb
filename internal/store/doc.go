// Package store provides durable storage for hivepress publish records,
// imported comments and the host posts they belong to.
//
// Two backends implement Backend:
//   - Store: SQLite (default), one file, WAL mode
//   - PGStore: PostgreSQL via a pgx connection pool
//
// # Critical Patterns
//
// Success is sticky: a publish_records row with an empty error column is
// never overwritten. Both SavePublishSuccess and SavePublishError are single
// upserts guarded by that condition, so a lost race returns the winner's row.
//
// Comment dedup: UNIQUE(post_id, dedup_key) with ON CONFLICT DO NOTHING.
// A conflicting insert reports inserted=false and the existing row id.
//
// Listing queries order by id ascending so results are stable across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
