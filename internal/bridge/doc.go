// Package bridge defines the shared data model and error taxonomy for the
// Hive publish/reply-sync bridge.
//
// This package contains types only. Every other internal package imports
// bridge; bridge imports nothing internal.
//
// Key constraints:
//   - Remote items are addressed by (author, permlink); dedup keys are the
//     lower-cased "author/permlink" pair
//   - Reward split weights are basis points (1..10000), never floats
//   - A PublishRecord without an error is final and is never overwritten
//   - A LocalComment is written once and never updated or deleted
package bridge
