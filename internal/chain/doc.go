// Package chain holds the Hive wire types and the JSON-RPC client used by
// the publish bridge and the reply fetcher.
//
// Operations are typed variants (CommentOp, CommentOptionsOp) and are only
// turned into the chain's ["name", {...}] pair encoding at marshal time.
// Client methods classify failures into bridge TRANSPORT and
// REMOTE_REJECTION errors; callers never see raw RPC errors.
package chain
