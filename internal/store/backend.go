package store

import (
	"context"

	"github.com/roach88/hivepress/internal/bridge"
)

// Backend is the storage surface used by the publish bridge, the
// reconciler and the trigger surfaces. Store and PGStore implement it.
type Backend interface {
	PutPost(ctx context.Context, p bridge.Post) error
	GetPost(ctx context.Context, id int64) (bridge.Post, error)

	GetPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error)
	SavePublishSuccess(ctx context.Context, rec bridge.PublishRecord) (bridge.PublishRecord, error)
	SavePublishError(ctx context.Context, postID int64, msg string) error
	PublishedPostIDs(ctx context.Context) ([]int64, error)

	CommentIndex(ctx context.Context, postID int64) (map[string]int64, error)
	InsertComment(ctx context.Context, c bridge.LocalComment) (int64, bool, error)
	ListComments(ctx context.Context, postID int64) ([]bridge.LocalComment, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*PGStore)(nil)
)

// OpenBackend opens PostgreSQL for postgres:// DSNs and SQLite otherwise.
func OpenBackend(ctx context.Context, dsn string) (Backend, error) {
	if IsPostgresDSN(dsn) {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	s, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}
