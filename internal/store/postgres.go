package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/hivepress/internal/bridge"
)

// PGStore is the PostgreSQL backend. Same tables and guarantees as Store.
type PGStore struct {
	Pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PGStore{Pool: pool, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			permalink TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			splits JSONB NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'draft'
		)`,
		`CREATE TABLE IF NOT EXISTS publish_records (
			post_id BIGINT PRIMARY KEY,
			author TEXT NOT NULL DEFAULT '',
			permlink TEXT NOT NULL DEFAULT '',
			tx_ref TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL,
			parent_id BIGINT NOT NULL DEFAULT 0,
			dedup_key TEXT NOT NULL,
			author TEXT NOT NULL,
			author_url TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			approval TEXT NOT NULL CHECK (approval IN ('approved', 'pending')),
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (post_id, dedup_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id)`,
		`CREATE INDEX IF NOT EXISTS idx_publish_records_ok ON publish_records(post_id) WHERE error = ''`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PGStore) Close() error {
	s.Pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PGStore) PutPost(ctx context.Context, p bridge.Post) error {
	tags, splits, err := marshalPostLists(p)
	if err != nil {
		return err
	}
	status := p.Status
	if status == "" {
		status = bridge.PostDraft
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO posts (id, title, content, permalink, tags, splits, status)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			permalink = EXCLUDED.permalink,
			tags = EXCLUDED.tags,
			splits = EXCLUDED.splits,
			status = EXCLUDED.status
	`, p.ID, p.Title, p.Content, p.Permalink, tags, splits, status)
	if err != nil {
		return fmt.Errorf("put post %d: %w", p.ID, err)
	}
	return nil
}

func (s *PGStore) GetPost(ctx context.Context, id int64) (bridge.Post, error) {
	var (
		p            bridge.Post
		tags, splits string
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT id, title, content, permalink, tags::text, splits::text, status
		FROM posts WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Content, &p.Permalink, &tags, &splits, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return bridge.Post{}, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return bridge.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	if err := unmarshalPostLists(&p, tags, splits); err != nil {
		return bridge.Post{}, err
	}
	return p, nil
}

func (s *PGStore) GetPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error) {
	rec, err := scanPGRecord(s.Pool.QueryRow(ctx, pgSelectRecordSQL, postID))
	if errors.Is(err, pgx.ErrNoRows) {
		return bridge.PublishRecord{}, false, nil
	}
	if err != nil {
		return bridge.PublishRecord{}, false, fmt.Errorf("get publish record %d: %w", postID, err)
	}
	return rec, true, nil
}

func (s *PGStore) SavePublishSuccess(ctx context.Context, rec bridge.PublishRecord) (bridge.PublishRecord, error) {
	if rec.Author == "" || rec.Permlink == "" {
		return bridge.PublishRecord{}, fmt.Errorf("save publish success %d: author and permlink required", rec.PostID)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO publish_records (post_id, author, permlink, tx_ref, error, updated_at)
		VALUES ($1, $2, $3, $4, '', $5)
		ON CONFLICT (post_id) DO UPDATE SET
			author = EXCLUDED.author,
			permlink = EXCLUDED.permlink,
			tx_ref = EXCLUDED.tx_ref,
			error = '',
			updated_at = EXCLUDED.updated_at
		WHERE publish_records.error <> ''
	`, rec.PostID, rec.Author, rec.Permlink, rec.TxRef, s.now().UTC())
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("save publish success %d: %w", rec.PostID, err)
	}

	stored, err := scanPGRecord(tx.QueryRow(ctx, pgSelectRecordSQL, rec.PostID))
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("reload publish record %d: %w", rec.PostID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, nil
}

func (s *PGStore) SavePublishError(ctx context.Context, postID int64, msg string) error {
	if msg == "" {
		msg = unknownError
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO publish_records (post_id, author, permlink, tx_ref, error, updated_at)
		VALUES ($1, '', '', '', $2, $3)
		ON CONFLICT (post_id) DO UPDATE SET
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
		WHERE publish_records.error <> ''
	`, postID, msg, s.now().UTC())
	if err != nil {
		return fmt.Errorf("save publish error %d: %w", postID, err)
	}
	return nil
}

func (s *PGStore) PublishedPostIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT post_id FROM publish_records WHERE error = '' ORDER BY post_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan published posts: %w", err)
	}
	return ids, nil
}

func (s *PGStore) CommentIndex(ctx context.Context, postID int64) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT dedup_key, id FROM comments WHERE post_id = $1`, postID)
	if err != nil {
		return nil, fmt.Errorf("load comment index %d: %w", postID, err)
	}
	defer rows.Close()

	index := make(map[string]int64)
	for rows.Next() {
		var (
			key string
			id  int64
		)
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("scan comment index: %w", err)
		}
		index[key] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment index: %w", err)
	}
	return index, nil
}

func (s *PGStore) InsertComment(ctx context.Context, c bridge.LocalComment) (int64, bool, error) {
	if c.DedupKey == "" {
		return 0, false, fmt.Errorf("insert comment: dedup key required")
	}
	approval := c.Approval
	if approval == "" {
		approval = bridge.Pending
	}

	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO comments (post_id, parent_id, dedup_key, author, author_url, content, approval, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (post_id, dedup_key) DO NOTHING
		RETURNING id
	`, c.PostID, c.ParentID, c.DedupKey, c.Author, c.AuthorURL, c.Content, string(approval), c.CreatedAt.UTC()).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("insert comment %s: %w", c.DedupKey, err)
	}

	err = s.Pool.QueryRow(ctx, `
		SELECT id FROM comments WHERE post_id = $1 AND dedup_key = $2
	`, c.PostID, c.DedupKey).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("get existing comment id: %w", err)
	}
	return id, false, nil
}

func (s *PGStore) ListComments(ctx context.Context, postID int64) ([]bridge.LocalComment, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, post_id, parent_id, dedup_key, author, author_url, content, approval, created_at
		FROM comments WHERE post_id = $1
		ORDER BY id ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments %d: %w", postID, err)
	}
	defer rows.Close()

	var out []bridge.LocalComment
	for rows.Next() {
		var (
			c        bridge.LocalComment
			approval string
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.ParentID, &c.DedupKey, &c.Author, &c.AuthorURL, &c.Content, &approval, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Approval = bridge.Approval(approval)
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

const pgSelectRecordSQL = `
	SELECT post_id, author, permlink, tx_ref, error, updated_at
	FROM publish_records WHERE post_id = $1
`

func scanPGRecord(row pgx.Row) (bridge.PublishRecord, error) {
	var rec bridge.PublishRecord
	if err := row.Scan(&rec.PostID, &rec.Author, &rec.Permlink, &rec.TxRef, &rec.Error, &rec.UpdatedAt); err != nil {
		return bridge.PublishRecord{}, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

