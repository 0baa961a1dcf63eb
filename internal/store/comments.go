package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/hivepress/internal/bridge"
)

// CommentIndex returns dedup key -> local comment id for every comment
// already imported under postID.
func (s *Store) CommentIndex(ctx context.Context, postID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dedup_key, id FROM comments WHERE post_id = ?
	`, postID)
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

// InsertComment stores c unless a comment with the same (post_id, dedup_key)
// exists. Returns the row id and whether this call created it.
func (s *Store) InsertComment(ctx context.Context, c bridge.LocalComment) (int64, bool, error) {
	if c.DedupKey == "" {
		return 0, false, fmt.Errorf("insert comment: dedup key required")
	}
	approval := c.Approval
	if approval == "" {
		approval = bridge.Pending
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO comments (post_id, parent_id, dedup_key, author, author_url, content, approval, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id, dedup_key) DO NOTHING
	`, c.PostID, c.ParentID, c.DedupKey, c.Author, c.AuthorURL, c.Content, string(approval), c.CreatedAt.Unix())
	if err != nil {
		return 0, false, fmt.Errorf("insert comment %s: %w", c.DedupKey, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("get rows affected: %w", err)
	}

	var id int64
	inserted := affected > 0
	if inserted {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("get last insert id: %w", err)
		}
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM comments WHERE post_id = ? AND dedup_key = ?
		`, c.PostID, c.DedupKey).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("get existing comment id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit transaction: %w", err)
	}
	return id, inserted, nil
}

// ListComments returns the comments of postID ordered by id.
func (s *Store) ListComments(ctx context.Context, postID int64) ([]bridge.LocalComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, parent_id, dedup_key, author, author_url, content, approval, created_at
		FROM comments WHERE post_id = ?
		ORDER BY id ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments %d: %w", postID, err)
	}
	defer rows.Close()

	var out []bridge.LocalComment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

func scanComment(rows *sql.Rows) (bridge.LocalComment, error) {
	var (
		c         bridge.LocalComment
		approval  string
		createdAt int64
	)
	err := rows.Scan(&c.ID, &c.PostID, &c.ParentID, &c.DedupKey, &c.Author, &c.AuthorURL, &c.Content, &approval, &createdAt)
	if err != nil {
		return bridge.LocalComment{}, fmt.Errorf("scan comment: %w", err)
	}
	c.Approval = bridge.Approval(approval)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return c, nil
}
