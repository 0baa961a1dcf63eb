package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hivepress/internal/bridge"
)

// unknownError fills the error column when a caller records a failure
// without a message; an empty column would read as success.
const unknownError = "unknown error"

// GetPublishRecord loads the publish record for postID.
// The bool is false when no attempt has been recorded.
func (s *Store) GetPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRecordSQL, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return bridge.PublishRecord{}, false, nil
	}
	if err != nil {
		return bridge.PublishRecord{}, false, fmt.Errorf("get publish record %d: %w", postID, err)
	}
	return rec, true, nil
}

// SavePublishSuccess stores a successful publish. An existing error record
// is replaced; an existing success record is kept and returned instead.
func (s *Store) SavePublishSuccess(ctx context.Context, rec bridge.PublishRecord) (bridge.PublishRecord, error) {
	if rec.Author == "" || rec.Permlink == "" {
		return bridge.PublishRecord{}, fmt.Errorf("save publish success %d: author and permlink required", rec.PostID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO publish_records (post_id, author, permlink, tx_ref, error, updated_at)
		VALUES (?, ?, ?, ?, '', ?)
		ON CONFLICT(post_id) DO UPDATE SET
			author = excluded.author,
			permlink = excluded.permlink,
			tx_ref = excluded.tx_ref,
			error = '',
			updated_at = excluded.updated_at
		WHERE publish_records.error != ''
	`, rec.PostID, rec.Author, rec.Permlink, rec.TxRef, s.now().Unix())
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("save publish success %d: %w", rec.PostID, err)
	}

	stored, err := scanRecord(tx.QueryRowContext(ctx, selectRecordSQL, rec.PostID))
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("reload publish record %d: %w", rec.PostID, err)
	}

	if err := tx.Commit(); err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, nil
}

// SavePublishError records a failed attempt. It never overwrites a
// success record.
func (s *Store) SavePublishError(ctx context.Context, postID int64, msg string) error {
	if msg == "" {
		msg = unknownError
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO publish_records (post_id, author, permlink, tx_ref, error, updated_at)
		VALUES (?, '', '', '', ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			error = excluded.error,
			updated_at = excluded.updated_at
		WHERE publish_records.error != ''
	`, postID, msg, s.now().Unix())
	if err != nil {
		return fmt.Errorf("save publish error %d: %w", postID, err)
	}
	return nil
}

// PublishedPostIDs returns the ids of all successfully published posts,
// ascending.
func (s *Store) PublishedPostIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id FROM publish_records
		WHERE error = ''
		ORDER BY post_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate published posts: %w", err)
	}
	return ids, nil
}

const selectRecordSQL = `
	SELECT post_id, author, permlink, tx_ref, error, updated_at
	FROM publish_records WHERE post_id = ?
`

func scanRecord(row *sql.Row) (bridge.PublishRecord, error) {
	var (
		rec       bridge.PublishRecord
		updatedAt int64
	)
	if err := row.Scan(&rec.PostID, &rec.Author, &rec.Permlink, &rec.TxRef, &rec.Error, &updatedAt); err != nil {
		return bridge.PublishRecord{}, err
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}
