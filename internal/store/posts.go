package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/hivepress/internal/bridge"
)

// PutPost inserts or replaces a host post.
func (s *Store) PutPost(ctx context.Context, p bridge.Post) error {
	tags, splits, err := marshalPostLists(p)
	if err != nil {
		return err
	}
	status := p.Status
	if status == "" {
		status = bridge.PostDraft
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, content, permalink, tags, splits, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			permalink = excluded.permalink,
			tags = excluded.tags,
			splits = excluded.splits,
			status = excluded.status
	`, p.ID, p.Title, p.Content, p.Permalink, tags, splits, status)
	if err != nil {
		return fmt.Errorf("put post %d: %w", p.ID, err)
	}
	return nil
}

// GetPost loads a host post. Returns ErrNotFound when absent.
func (s *Store) GetPost(ctx context.Context, id int64) (bridge.Post, error) {
	var (
		p            bridge.Post
		tags, splits string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, permalink, tags, splits, status
		FROM posts WHERE id = ?
	`, id).Scan(&p.ID, &p.Title, &p.Content, &p.Permalink, &tags, &splits, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
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

func marshalPostLists(p bridge.Post) (string, string, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	splits := p.Splits
	if splits == nil {
		splits = []bridge.SplitRequest{}
	}
	tb, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("marshal tags: %w", err)
	}
	sb, err := json.Marshal(splits)
	if err != nil {
		return "", "", fmt.Errorf("marshal splits: %w", err)
	}
	return string(tb), string(sb), nil
}

func unmarshalPostLists(p *bridge.Post, tags, splits string) error {
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return fmt.Errorf("post %d: decode tags: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(splits), &p.Splits); err != nil {
		return fmt.Errorf("post %d: decode splits: %w", p.ID, err)
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	if len(p.Splits) == 0 {
		p.Splits = nil
	}
	return nil
}
