package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/hivepress/internal/bridge"
)

// fixedNow is the clock used by test stores.
var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new SQLite store in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestComment creates a comment with minimal required fields.
func createTestComment(postID int64, author, permlink string) bridge.LocalComment {
	return bridge.LocalComment{
		PostID:    postID,
		DedupKey:  bridge.DedupKey(author, permlink),
		Author:    author,
		AuthorURL: "https://peakd.com/@" + author,
		Content:   "<p>reply by " + author + "</p>",
		Approval:  bridge.Pending,
		CreatedAt: fixedNow,
	}
}
