package store

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivepress/internal/bridge"
)

// backendFactory returns an empty backend.
type backendFactory func(t *testing.T) Backend

func TestSQLiteBackend(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) Backend {
		return createTestStore(t)
	})
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("HIVEPRESS_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("HIVEPRESS_TEST_POSTGRES not set")
	}
	runBackendSuite(t, func(t *testing.T) Backend {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, dsn)
		require.NoError(t, err)
		_, err = s.Pool.Exec(ctx, `TRUNCATE posts, publish_records, comments RESTART IDENTITY`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func runBackendSuite(t *testing.T, open backendFactory) {
	t.Run("PostRoundTrip", func(t *testing.T) { testPostRoundTrip(t, open(t)) })
	t.Run("PostNotFound", func(t *testing.T) { testPostNotFound(t, open(t)) })
	t.Run("RecordMissing", func(t *testing.T) { testRecordMissing(t, open(t)) })
	t.Run("ErrorThenSuccess", func(t *testing.T) { testErrorThenSuccess(t, open(t)) })
	t.Run("SuccessIsSticky", func(t *testing.T) { testSuccessIsSticky(t, open(t)) })
	t.Run("ConcurrentSuccess", func(t *testing.T) { testConcurrentSuccess(t, open(t)) })
	t.Run("PublishedPostIDs", func(t *testing.T) { testPublishedPostIDs(t, open(t)) })
	t.Run("InsertCommentDedup", func(t *testing.T) { testInsertCommentDedup(t, open(t)) })
	t.Run("CommentIndexPerPost", func(t *testing.T) { testCommentIndexPerPost(t, open(t)) })
	t.Run("ListCommentsOrdered", func(t *testing.T) { testListCommentsOrdered(t, open(t)) })
}

func testPostRoundTrip(t *testing.T, b Backend) {
	ctx := context.Background()
	post := bridge.Post{
		ID:        7,
		Title:     "Hello World!!",
		Content:   "<!-- wp:paragraph --><p>Hi</p><!-- /wp:paragraph -->",
		Permalink: "https://blog.example/hello",
		Tags:      []string{"hive", "blog"},
		Splits:    []bridge.SplitRequest{{Account: "alice", Share: "10"}},
		Status:    bridge.PostPublished,
	}
	require.NoError(t, b.PutPost(ctx, post))

	got, err := b.GetPost(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, post, got)

	post.Title = "Edited"
	post.Tags = nil
	post.Splits = nil
	require.NoError(t, b.PutPost(ctx, post))

	got, err = b.GetPost(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Title)
	assert.Nil(t, got.Tags)
	assert.Nil(t, got.Splits)
}

func testPostNotFound(t *testing.T, b Backend) {
	_, err := b.GetPost(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func testRecordMissing(t *testing.T, b Backend) {
	_, ok, err := b.GetPublishRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testErrorThenSuccess(t *testing.T, b Backend) {
	ctx := context.Background()

	require.NoError(t, b.SavePublishError(ctx, 1, "TRANSPORT: broadcast failed"))
	rec, ok, err := b.GetPublishRecord(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, rec.OK())
	assert.Equal(t, "TRANSPORT: broadcast failed", rec.Error)

	// A second failure replaces the first.
	require.NoError(t, b.SavePublishError(ctx, 1, ""))
	rec, _, err = b.GetPublishRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, unknownError, rec.Error)

	stored, err := b.SavePublishSuccess(ctx, bridge.PublishRecord{
		PostID: 1, Author: "alice", Permlink: "hello-world-1", TxRef: "abc",
	})
	require.NoError(t, err)
	assert.True(t, stored.OK())
	assert.Equal(t, "hello-world-1", stored.Permlink)
	assert.Equal(t, "abc", stored.TxRef)
	assert.Empty(t, stored.Error)
}

func testSuccessIsSticky(t *testing.T, b Backend) {
	ctx := context.Background()

	first, err := b.SavePublishSuccess(ctx, bridge.PublishRecord{
		PostID: 2, Author: "alice", Permlink: "first-1", TxRef: "tx1",
	})
	require.NoError(t, err)

	// Errors never overwrite success.
	require.NoError(t, b.SavePublishError(ctx, 2, "REMOTE_REJECTION: duplicate"))

	// A later success returns the existing record unchanged.
	second, err := b.SavePublishSuccess(ctx, bridge.PublishRecord{
		PostID: 2, Author: "alice", Permlink: "second-2", TxRef: "tx2",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rec, ok, err := b.GetPublishRecord(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first-1", rec.Permlink)
	assert.True(t, rec.OK())
}

func testConcurrentSuccess(t *testing.T, b Backend) {
	ctx := context.Background()

	const n = 8
	results := make([]bridge.PublishRecord, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := b.SavePublishSuccess(ctx, bridge.PublishRecord{
				PostID: 3, Author: "alice", Permlink: "p-" + string(rune('a'+i)),
			})
			assert.NoError(t, err)
			results[i] = rec
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0].Permlink, r.Permlink, "all writers must observe the winner")
	}
}

func testPublishedPostIDs(t *testing.T, b Backend) {
	ctx := context.Background()

	_, err := b.SavePublishSuccess(ctx, bridge.PublishRecord{PostID: 9, Author: "a", Permlink: "p9"})
	require.NoError(t, err)
	require.NoError(t, b.SavePublishError(ctx, 5, "VALIDATION: empty title"))
	_, err = b.SavePublishSuccess(ctx, bridge.PublishRecord{PostID: 4, Author: "a", Permlink: "p4"})
	require.NoError(t, err)

	ids, err := b.PublishedPostIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)
}

func testInsertCommentDedup(t *testing.T, b Backend) {
	ctx := context.Background()

	c := createTestComment(1, "Bob", "re-hello")
	id, inserted, err := b.InsertComment(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, id)

	again, inserted, err := b.InsertComment(ctx, c)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id, again)

	comments, err := b.ListComments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "bob/re-hello", comments[0].DedupKey)
	assert.Equal(t, bridge.Pending, comments[0].Approval)
	assert.True(t, fixedNow.Equal(comments[0].CreatedAt))
}

func testCommentIndexPerPost(t *testing.T, b Backend) {
	ctx := context.Background()

	id1, _, err := b.InsertComment(ctx, createTestComment(1, "bob", "r1"))
	require.NoError(t, err)
	_, _, err = b.InsertComment(ctx, createTestComment(2, "carol", "r2"))
	require.NoError(t, err)

	index, err := b.CommentIndex(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"bob/r1": id1}, index)

	empty, err := b.CommentIndex(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testListCommentsOrdered(t *testing.T, b Backend) {
	ctx := context.Background()

	parentID, _, err := b.InsertComment(ctx, createTestComment(1, "bob", "r1"))
	require.NoError(t, err)

	child := createTestComment(1, "carol", "r2")
	child.ParentID = parentID
	child.Approval = bridge.Approved
	_, _, err = b.InsertComment(ctx, child)
	require.NoError(t, err)

	comments, err := b.ListComments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "bob", comments[0].Author)
	assert.Equal(t, int64(0), comments[0].ParentID)
	assert.Equal(t, parentID, comments[1].ParentID)
	assert.Equal(t, bridge.Approved, comments[1].Approval)
}
