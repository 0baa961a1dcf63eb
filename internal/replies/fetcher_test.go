package replies

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/chain"
	"github.com/roach88/hivepress/internal/testutil"
)

func reply(author, permlink, parentAuthor, parentPermlink string) bridge.RemoteReply {
	return bridge.RemoteReply{
		Author:         author,
		Permlink:       permlink,
		ParentAuthor:   parentAuthor,
		ParentPermlink: parentPermlink,
		Body:           "body of " + permlink,
		Created:        "2024-03-01T10:00:00",
	}
}

func thread(n int) []bridge.RemoteReply {
	out := make([]bridge.RemoteReply, n)
	for i := range out {
		out[i] = reply(fmt.Sprintf("user%d", i), fmt.Sprintf("re-%d", i), "operator", "post")
	}
	return out
}

func newFetcher(t *testing.T, node *testutil.Node, opts ...Option) *Fetcher {
	t.Helper()
	c, err := chain.Dial(context.Background(), chain.ClientConfig{URL: node.URL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return New(c, opts...)
}

func TestFetchAllReplies_SinglePage(t *testing.T) {
	node := testutil.NewNode(t)
	node.AddThread("operator", "post", thread(3)...)
	f := newFetcher(t, node)

	got, err := f.FetchAllReplies(context.Background(), "operator", "post", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "re-0", got[0].Permlink)
	assert.Equal(t, "re-2", got[2].Permlink)
	assert.Equal(t, 1, node.ListCalls())
}

func TestFetchAllReplies_Paginates(t *testing.T) {
	node := testutil.NewNode(t)
	node.AddThread("operator", "post", thread(7)...)
	f := newFetcher(t, node, WithPageSize(3))

	got, err := f.FetchAllReplies(context.Background(), "operator", "post", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 7)
	for i, r := range got {
		assert.Equal(t, fmt.Sprintf("re-%d", i), r.Permlink)
	}
	assert.Greater(t, node.ListCalls(), 1)
}

func TestFetchAllReplies_NoReplies(t *testing.T) {
	node := testutil.NewNode(t)
	f := newFetcher(t, node)

	got, err := f.FetchAllReplies(context.Background(), "operator", "post", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchAllReplies_StartAndMax(t *testing.T) {
	node := testutil.NewNode(t)
	node.AddThread("operator", "post", thread(10)...)
	f := newFetcher(t, node, WithPageSize(4))

	got, err := f.FetchAllReplies(context.Background(), "operator", "post", 2, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "re-2", got[0].Permlink)
	assert.Equal(t, "re-6", got[4].Permlink)
}

func TestFetchAllReplies_FailureDiscardsPartial(t *testing.T) {
	node := testutil.NewNode(t)
	node.AddThread("operator", "post", thread(10)...)
	node.FailListAt(2)
	f := newFetcher(t, node, WithPageSize(3))

	got, err := f.FetchAllReplies(context.Background(), "operator", "post", 0, 0)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, bridge.IsRemoteRejection(err))
}

func TestFetchAllReplies_Validation(t *testing.T) {
	f := New(&stubLister{})
	ctx := context.Background()

	_, err := f.FetchAllReplies(ctx, "", "post", 0, 0)
	assert.True(t, bridge.IsValidationError(err))

	_, err = f.FetchAllReplies(ctx, "operator", "", 0, 0)
	assert.True(t, bridge.IsValidationError(err))

	_, err = f.FetchAllReplies(ctx, "operator", "post", -1, 0)
	assert.True(t, bridge.IsValidationError(err))
}

type stubLister struct {
	pages [][]chain.Comment
	calls int
	err   error
}

func (s *stubLister) ListComments(_ context.Context, _ chain.ListCommentsParams) ([]chain.Comment, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.pages) {
		s.calls++
		return nil, nil
	}
	page := s.pages[s.calls]
	s.calls++
	return page, nil
}

func comment(author, permlink string) chain.Comment {
	return chain.Comment{
		RemoteReply:  reply(author, permlink, "operator", "post"),
		RootAuthor:   "operator",
		RootPermlink: "post",
	}
}

func TestFetchAllReplies_StopsWhenNoProgress(t *testing.T) {
	// A node that keeps answering with the cursor item only.
	stuck := []chain.Comment{comment("a", "1"), comment("b", "2")}
	lister := &stubLister{pages: [][]chain.Comment{stuck, stuck, stuck}}
	f := New(lister, WithPageSize(2))

	got, err := f.FetchAllReplies(context.Background(), "operator", "post", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, lister.calls)
}

func TestFetchAllReplies_PropagatesClassifiedError(t *testing.T) {
	lister := &stubLister{err: bridge.NewTransportError("list comments", errors.New("timeout"))}
	f := New(lister)

	_, err := f.FetchAllReplies(context.Background(), "operator", "post", 0, 0)
	assert.True(t, bridge.IsTransportError(err))
}

func TestFetchAllReplies_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(&stubLister{}, WithRate(1))

	_, err := f.FetchAllReplies(ctx, "operator", "post", 0, 0)
	require.Error(t, err)
	assert.True(t, bridge.IsTransportError(err))
}

func TestWithPageSize_Clamps(t *testing.T) {
	assert.Equal(t, MinPageSize, New(nil, WithPageSize(0)).pageSize)
	assert.Equal(t, MaxPageSize, New(nil, WithPageSize(5000)).pageSize)
	assert.Equal(t, 50, New(nil, WithPageSize(50)).pageSize)
}
