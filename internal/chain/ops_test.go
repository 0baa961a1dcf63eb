package chain

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivepress/internal/bridge"
)

func testComment(t *testing.T) CommentOp {
	t.Helper()
	meta, err := EncodeMetadata(Metadata{Tags: []string{"test"}, App: "hivepress/0.1.0", Format: "html"})
	require.NoError(t, err)
	return CommentOp{
		Author:       "operator",
		Permlink:     "hello-world-1",
		Title:        "Hello World!!",
		Body:         "Hello",
		JSONMetadata: meta,
	}
}

func TestOperations_PairEncoding(t *testing.T) {
	ops := Operations{testComment(t)}
	data, err := json.Marshal(ops)
	require.NoError(t, err)

	var pairs [][]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &pairs))
	require.Len(t, pairs, 1)
	require.Len(t, pairs[0], 2)
	assert.JSONEq(t, `"comment"`, string(pairs[0][0]))

	var body map[string]any
	require.NoError(t, json.Unmarshal(pairs[0][1], &body))
	assert.Equal(t, "", body["parent_author"])
	assert.Equal(t, "", body["parent_permlink"])
	assert.Equal(t, "operator", body["author"])
}

func TestNewCommentOptions_SortsCopy(t *testing.T) {
	splits := []bridge.RewardSplit{{Account: "bob", Weight: 500}, {Account: "alice", Weight: 1000}}
	op := NewCommentOptions("operator", "p", splits)

	require.Len(t, op.Extensions, 1)
	assert.Equal(t, "alice", op.Extensions[0].Beneficiaries[0].Account)
	assert.Equal(t, "bob", op.Extensions[0].Beneficiaries[1].Account)
	// Input order untouched.
	assert.Equal(t, "bob", splits[0].Account)
}

func TestBeneficiariesExtension_Encoding(t *testing.T) {
	ext := BeneficiariesExtension{Beneficiaries: []bridge.RewardSplit{{Account: "alice", Weight: 1000}}}
	data, err := json.Marshal(ext)
	require.NoError(t, err)
	assert.JSONEq(t, `[0, {"beneficiaries": [{"account": "alice", "weight": 1000}]}]`, string(data))
}

func TestEncodeMetadata_EmptyTags(t *testing.T) {
	meta, err := EncodeMetadata(Metadata{App: "a", Format: "html"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags": [], "app": "a", "format": "html"}`, meta)
}

func TestTransaction_CommentOnly(t *testing.T) {
	tx := NewTransaction(testComment(t))
	assert.Equal(t, []string{OpComment}, tx.Operations.Names())

	data, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.NotContains(t, string(data), OpCommentOptions)
	assert.Contains(t, string(data), `"signatures":[]`)
}

func TestTransaction_Golden(t *testing.T) {
	c := testComment(t)
	splits := []bridge.RewardSplit{{Account: "bob", Weight: 500}, {Account: "alice", Weight: 1000}}
	tx := NewTransaction(c, NewCommentOptions(c.Author, c.Permlink, splits))

	data, err := json.MarshalIndent(tx, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "comment_with_beneficiaries", append(data, '\n'))
}

func TestDigest_Stable(t *testing.T) {
	tx := NewTransaction(testComment(t))
	a, err := Digest(tx)
	require.NoError(t, err)
	b, err := Digest(tx)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other := testComment(t)
	other.Permlink = "hello-world-2"
	c, err := Digest(NewTransaction(other))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
