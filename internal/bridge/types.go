package bridge

import (
	"strings"
	"time"
)

// Post is a locally authored CMS post as gathered by the publish bridge.
type Post struct {
	ID        int64          `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	Content   string         `json:"content" yaml:"content"`
	Permalink string         `json:"permalink" yaml:"permalink"` // canonical URL on the CMS
	Tags      []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Splits    []SplitRequest `json:"splits,omitempty" yaml:"splits,omitempty"`
	Status    string         `json:"status" yaml:"status"` // "draft" | "published"
}

// Post status values.
const (
	PostDraft     = "draft"
	PostPublished = "published"
)

// PublishRecord is the durable outcome of publishing a post to the chain.
//
// A record with an empty Error is the success pointer consumed by the reply
// fetcher. An error record may be overwritten by a later attempt; a success
// record never is.
type PublishRecord struct {
	PostID    int64     `json:"post_id"`
	Author    string    `json:"author,omitempty"`
	Permlink  string    `json:"permlink,omitempty"`
	TxRef     string    `json:"tx_ref,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OK reports whether the record points at a published remote item.
func (r PublishRecord) OK() bool {
	return r.Error == "" && r.Author != "" && r.Permlink != ""
}

// SplitRequest is a requested reward split as entered by the author.
// Share is a percentage ("10", "12.5") and is parsed by the encoder.
type SplitRequest struct {
	Account string `json:"account" yaml:"account"`
	Share   string `json:"share" yaml:"share"`
}

// RewardSplit is an encoded beneficiary: recipient plus basis points.
type RewardSplit struct {
	Account string `json:"account"`
	Weight  uint16 `json:"weight"`
}

// RemoteReply is a reply from the remote reply tree. Read-only.
// Empty parent fields mean the reply targets the published item itself.
type RemoteReply struct {
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Body           string `json:"body"`
	Created        string `json:"created"`
}

// DedupKey returns the lower-cased "author/permlink" key for the reply.
func (r RemoteReply) DedupKey() string {
	return DedupKey(r.Author, r.Permlink)
}

// ParentKey returns the dedup key of the reply's parent, or "" for replies
// without a parent reference.
func (r RemoteReply) ParentKey() string {
	if r.ParentAuthor == "" || r.ParentPermlink == "" {
		return ""
	}
	return DedupKey(r.ParentAuthor, r.ParentPermlink)
}

// DedupKey builds the lower-cased "author/permlink" key.
func DedupKey(author, permlink string) string {
	return strings.ToLower(author + "/" + permlink)
}

// Approval is the moderation state of a local comment.
type Approval string

const (
	Approved Approval = "approved"
	Pending  Approval = "pending"
)

// LocalComment is a CMS comment imported from a remote reply.
// ParentID 0 means top-level.
type LocalComment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	ParentID  int64     `json:"parent_id"`
	DedupKey  string    `json:"dedup_key"`
	Author    string    `json:"author"`
	AuthorURL string    `json:"author_url,omitempty"`
	Content   string    `json:"content"`
	Approval  Approval  `json:"approval"`
	CreatedAt time.Time `json:"created_at"`
}
