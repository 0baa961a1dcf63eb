package chain

import (
	"encoding/json"
	"sort"

	"github.com/roach88/hivepress/internal/bridge"
)

// Operation names on the wire.
const (
	OpComment        = "comment"
	OpCommentOptions = "comment_options"
)

// Defaults for comment_options.
const (
	DefaultMaxAcceptedPayout = "1000000.000 HBD"
	DefaultPercentHBD        = 10000
)

// Operation is a typed chain operation.
type Operation interface {
	OpName() string
}

// CommentOp creates a post or reply. Root posts leave both parent fields
// empty.
type CommentOp struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

// OpName implements Operation.
func (CommentOp) OpName() string { return OpComment }

// CommentOptionsOp sets payout options and the beneficiaries extension.
type CommentOptionsOp struct {
	Author               string                   `json:"author"`
	Permlink             string                   `json:"permlink"`
	MaxAcceptedPayout    string                   `json:"max_accepted_payout"`
	PercentHBD           uint16                   `json:"percent_hbd"`
	AllowVotes           bool                     `json:"allow_votes"`
	AllowCurationRewards bool                     `json:"allow_curation_rewards"`
	Extensions           []BeneficiariesExtension `json:"extensions"`
}

// OpName implements Operation.
func (CommentOptionsOp) OpName() string { return OpCommentOptions }

// NewCommentOptions returns comment_options carrying splits as
// beneficiaries. The chain requires beneficiaries sorted by account, so a
// sorted copy is used; splits itself is not modified.
func NewCommentOptions(author, permlink string, splits []bridge.RewardSplit) CommentOptionsOp {
	sorted := make([]bridge.RewardSplit, len(splits))
	copy(sorted, splits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Account < sorted[j].Account })

	return CommentOptionsOp{
		Author:               author,
		Permlink:             permlink,
		MaxAcceptedPayout:    DefaultMaxAcceptedPayout,
		PercentHBD:           DefaultPercentHBD,
		AllowVotes:           true,
		AllowCurationRewards: true,
		Extensions:           []BeneficiariesExtension{{Beneficiaries: sorted}},
	}
}

// BeneficiariesExtension is comment_options extension 0.
type BeneficiariesExtension struct {
	Beneficiaries []bridge.RewardSplit
}

// MarshalJSON encodes the extension as [0, {"beneficiaries": [...]}].
func (e BeneficiariesExtension) MarshalJSON() ([]byte, error) {
	body := struct {
		Beneficiaries []bridge.RewardSplit `json:"beneficiaries"`
	}{e.Beneficiaries}
	return json.Marshal([2]any{0, body})
}

// Operations is an ordered operation list.
type Operations []Operation

// MarshalJSON encodes each operation as a ["name", {...}] pair.
func (ops Operations) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, len(ops))
	for i, op := range ops {
		pairs[i] = [2]any{op.OpName(), op}
	}
	return json.Marshal(pairs)
}

// Names returns the operation names in order.
func (ops Operations) Names() []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.OpName()
	}
	return names
}

// Metadata is the json_metadata payload of a published post.
type Metadata struct {
	Tags         []string `json:"tags"`
	App          string   `json:"app"`
	Format       string   `json:"format"`
	CanonicalURL string   `json:"canonical_url,omitempty"`
}

// EncodeMetadata returns m as the JSON string carried by CommentOp.
func EncodeMetadata(m Metadata) (string, error) {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
