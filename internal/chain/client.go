package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/roach88/hivepress/internal/bridge"
)

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 30 * time.Second

// BroadcastResult is the node's answer to broadcast_transaction.
// Nodes that broadcast asynchronously return an empty object.
type BroadcastResult struct {
	ID       string `json:"id,omitempty"`
	BlockNum int64  `json:"block_num,omitempty"`
}

// ListCommentsParams are the database_api.list_comments arguments.
type ListCommentsParams struct {
	Start []string `json:"start"`
	Limit int      `json:"limit"`
	Order string   `json:"order"`
}

// Comment is one entry of a list_comments page.
type Comment struct {
	bridge.RemoteReply
	RootAuthor   string `json:"root_author"`
	RootPermlink string `json:"root_permlink"`
}

// ListCommentsResult is a list_comments page.
type ListCommentsResult struct {
	Comments []Comment `json:"comments"`
}

// methods is filled in by go-jsonrpc.
type methods struct {
	BroadcastTransaction func(ctx context.Context, tx Transaction) (BroadcastResult, error)              `rpc_method:"broadcast_transaction"`
	ListComments         func(ctx context.Context, params jsonrpc.RawParams) (ListCommentsResult, error) `rpc_method:"database_api.list_comments"`
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// URL is the node's HTTP(S) JSON-RPC endpoint.
	URL string

	// Token is sent as a bearer token when set (signing relays).
	Token string

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client talks to a Hive node over JSON-RPC.
type Client struct {
	api     methods
	closer  jsonrpc.ClientCloser
	timeout time.Duration
	log     *slog.Logger
}

// Dial creates a client for cfg.URL. No request is made until the first
// call.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, bridge.NewConfigurationError("node url is not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	c := &Client{timeout: timeout, log: logger}
	closer, err := jsonrpc.NewMergeClient(ctx, cfg.URL, "hive",
		[]interface{}{&c.api},
		header,
		jsonrpc.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	c.closer = closer
	return c, nil
}

// Close releases the client.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Broadcast submits tx. Failures are TRANSPORT or REMOTE_REJECTION errors.
func (c *Client) Broadcast(ctx context.Context, tx Transaction) (BroadcastResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.api.BroadcastTransaction(ctx, tx)
	if err != nil {
		c.log.Debug("broadcast failed", "error", err, "elapsed", time.Since(start))
		return BroadcastResult{}, classify("broadcast", err)
	}
	c.log.Debug("broadcast accepted", "id", res.ID, "ops", tx.Operations.Names(), "elapsed", time.Since(start))
	return res, nil
}

// ListComments fetches one list_comments page.
func (c *Client) ListComments(ctx context.Context, params ListCommentsParams) ([]Comment, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.api.ListComments(ctx, jsonrpc.RawParams(raw))
	if err != nil {
		return nil, classify("list comments", err)
	}
	return res.Comments, nil
}

// classify maps a client error to the bridge taxonomy.
func classify(op string, err error) error {
	var connErr *jsonrpc.RPCConnectionError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return bridge.NewTransportError(op, err)
	default:
		return bridge.NewRemoteRejection(op, err)
	}
}
