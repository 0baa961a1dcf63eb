package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/hivepress/internal/bridge"
)

// Node is a fake Hive JSON-RPC node backed by httptest.
//
// It answers broadcast_transaction (recording every submitted transaction)
// and database_api.list_comments (order "by_root") over the threads added
// with AddThread. After the last reply of a thread it emits one comment from
// an unrelated root, the way the real by_root index continues into the next
// discussion.
type Node struct {
	Server *httptest.Server

	mu          sync.Mutex
	threads     map[string][]bridge.RemoteReply
	broadcasts  []json.RawMessage
	listCalls   int
	rejectWith  string
	failListAt  int
	txIDCounter int
}

// NewNode starts a fake node and registers its shutdown with t.Cleanup.
func NewNode(t *testing.T) *Node {
	t.Helper()
	n := &Node{threads: make(map[string][]bridge.RemoteReply)}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Server.Close)
	return n
}

// URL returns the node's RPC endpoint.
func (n *Node) URL() string {
	return n.Server.URL
}

// AddThread sets the replies under root author/permlink, in by_root order.
func (n *Node) AddThread(author, permlink string, replies ...bridge.RemoteReply) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := bridge.DedupKey(author, permlink)
	n.threads[key] = append(n.threads[key], replies...)
}

// Reject makes every following broadcast fail with a protocol error.
// An empty message restores normal behavior.
func (n *Node) Reject(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectWith = message
}

// FailListAt makes the call-th list_comments request (1-based) fail with a
// protocol error. 0 disables.
func (n *Node) FailListAt(call int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failListAt = call
}

// Broadcasts returns the raw transactions submitted so far.
func (n *Node) Broadcasts() []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]json.RawMessage, len(n.broadcasts))
	copy(out, n.broadcasts)
	return out
}

// ListCalls returns the number of list_comments requests served.
func (n *Node) ListCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listCalls
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "broadcast_transaction":
		resp.Result, resp.Error = n.broadcast(req.Params)
	case "database_api.list_comments":
		resp.Result, resp.Error = n.listComments(req.Params)
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) broadcast(params json.RawMessage) (any, *rpcError) {
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil || len(args) != 1 {
		return nil, &rpcError{Code: -32602, Message: "expected one transaction"}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rejectWith != "" {
		return nil, &rpcError{Code: -32000, Message: n.rejectWith}
	}
	n.broadcasts = append(n.broadcasts, args[0])
	n.txIDCounter++
	return map[string]any{"id": fmt.Sprintf("%040x", n.txIDCounter)}, nil
}

type listParams struct {
	Start []string `json:"start"`
	Limit int      `json:"limit"`
	Order string   `json:"order"`
}

type listedComment struct {
	bridge.RemoteReply
	RootAuthor   string `json:"root_author"`
	RootPermlink string `json:"root_permlink"`
}

func (n *Node) listComments(params json.RawMessage) (any, *rpcError) {
	var p listParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	if p.Order != "by_root" || len(p.Start) != 4 || p.Limit <= 0 {
		return nil, &rpcError{Code: -32602, Message: "unsupported list_comments params"}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.listCalls++
	if n.failListAt != 0 && n.listCalls == n.failListAt {
		return nil, &rpcError{Code: -32003, Message: "index unavailable"}
	}

	rootAuthor, rootPermlink := p.Start[0], p.Start[1]
	replies := n.threads[bridge.DedupKey(rootAuthor, rootPermlink)]

	// by_root order: the root itself, its replies, then the next discussion.
	seq := make([]listedComment, 0, len(replies)+2)
	seq = append(seq, listedComment{
		RemoteReply:  bridge.RemoteReply{Author: rootAuthor, Permlink: rootPermlink, Body: "root"},
		RootAuthor:   rootAuthor,
		RootPermlink: rootPermlink,
	})
	for _, r := range replies {
		seq = append(seq, listedComment{RemoteReply: r, RootAuthor: rootAuthor, RootPermlink: rootPermlink})
	}
	seq = append(seq, listedComment{
		RemoteReply:  bridge.RemoteReply{Author: "zzz", Permlink: "next-root", Body: "unrelated"},
		RootAuthor:   "zzz",
		RootPermlink: "next-root",
	})

	start := 0
	if p.Start[2] != "" || p.Start[3] != "" {
		start = -1
		for i, c := range seq {
			if strings.EqualFold(c.Author, p.Start[2]) && strings.EqualFold(c.Permlink, p.Start[3]) {
				start = i
				break
			}
		}
		if start < 0 {
			return map[string]any{"comments": []listedComment{}}, nil
		}
	}

	end := start + p.Limit
	if end > len(seq) {
		end = len(seq)
	}
	return map[string]any{"comments": seq[start:end]}, nil
}
