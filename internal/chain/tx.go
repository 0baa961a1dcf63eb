package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// domainTx separates transaction digests from other hashes.
const domainTx = "hivepress/tx/v1"

// Transaction is the envelope submitted with broadcast_transaction.
type Transaction struct {
	Expiration string     `json:"expiration,omitempty"`
	Operations Operations `json:"operations"`
	Extensions []any      `json:"extensions"`
	Signatures []string   `json:"signatures"`
}

// NewTransaction wraps ops in an unsigned envelope.
func NewTransaction(ops ...Operation) Transaction {
	return Transaction{
		Operations: ops,
		Extensions: []any{},
		Signatures: []string{},
	}
}

// Digest returns a stable content hash of the envelope:
// SHA256(domain + 0x00 + json). Used as the transaction reference when the
// node does not return an id.
func Digest(tx Transaction) (string, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domainTx))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Signer attaches signatures to a transaction before broadcast.
// Key handling lives outside this module (keychain, signing relay).
type Signer interface {
	Sign(ctx context.Context, tx *Transaction) error
}

// RelaySigner leaves the transaction unsigned for nodes that sign on the
// operator's behalf.
type RelaySigner struct{}

// Sign implements Signer.
func (RelaySigner) Sign(context.Context, *Transaction) error { return nil }
