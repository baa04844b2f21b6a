// Package ledger defines the remote ledger client consumed by the deployment
// tooling and an implementation over the Cosmos SDK LCD REST gateway.
package ledger

import (
	"context"
	"errors"

	"github.com/terraleaf-code/tleaf-token/deployment/txlog"
)

var (
	// ErrTxNotFound is returned by GetTx while a transaction is not yet indexed.
	ErrTxNotFound = errors.New("tx not found")
	// ErrAccountNotFound is returned for addresses the chain has never seen.
	ErrAccountNotFound = errors.New("account not found")
)

// Client is the subset of the ledger API the deployment flow needs.
type Client interface {
	// AccountInfo returns the account number and current sequence of address.
	AccountInfo(ctx context.Context, address string) (AccountInfo, error)
	// Simulate runs txBytes without committing and returns the gas used.
	Simulate(ctx context.Context, txBytes []byte) (uint64, error)
	// Broadcast submits signed tx bytes and returns the node's answer.
	Broadcast(ctx context.Context, txBytes []byte) (*TxResponse, error)
	// GetTx looks up a transaction by hash. ErrTxNotFound while pending.
	GetTx(ctx context.Context, hash string) (*TxResponse, error)
}

// AccountInfo carries the values needed to sign for an account.
type AccountInfo struct {
	Address       string
	AccountNumber uint64
	Sequence      uint64
}

// TxResponse is the parsed, typed form of a broadcast or query result.
type TxResponse struct {
	TxHash    string
	Height    int64
	Code      uint32
	Codespace string
	RawLog    string
	GasWanted int64
	GasUsed   int64
	Logs      []txlog.Log
}

// IsError reports whether the ledger rejected the transaction.
func (r *TxResponse) IsError() bool {
	return r.Code != 0
}
