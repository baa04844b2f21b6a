// Package ledgertest provides an in-memory ledger.Client for tests.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
	"github.com/terraleaf-code/tleaf-token/deployment/txlog"
)

// Result scripts the ledger's answer for one broadcast.
type Result struct {
	// CheckTx is returned from Broadcast. Nil means an accepted tx (code 0).
	CheckTx *ledger.TxResponse
	// Delivered is returned from GetTx once PendingPolls lookups have failed.
	// Nil means the tx never gets indexed.
	Delivered    *ledger.TxResponse
	PendingPolls int
	// QueryErrs are returned, in order, by the first GetTx calls for the tx.
	QueryErrs    []error
	BroadcastErr error
}

// Client is a scripted ledger.Client. Each Broadcast consumes the next Result.
type Client struct {
	mu         sync.Mutex
	Account    ledger.AccountInfo
	GasUsed    uint64
	results    []Result
	broadcasts [][]byte
	txs        map[string]*pendingTx
	// OnBroadcast, when set, is called with the index of every broadcast.
	OnBroadcast func(i int)
	// GetTxDelay makes every GetTx block this long, or until ctx is done.
	GetTxDelay time.Duration
}

type pendingTx struct {
	polls   int
	queries int
	result  Result
}

var _ ledger.Client = (*Client)(nil)

// NewClient returns a Client that answers broadcasts with results in order.
func NewClient(account ledger.AccountInfo, results ...Result) *Client {
	return &Client{
		Account: account,
		GasUsed: 100_000,
		results: results,
		txs:     make(map[string]*pendingTx),
	}
}

// Broadcasts returns copies of all tx bytes broadcast so far.
func (c *Client) Broadcasts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.broadcasts))
	copy(out, c.broadcasts)
	return out
}

func (c *Client) AccountInfo(_ context.Context, address string) (ledger.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Account.Address != "" && !strings.EqualFold(c.Account.Address, address) {
		return ledger.AccountInfo{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
	}
	info := c.Account
	info.Address = address
	return info, nil
}

func (c *Client) Simulate(_ context.Context, _ []byte) (uint64, error) {
	return c.GasUsed, nil
}

func (c *Client) Broadcast(_ context.Context, txBytes []byte) (*ledger.TxResponse, error) {
	c.mu.Lock()
	i := len(c.broadcasts)
	c.broadcasts = append(c.broadcasts, append([]byte(nil), txBytes...))
	if i >= len(c.results) {
		c.mu.Unlock()
		return nil, fmt.Errorf("ledgertest: no result scripted for broadcast %d", i)
	}
	res := c.results[i]
	hash := TxHash(txBytes)
	c.txs[hash] = &pendingTx{result: res}
	onBroadcast := c.OnBroadcast
	c.mu.Unlock()

	if onBroadcast != nil {
		onBroadcast(i)
	}
	if res.BroadcastErr != nil {
		return nil, res.BroadcastErr
	}
	if res.CheckTx != nil {
		out := *res.CheckTx
		if out.TxHash == "" {
			out.TxHash = hash
		}
		if !out.IsError() {
			c.bumpSequence()
		}
		return &out, nil
	}
	c.bumpSequence()
	return &ledger.TxResponse{TxHash: hash}, nil
}

func (c *Client) bumpSequence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Account.Sequence++
}

func (c *Client) GetTx(ctx context.Context, hash string) (*ledger.TxResponse, error) {
	c.mu.Lock()
	delay := c.GetTxDelay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.txs[hash]
	if ok && tx.queries < len(tx.result.QueryErrs) {
		tx.queries++
		return nil, tx.result.QueryErrs[tx.queries-1]
	}
	if !ok || tx.result.Delivered == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrTxNotFound, hash)
	}
	if tx.polls < tx.result.PendingPolls {
		tx.polls++
		return nil, fmt.Errorf("%w: %s", ledger.ErrTxNotFound, hash)
	}
	out := *tx.result.Delivered
	out.TxHash = hash
	return &out, nil
}

// TxHash is the uppercase hex sha256 of the tx bytes, as Tendermint computes it.
func TxHash(txBytes []byte) string {
	sum := sha256.Sum256(txBytes)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Delivered returns a successful delivered tx carrying one log with events.
func Delivered(height int64, events ...txlog.Event) *ledger.TxResponse {
	return &ledger.TxResponse{
		Height: height,
		Logs:   []txlog.Log{{MsgIndex: 0, Events: events}},
	}
}

// StoreCodeEvent is the event a store-code tx emits.
func StoreCodeEvent(codeID string) txlog.Event {
	return txlog.Event{Type: txlog.EventStoreCode, Attributes: []txlog.Attribute{{Key: txlog.AttrCodeID, Value: codeID}}}
}

// InstantiateEvent is the event an instantiate tx emits on Terra Classic.
func InstantiateEvent(address string) txlog.Event {
	return txlog.Event{Type: txlog.EventInstantiateContract, Attributes: []txlog.Attribute{{Key: txlog.AttrContractAddress, Value: address}}}
}
