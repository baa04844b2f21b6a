package executor

import (
	"errors"
	"fmt"

	"github.com/terraleaf-code/tleaf-token/deployment/wasm"
)

var (
	ErrInvalidConfig = errors.New("invalid executor config")
	// ErrConfirmationTimeout means the tx was accepted but not found in a block
	// before the confirmation timeout. Its fate is unknown.
	ErrConfirmationTimeout = errors.New("tx not confirmed before timeout")
)

// Stage tells where the ledger rejected a transaction.
type Stage string

const (
	StageCheckTx   Stage = "check_tx"
	StageDeliverTx Stage = "deliver_tx"
)

// TxBroadcastError carries the ledger's verdict on a rejected transaction
// verbatim.
type TxBroadcastError struct {
	Kind      wasm.Kind
	Stage     Stage
	TxHash    string
	Code      uint32
	Codespace string
	RawLog    string
}

func (e *TxBroadcastError) Error() string {
	return fmt.Sprintf("%s tx %s rejected at %s. code: %d, codespace: %s, raw_log: %s",
		e.Kind, e.TxHash, e.Stage, e.Code, e.Codespace, e.RawLog)
}
