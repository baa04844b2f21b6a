package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
)

// ConfirmMode selects how a broadcast tx is considered final.
type ConfirmMode int

const (
	// ConfirmPoll polls the tx query until the tx is found in a block.
	ConfirmPoll ConfirmMode = iota
	// ConfirmNone trusts the broadcast response, which is only meaningful with
	// block-mode broadcasts.
	ConfirmNone
)

func ConfirmModeFromString(s string) (ConfirmMode, error) {
	switch strings.ToLower(s) {
	case "", "poll":
		return ConfirmPoll, nil
	case "none":
		return ConfirmNone, nil
	default:
		return ConfirmPoll, fmt.Errorf("invalid ConfirmMode: %s", s)
	}
}

func (m *ConfirmMode) UnmarshalText(text []byte) error {
	mode, err := ConfirmModeFromString(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

func (m ConfirmMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m ConfirmMode) String() string {
	if m == ConfirmNone {
		return "none"
	}
	return "poll"
}

// ConfirmationStatus is the outcome of waiting for a tx.
type ConfirmationStatus int

const (
	StatusPending ConfirmationStatus = iota
	StatusFinalized
	StatusTimedOut
)

func (s ConfirmationStatus) String() string {
	switch s {
	case StatusFinalized:
		return "finalized"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Confirmation reports a finished wait. Tx is set only when Finalized.
type Confirmation struct {
	Status ConfirmationStatus
	Tx     *ledger.TxResponse
	Polls  uint
}

// waitForConfirmation polls client for hash every PollInterval until it is
// found or ConfirmTimeout has elapsed. Query errors other than a missing tx are
// logged and polled through; the deadline also bounds a GetTx that hangs.
func (e *Executor) waitForConfirmation(ctx context.Context, lggr logger.Logger, client ledger.Client, hash string) (Confirmation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	conf := Confirmation{Status: StatusPending}
	start := e.clock.Now()
	var lastErr error

	err := retry.Do(func() error {
		conf.Polls++
		tx, err := client.GetTx(pollCtx, hash)
		if err != nil {
			lastErr = err
			return err
		}
		conf.Tx = tx
		return nil
	},
		retry.Context(pollCtx),
		retry.Attempts(0),
		retry.Delay(e.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.WithTimer(e.clock),
		retry.RetryIf(func(error) bool {
			return pollCtx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			if errors.Is(err, ledger.ErrTxNotFound) {
				lggr.Debugw("Tx not yet in a block", "txHash", hash, "poll", n+1)
				return
			}
			lggr.Warnw("Failed to query tx, retrying", "txHash", hash, "poll", n+1, "err", err)
		}),
	)
	switch {
	case err == nil:
		conf.Status = StatusFinalized
		lggr.Debugw("Tx finalized", "txHash", hash, "height", conf.Tx.Height, "polls", conf.Polls, "waited", e.clock.Since(start))
		return conf, nil
	case ctx.Err() != nil:
		return conf, ctx.Err()
	default:
		conf.Status = StatusTimedOut
		err = fmt.Errorf("%w: %s after %d polls over %s", ErrConfirmationTimeout, hash, conf.Polls, e.cfg.ConfirmTimeout)
		if lastErr != nil && !errors.Is(lastErr, ledger.ErrTxNotFound) && !errors.Is(lastErr, context.DeadlineExceeded) {
			err = fmt.Errorf("%w (last query error: %w)", err, lastErr)
		}
		return conf, err
	}
}

// settle blocks for the configured settle delay so that indexers catch up
// with the block before the caller reads derived state.
func (e *Executor) settle(ctx context.Context) error {
	if e.cfg.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-e.clock.After(e.cfg.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
