// Package executor turns one unsigned deployment message into a confirmed
// on-chain transaction: build, sign, broadcast, confirm and settle.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cosmos/cosmos-sdk/client"
	sdk "github.com/cosmos/cosmos-sdk/types"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	"github.com/jonboulle/clockwork"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
	"github.com/terraleaf-code/tleaf-token/deployment/txlog"
	"github.com/terraleaf-code/tleaf-token/deployment/wallet"
	"github.com/terraleaf-code/tleaf-token/deployment/wasm"
)

const (
	DefaultGasAdjustment  = 1.75
	DefaultGasPrice       = "0.15uluna"
	DefaultPollInterval   = time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultSettleDelay    = 2 * time.Second
)

var ErrSignerMismatch = errors.New("message sender is not the signing address")

// Config controls fees and confirmation.
type Config struct {
	// GasLimit fixes the gas limit. Zero means simulate and apply GasAdjustment.
	GasLimit      uint64
	GasAdjustment float64
	// GasPrice is a decimal coin, e.g. "0.15uluna".
	GasPrice       string
	ConfirmMode    ConfirmMode
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	// SettleDelay is waited after every successful tx.
	SettleDelay  time.Duration
	Bech32Prefix string
}

func DefaultConfig() Config {
	return Config{
		GasAdjustment:  DefaultGasAdjustment,
		GasPrice:       DefaultGasPrice,
		ConfirmMode:    ConfirmPoll,
		PollInterval:   DefaultPollInterval,
		ConfirmTimeout: DefaultConfirmTimeout,
		SettleDelay:    DefaultSettleDelay,
		Bech32Prefix:   wallet.DefaultBech32Prefix,
	}
}

func (c Config) Validate() error {
	if c.GasAdjustment < 1 {
		return fmt.Errorf("%w: gas adjustment must be at least 1, got %v", ErrInvalidConfig, c.GasAdjustment)
	}
	if _, err := sdk.ParseDecCoin(c.GasPrice); err != nil {
		return fmt.Errorf("%w: gas price %q: %w", ErrInvalidConfig, c.GasPrice, err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.ConfirmTimeout < c.PollInterval {
		return fmt.Errorf("%w: confirm timeout %s is shorter than poll interval %s", ErrInvalidConfig, c.ConfirmTimeout, c.PollInterval)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("%w: settle delay must not be negative", ErrInvalidConfig)
	}
	if c.Bech32Prefix == "" {
		return fmt.Errorf("%w: bech32 prefix must be set", ErrInvalidConfig)
	}
	return nil
}

// Success is a tx that was included in a block with code 0.
type Success struct {
	TxHash    string
	Height    int64
	GasWanted int64
	GasUsed   int64
	Logs      []txlog.Log
}

// Executor runs deployment transactions. Transactions for the same address
// are serialized so that account sequences are never reused.
type Executor struct {
	lggr     logger.Logger
	cfg      Config
	clock    clockwork.Clock
	txCfg    client.TxConfig
	gasPrice sdk.DecCoin

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func WithClock(clock clockwork.Clock) func(*Executor) {
	return func(e *Executor) {
		e.clock = clock
	}
}

func New(lggr logger.Logger, cfg Config, opts ...func(*Executor)) (*Executor, error) {
	cfg.PollInterval = durationOr(cfg.PollInterval, DefaultPollInterval)
	cfg.ConfirmTimeout = durationOr(cfg.ConfirmTimeout, DefaultConfirmTimeout)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gasPrice, err := sdk.ParseDecCoin(cfg.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	txCfg, err := newTxConfig(cfg.Bech32Prefix)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		lggr:     logger.Named(lggr, "Executor"),
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		txCfg:    txCfg,
		gasPrice: gasPrice,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Executor) Config() Config {
	return e.cfg
}

// TxConfig exposes the encoder/decoder used for signed transactions.
func (e *Executor) TxConfig() client.TxConfig {
	return e.txCfg
}

func (e *Executor) lockFor(address string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[address]
	if !ok {
		l = &sync.Mutex{}
		e.locks[address] = l
	}
	return l
}

// Execute signs msg with sc, broadcasts it and waits until it is in a block
// and the settle delay has passed. A ledger rejection is returned as a
// *TxBroadcastError, either from CheckTx or from the delivered tx.
func (e *Executor) Execute(ctx context.Context, msg wasm.Message, memo string, sc *wallet.SigningContext) (*Success, error) {
	if err := validateSigningContext(msg, sc); err != nil {
		return nil, err
	}
	lock := e.lockFor(sc.Address)
	lock.Lock()
	defer lock.Unlock()

	kind := msg.Kind()
	lggr := logger.With(e.lggr, "kind", kind, "address", sc.Address, "chainID", sc.ChainID)

	txBytes, err := e.buildAndSign(ctx, lggr, msg, memo, sc)
	if err != nil {
		promTxTotal.WithLabelValues(string(kind), resultError).Inc()
		return nil, err
	}

	broadcastAt := e.clock.Now()
	resp, err := sc.Client.Broadcast(ctx, txBytes)
	if err != nil {
		promTxTotal.WithLabelValues(string(kind), resultError).Inc()
		return nil, fmt.Errorf("failed to broadcast %s tx: %w", kind, err)
	}
	if resp.IsError() {
		promTxTotal.WithLabelValues(string(kind), resultRejected).Inc()
		lggr.Errorw("Tx rejected", "stage", StageCheckTx, "txHash", resp.TxHash, "code", resp.Code, "codespace", resp.Codespace, "rawLog", resp.RawLog)
		return nil, rejection(kind, StageCheckTx, resp)
	}
	lggr.Infow("Tx broadcast", "txHash", resp.TxHash)

	delivered := resp
	if e.cfg.ConfirmMode == ConfirmPoll {
		conf, err := e.waitForConfirmation(ctx, lggr, sc.Client, resp.TxHash)
		if err != nil {
			result := resultError
			if conf.Status == StatusTimedOut {
				result = resultTimedOut
			}
			promTxTotal.WithLabelValues(string(kind), result).Inc()
			lggr.Errorw("Tx not confirmed", "txHash", resp.TxHash, "status", conf.Status, "polls", conf.Polls, "err", err)
			return nil, err
		}
		delivered = conf.Tx
	}
	promTxConfirmDuration.WithLabelValues(string(kind)).Observe(e.clock.Since(broadcastAt).Seconds())

	if delivered.IsError() {
		promTxTotal.WithLabelValues(string(kind), resultRejected).Inc()
		lggr.Errorw("Tx rejected", "stage", StageDeliverTx, "txHash", delivered.TxHash, "height", delivered.Height, "code", delivered.Code, "codespace", delivered.Codespace, "rawLog", delivered.RawLog)
		return nil, rejection(kind, StageDeliverTx, delivered)
	}
	promTxTotal.WithLabelValues(string(kind), resultConfirmed).Inc()
	lggr.Infow("Tx confirmed", "txHash", delivered.TxHash, "height", delivered.Height, "gasUsed", delivered.GasUsed)

	if err := e.settle(ctx); err != nil {
		return nil, fmt.Errorf("interrupted while settling %s tx %s: %w", kind, delivered.TxHash, err)
	}
	return &Success{
		TxHash:    delivered.TxHash,
		Height:    delivered.Height,
		GasWanted: delivered.GasWanted,
		GasUsed:   delivered.GasUsed,
		Logs:      delivered.Logs,
	}, nil
}

func (e *Executor) buildAndSign(ctx context.Context, lggr logger.Logger, msg wasm.Message, memo string, sc *wallet.SigningContext) ([]byte, error) {
	account, err := sc.Client.AccountInfo(ctx, sc.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", sc.Address, err)
	}

	builder := e.txCfg.NewTxBuilder()
	if err := builder.SetMsgs(msg.SDKMsg()); err != nil {
		return nil, fmt.Errorf("failed to set %s msg: %w", msg.Kind(), err)
	}
	builder.SetMemo(memo)

	gas := e.cfg.GasLimit
	if gas == 0 {
		gas, err = e.estimateGas(ctx, builder, sc, account)
		if err != nil {
			return nil, err
		}
	}
	fee := e.fee(gas)
	builder.SetGasLimit(gas)
	builder.SetFeeAmount(fee)
	lggr.Debugw("Tx built", "accountNumber", account.AccountNumber, "sequence", account.Sequence, "gas", gas, "fee", fee.String(), "memo", memo)

	if err := e.sign(ctx, builder, sc, account); err != nil {
		return nil, fmt.Errorf("failed to sign %s tx: %w", msg.Kind(), err)
	}
	txBytes, err := e.txCfg.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s tx: %w", msg.Kind(), err)
	}
	lggr.Debugw("Tx signed", "bytes", len(txBytes))
	return txBytes, nil
}

// estimateGas simulates the tx with an empty signature and scales the gas
// used by GasAdjustment.
func (e *Executor) estimateGas(ctx context.Context, builder client.TxBuilder, sc *wallet.SigningContext, account ledger.AccountInfo) (uint64, error) {
	if err := builder.SetSignatures(e.signature(sc, account, nil)); err != nil {
		return 0, fmt.Errorf("failed to set simulation signature: %w", err)
	}
	txBytes, err := e.txCfg.TxEncoder()(builder.GetTx())
	if err != nil {
		return 0, fmt.Errorf("failed to encode simulation tx: %w", err)
	}
	used, err := sc.Client.Simulate(ctx, txBytes)
	if err != nil {
		return 0, fmt.Errorf("failed to simulate tx: %w", err)
	}
	return uint64(math.Ceil(float64(used) * e.cfg.GasAdjustment)), nil
}

// fee is ceil(gas * gasPrice) in the gas price denom.
func (e *Executor) fee(gas uint64) sdk.Coins {
	amount := e.gasPrice.Amount.MulInt64(int64(gas)).Ceil().RoundInt()
	return sdk.NewCoins(sdk.NewCoin(e.gasPrice.Denom, amount))
}

func (e *Executor) signature(sc *wallet.SigningContext, account ledger.AccountInfo, sig []byte) signingtypes.SignatureV2 {
	return signingtypes.SignatureV2{
		PubKey: sc.Key.PubKey(),
		Data: &signingtypes.SingleSignatureData{
			SignMode:  signMode,
			Signature: sig,
		},
		Sequence: account.Sequence,
	}
}

func (e *Executor) sign(ctx context.Context, builder client.TxBuilder, sc *wallet.SigningContext, account ledger.AccountInfo) error {
	// signer infos must be present before the sign bytes are computed
	if err := builder.SetSignatures(e.signature(sc, account, nil)); err != nil {
		return err
	}
	signerData := authsigning.SignerData{
		Address:       sc.Address,
		ChainID:       sc.ChainID,
		AccountNumber: account.AccountNumber,
		Sequence:      account.Sequence,
		PubKey:        sc.Key.PubKey(),
	}
	signBytes, err := authsigning.GetSignBytesAdapter(ctx, e.txCfg.SignModeHandler(), signMode, signerData, builder.GetTx())
	if err != nil {
		return err
	}
	sig, err := sc.Key.Sign(signBytes)
	if err != nil {
		return err
	}
	return builder.SetSignatures(e.signature(sc, account, sig))
}

func rejection(kind wasm.Kind, stage Stage, resp *ledger.TxResponse) *TxBroadcastError {
	return &TxBroadcastError{
		Kind:      kind,
		Stage:     stage,
		TxHash:    resp.TxHash,
		Code:      resp.Code,
		Codespace: resp.Codespace,
		RawLog:    resp.RawLog,
	}
}

func validateSigningContext(msg wasm.Message, sc *wallet.SigningContext) error {
	if sc == nil || sc.Key == nil || sc.Client == nil {
		return fmt.Errorf("%w: signing context needs a key and a client", ErrInvalidConfig)
	}
	if sc.ChainID == "" {
		return fmt.Errorf("%w: signing context has no chain id", ErrInvalidConfig)
	}
	var sender string
	switch m := msg.(type) {
	case wasm.StoreCode:
		sender = m.Sender
	case wasm.InstantiateContract:
		sender = m.Sender
	case nil:
		return fmt.Errorf("%w: message is nil", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unsupported message %T", ErrInvalidConfig, msg)
	}
	if sender == "" {
		return fmt.Errorf("%w: %s message has no sender", ErrInvalidConfig, msg.Kind())
	}
	if sender != sc.Address {
		return fmt.Errorf("%w: %s != %s", ErrSignerMismatch, sender, sc.Address)
	}
	return nil
}
