// Package wallet derives the deployer's signing identity from a BIP-39
// mnemonic and binds it to a ledger client.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/go-bip39"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
)

const (
	DefaultBech32Prefix = "terra"
	// DefaultCoinType is the SLIP-44 coin type registered for LUNA.
	DefaultCoinType uint32 = 330
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInvalidConfig     = errors.New("invalid wallet config")
)

// Config holds what is needed to derive a key and reach the network.
type Config struct {
	Mnemonic     string
	NetworkURL   string
	ChainID      string
	Bech32Prefix string
	CoinType     uint32
	Account      uint32
	Index        uint32
}

// String never prints the mnemonic.
func (c Config) String() string {
	return fmt.Sprintf("wallet.Config{NetworkURL: %q, ChainID: %q, Path: %s, Prefix: %q}",
		c.NetworkURL, c.ChainID, c.hdPath(), c.prefix())
}

func (c Config) GoString() string {
	return c.String()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Mnemonic) == "" {
		return fmt.Errorf("%w: mnemonic is empty", ErrInvalidCredential)
	}
	if c.NetworkURL == "" {
		return fmt.Errorf("%w: network url must be set", ErrInvalidConfig)
	}
	if c.ChainID == "" {
		return fmt.Errorf("%w: chain id must be set", ErrInvalidConfig)
	}
	return nil
}

func (c Config) prefix() string {
	if c.Bech32Prefix == "" {
		return DefaultBech32Prefix
	}
	return c.Bech32Prefix
}

func (c Config) hdPath() string {
	coinType := c.CoinType
	if coinType == 0 {
		coinType = DefaultCoinType
	}
	return hd.NewFundraiserParams(c.Account, coinType, c.Index).String()
}

// Key is a derived secp256k1 key and its bech32 account address.
type Key struct {
	priv    cryptotypes.PrivKey
	address string
}

func (k *Key) Address() string {
	return k.address
}

func (k *Key) PubKey() cryptotypes.PubKey {
	return k.priv.PubKey()
}

// Sign signs msg (sha256 is applied by the key).
func (k *Key) Sign(msg []byte) ([]byte, error) {
	return k.priv.Sign(msg)
}

// Derive turns the mnemonic in cfg into a key along m/44'/coin'/account'/0/index.
// The same config always yields the same key.
func Derive(cfg Config) (*Key, error) {
	mnemonic := strings.Join(strings.Fields(cfg.Mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: mnemonic is not a valid BIP-39 phrase", ErrInvalidCredential)
	}
	derived, err := hd.Secp256k1.Derive()(mnemonic, "", cfg.hdPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	priv := hd.Secp256k1.Generate()(derived)
	address, err := sdk.Bech32ifyAddressBytes(cfg.prefix(), priv.PubKey().Address())
	if err != nil {
		return nil, fmt.Errorf("failed to encode address: %w", err)
	}
	return &Key{priv: priv, address: address}, nil
}

// SigningContext binds a key to the chain and client it signs for. It is
// owned by a single sequential call site.
type SigningContext struct {
	Address string
	ChainID string
	Key     *Key
	Client  ledger.Client
}

// DialFunc builds the ledger client for a wallet config.
type DialFunc func(cfg Config) (ledger.Client, error)

// LCDDialer returns a DialFunc creating LCD clients from base with the URL
// taken from the wallet config.
func LCDDialer(lggr logger.Logger, base ledger.LCDConfig) DialFunc {
	return func(cfg Config) (ledger.Client, error) {
		lcdCfg := base
		lcdCfg.URL = cfg.NetworkURL
		return ledger.NewLCDClient(lggr, lcdCfg)
	}
}

// Provider derives SigningContexts.
type Provider struct {
	dial DialFunc
}

func NewProvider(dial DialFunc) *Provider {
	return &Provider{dial: dial}
}

// DeriveWallet validates cfg, derives the key and dials the ledger client.
// Reachability of the endpoint is not checked.
func (p *Provider) DeriveWallet(cfg Config) (*SigningContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := Derive(cfg)
	if err != nil {
		return nil, err
	}
	client, err := p.dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client for %s: %w", cfg.NetworkURL, err)
	}
	return &SigningContext{
		Address: key.Address(),
		ChainID: cfg.ChainID,
		Key:     key,
		Client:  client,
	}, nil
}
