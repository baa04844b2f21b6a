// Package config assembles the deployment settings from built-in defaults, an
// optional TOML file and a dotenv file. Command line flags are applied on top
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	commonconfig "github.com/smartcontractkit/chainlink-common/pkg/config"

	"github.com/terraleaf-code/tleaf-token/deployment/executor"
	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
	"github.com/terraleaf-code/tleaf-token/deployment/token"
	"github.com/terraleaf-code/tleaf-token/deployment/wallet"
)

// Keys read from the dotenv file.
const (
	EnvMnemonic  = "MNEMO"
	EnvNetwork   = "NETWORK_URL"
	EnvChainID   = "NETWORK_CHAIN_ID"
	EnvTokenName = "CONTRACT_TOKEN_NAME"
)

const (
	DefaultTokenName    = "TLEAF"
	DefaultWASMPath     = "artifacts/tleaf_token.wasm"
	DefaultInitTemplate = "init_msg.json"
	DefaultAddressBook  = "address_book.json"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Network     Network
	Wallet      Wallet
	Tx          Tx
	Token       Token
	AddressBook string
}

type Network struct {
	URL            string
	ChainID        string
	Bech32Prefix   string
	BroadcastMode  ledger.BroadcastMode
	RequestTimeout commonconfig.Duration
	ReadRetryMax   int
}

type Wallet struct {
	// Mnemonic is only ever read from the dotenv file or the process
	// environment.
	Mnemonic string `toml:"-"`
	CoinType uint32
	Account  uint32
	Index    uint32
}

type Tx struct {
	GasLimit       uint64
	GasAdjustment  float64
	GasPrice       string
	ConfirmMode    executor.ConfirmMode
	PollInterval   commonconfig.Duration
	ConfirmTimeout commonconfig.Duration
	SettleDelay    commonconfig.Duration
}

type Token struct {
	Name         string
	WASMPath     string
	InitTemplate string
	// Supply is in whole tokens.
	Supply   string
	Decimals int32
	Label    string
}

func Defaults() Config {
	tx := executor.DefaultConfig()
	supply := token.DefaultSupply()
	return Config{
		Network: Network{
			Bech32Prefix:   wallet.DefaultBech32Prefix,
			BroadcastMode:  ledger.BroadcastModeSync,
			RequestTimeout: *commonconfig.MustNewDuration(ledger.DefaultRequestTimeout),
			ReadRetryMax:   ledger.DefaultReadRetryMax,
		},
		Wallet: Wallet{CoinType: wallet.DefaultCoinType},
		Tx: Tx{
			GasAdjustment:  tx.GasAdjustment,
			GasPrice:       tx.GasPrice,
			ConfirmMode:    tx.ConfirmMode,
			PollInterval:   *commonconfig.MustNewDuration(tx.PollInterval),
			ConfirmTimeout: *commonconfig.MustNewDuration(tx.ConfirmTimeout),
			SettleDelay:    *commonconfig.MustNewDuration(tx.SettleDelay),
		},
		Token: Token{
			Name:         DefaultTokenName,
			WASMPath:     DefaultWASMPath,
			InitTemplate: DefaultInitTemplate,
			Supply:       supply.Amount.String(),
			Decimals:     supply.Decimals,
		},
		AddressBook: DefaultAddressBook,
	}
}

// Load returns the defaults overlaid with the TOML file at tomlPath and the
// dotenv file at envPath. Either path may be empty. A missing dotenv file is
// not an error, a missing TOML file is.
func Load(tomlPath, envPath string) (Config, error) {
	cfg := Defaults()
	if tomlPath != "" {
		b, err := os.ReadFile(tomlPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decodeTOML(b); err != nil {
			return Config{}, fmt.Errorf("%s: %w", tomlPath, err)
		}
	}
	if envPath != "" {
		env, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read env file: %w", err)
		}
		cfg.ApplyEnv(env)
	}
	cfg.ApplyEnv(processEnv())
	return cfg, nil
}

func (c *Config) decodeTOML(b []byte) error {
	d := toml.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	if err := d.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overrides settings with the non-empty dotenv keys in env.
func (c *Config) ApplyEnv(env map[string]string) {
	if v := strings.TrimSpace(env[EnvMnemonic]); v != "" {
		c.Wallet.Mnemonic = v
	}
	if v := strings.TrimSpace(env[EnvNetwork]); v != "" {
		c.Network.URL = v
	}
	if v := strings.TrimSpace(env[EnvChainID]); v != "" {
		c.Network.ChainID = v
	}
	if v := strings.TrimSpace(env[EnvTokenName]); v != "" {
		c.Token.Name = v
	}
}

// processEnv mirrors dotenv loading, where variables already set in the
// process win over the file.
func processEnv() map[string]string {
	env := make(map[string]string)
	for _, k := range []string{EnvMnemonic, EnvNetwork, EnvChainID, EnvTokenName} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

func (c Config) Validate() error {
	var errs []error
	if c.Network.URL == "" {
		errs = append(errs, fmt.Errorf("network url must be set (%s)", EnvNetwork))
	}
	if c.Network.ChainID == "" {
		errs = append(errs, fmt.Errorf("chain id must be set (%s)", EnvChainID))
	}
	if err := c.LCDConfig().Validate(); err != nil && c.Network.URL != "" {
		errs = append(errs, err)
	}
	if err := c.ExecutorConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := token.ValidateName(c.Token.Name); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Supply(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateWallet additionally requires the mnemonic.
func (c Config) ValidateWallet() error {
	if err := c.WalletConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) WalletConfig() wallet.Config {
	return wallet.Config{
		Mnemonic:     c.Wallet.Mnemonic,
		NetworkURL:   c.Network.URL,
		ChainID:      c.Network.ChainID,
		Bech32Prefix: c.Network.Bech32Prefix,
		CoinType:     c.Wallet.CoinType,
		Account:      c.Wallet.Account,
		Index:        c.Wallet.Index,
	}
}

func (c Config) LCDConfig() ledger.LCDConfig {
	lcd := ledger.DefaultLCDConfig(c.Network.URL)
	lcd.BroadcastMode = c.Network.BroadcastMode
	lcd.RequestTimeout = c.Network.RequestTimeout.Duration()
	lcd.ReadRetryMax = c.Network.ReadRetryMax
	return lcd
}

func (c Config) ExecutorConfig() executor.Config {
	return executor.Config{
		GasLimit:       c.Tx.GasLimit,
		GasAdjustment:  c.Tx.GasAdjustment,
		GasPrice:       c.Tx.GasPrice,
		ConfirmMode:    c.Tx.ConfirmMode,
		PollInterval:   c.Tx.PollInterval.Duration(),
		ConfirmTimeout: c.Tx.ConfirmTimeout.Duration(),
		SettleDelay:    c.Tx.SettleDelay.Duration(),
		Bech32Prefix:   c.Network.Bech32Prefix,
	}
}

func (c Config) Supply() (token.Supply, error) {
	return token.ParseSupply(c.Token.Supply, c.Token.Decimals)
}

// TOMLString renders the effective configuration, mnemonic excluded.
func (c Config) TOMLString() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
