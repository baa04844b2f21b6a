package cmd

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/terraleaf-code/tleaf-token/deployment"
	"github.com/terraleaf-code/tleaf-token/deployment/envstore"
	"github.com/terraleaf-code/tleaf-token/deployment/token"
	"github.com/terraleaf-code/tleaf-token/deployment/wallet"
)

func tokenFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		cli.StringFlag{
			Name:  "token, t",
			Usage: "token name, used as prefix of the keys written to the env file (overrides CONTRACT_TOKEN_NAME)",
		},
	}, extra...)
}

var (
	wasmFlag = cli.StringFlag{
		Name:  "wasm, w",
		Usage: "compiled contract bytecode",
	}
	initFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "init-msg, i",
			Usage: "JSON init message template; admins and initial_balances are filled in",
		},
		cli.StringFlag{
			Name:  "supply",
			Usage: "initial supply in whole tokens, minted to the deployer",
		},
		cli.IntFlag{
			Name:  "decimals",
			Usage: "token decimals the supply is scaled by",
		},
		cli.StringFlag{
			Name:  "label",
			Usage: "contract label (defaults to the token name)",
		},
	}
	redeployFlag = cli.BoolFlag{
		Name:  "redeploy",
		Usage: "deploy even if the address book already holds this token on the chain",
	}
)

func initTokenSubCmds(s *Shell) []cli.Command {
	return []cli.Command{
		{
			Name:   "wallet",
			Usage:  "Print the address derived from the mnemonic",
			Action: s.ShowWallet,
		},
		{
			Name:   "config",
			Usage:  "Validate the configuration and print it, defaults included",
			Action: s.ConfigValidate,
		},
		{
			Name:   "addresses",
			Usage:  "List the contracts recorded in the address book",
			Action: s.ListAddresses,
		},
		{
			Name:   "store",
			Usage:  "Upload the contract bytecode and write <TOKEN>_CODE_ID to the env file",
			Action: s.StoreCode,
			Flags:  tokenFlags(wasmFlag),
		},
		{
			Name:   "instantiate",
			Usage:  "Instantiate stored code and write <TOKEN>_ADDRESS to the env file",
			Action: s.Instantiate,
			Flags: tokenFlags(append([]cli.Flag{
				cli.Uint64Flag{
					Name:  "code-id",
					Usage: "code id to instantiate (defaults to <TOKEN>_CODE_ID from the env file)",
				},
				redeployFlag,
			}, initFlags...)...),
		},
		{
			Name:   "deploy",
			Usage:  "Store and instantiate the contract",
			Action: s.Deploy,
			Flags:  tokenFlags(append([]cli.Flag{wasmFlag, redeployFlag}, initFlags...)...),
		},
	}
}

// ShowWallet prints the deployer address. The network is not contacted.
func (s *Shell) ShowWallet(_ *cli.Context) error {
	cfg := s.Config.WalletConfig()
	if err := cfg.Validate(); err != nil {
		return s.errorOut(err)
	}
	key, err := wallet.Derive(cfg)
	if err != nil {
		return s.errorOut(err)
	}
	fmt.Fprintln(s.Out, key.Address())
	return nil
}

// ConfigValidate prints the effective configuration and validates it.
func (s *Shell) ConfigValidate(_ *cli.Context) error {
	out, err := s.Config.TOMLString()
	if err != nil {
		return s.errorOut(err)
	}
	fmt.Fprint(s.Out, out)
	if err := s.Config.Validate(); err != nil {
		return s.errorOut(err)
	}
	fmt.Fprintln(s.Out, "Valid configuration.")
	return nil
}

// ListAddresses renders the address book file as a table.
func (s *Shell) ListAddresses(_ *cli.Context) error {
	ab, err := deployment.LoadAddressBookFile(s.Config.AddressBook)
	if err != nil {
		return s.errorOut(err)
	}
	addrs, err := ab.Addresses()
	if err != nil {
		return s.errorOut(err)
	}
	table := tablewriter.NewWriter(s.Out)
	table.SetHeader([]string{"Chain ID", "Address", "Type", "Version", "Labels"})
	for _, chainID := range slices.Sorted(maps.Keys(addrs)) {
		for _, addr := range slices.Sorted(maps.Keys(addrs[chainID])) {
			tv := addrs[chainID][addr]
			table.Append([]string{chainID, addr, tv.Type.String(), tv.Version.String(), tv.Labels.String()})
		}
	}
	table.Render()
	return nil
}

func (s *Shell) StoreCode(c *cli.Context) error {
	cfg := s.deployConfig(c)
	cfg.StoreOnly = true
	return s.errorOut(s.applyDeployToken(cfg))
}

func (s *Shell) Instantiate(c *cli.Context) error {
	cfg, err := s.instantiateConfig(c)
	if err != nil {
		return s.errorOut(err)
	}
	return s.errorOut(s.applyDeployToken(cfg))
}

func (s *Shell) Deploy(c *cli.Context) error {
	cfg, err := s.withInitMsg(c, s.deployConfig(c))
	if err != nil {
		return s.errorOut(err)
	}
	return s.errorOut(s.applyDeployToken(cfg))
}

// deployConfig builds the changeset config from the loaded configuration
// and the command flags.
func (s *Shell) deployConfig(c *cli.Context) token.DeployTokenConfig {
	tc := s.Config.Token
	if c.IsSet("token") {
		tc.Name = c.String("token")
	}
	if c.IsSet("wasm") {
		tc.WASMPath = c.String("wasm")
	}
	if c.IsSet("label") {
		tc.Label = c.String("label")
	}
	s.Config.Token = tc
	return token.DeployTokenConfig{
		ChainID:   s.Config.Network.ChainID,
		TokenName: tc.Name,
		WASMPath:  tc.WASMPath,
		Label:     tc.Label,
		Redeploy:  c.Bool("redeploy"),
		Sink:      envstore.New(s.Logger, s.envFile),
	}
}

func (s *Shell) instantiateConfig(c *cli.Context) (token.DeployTokenConfig, error) {
	cfg := s.deployConfig(c)
	cfg.WASMPath = ""
	cfg.CodeID = c.Uint64("code-id")
	if cfg.CodeID == 0 {
		key := token.CodeIDKey(cfg.TokenName)
		codeID, err := envstore.New(s.Logger, s.envFile).GetNumber(key)
		if errors.Is(err, envstore.ErrKeyNotFound) {
			return cfg, fmt.Errorf("no code id to instantiate: pass --code-id or run store first (%s not in %s)", key, s.envFile)
		}
		if err != nil {
			return cfg, err
		}
		cfg.CodeID = codeID
	}
	return s.withInitMsg(c, cfg)
}

func (s *Shell) withInitMsg(c *cli.Context, cfg token.DeployTokenConfig) (token.DeployTokenConfig, error) {
	tc := s.Config.Token
	if c.IsSet("init-msg") {
		tc.InitTemplate = c.String("init-msg")
	}
	if c.IsSet("supply") {
		tc.Supply = c.String("supply")
	}
	if c.IsSet("decimals") {
		tc.Decimals = int32(c.Int("decimals"))
	}
	s.Config.Token = tc

	template, err := token.LoadInitTemplate(tc.InitTemplate)
	if err != nil {
		return cfg, err
	}
	supply, err := s.Config.Supply()
	if err != nil {
		return cfg, err
	}
	cfg.InitTemplate = template
	cfg.Supply = supply
	return cfg, nil
}

// applyDeployToken runs the token changeset, merges the new contracts into
// the address book file and prints the produced identifiers.
func (s *Shell) applyDeployToken(cfg token.DeployTokenConfig) error {
	env, err := s.environment()
	if err != nil {
		return err
	}
	out, err := deployment.ApplyChangeSet(*env, token.DeployTokenChangeset, cfg)
	if err != nil {
		return err
	}
	for _, r := range out.Reports {
		s.Logger.Debugw("Operation report", "id", r.ID, "op", r.Def.ID, "version", r.Def.Version, "output", r.Output)
	}
	if out.AddressBook != nil {
		if err := s.ensureNotRecorded(env.ExistingAddresses, out.AddressBook); err != nil {
			return err
		}
		if err := env.ExistingAddresses.Merge(out.AddressBook); err != nil {
			return fmt.Errorf("failed to merge address book: %w", err)
		}
		if err := deployment.WriteAddressBookFile(s.Config.AddressBook, env.ExistingAddresses); err != nil {
			return err
		}
	}
	for _, k := range slices.Sorted(maps.Keys(out.Values)) {
		fmt.Fprintf(s.Out, "%s=%s\n", k, out.Values[k])
	}
	return nil
}

// ensureNotRecorded fails if existing already holds a contract of produced.
func (s *Shell) ensureNotRecorded(existing, produced deployment.AddressBook) error {
	addrs, err := produced.Addresses()
	if err != nil {
		return err
	}
	for chainID, chainAddrs := range addrs {
		for addr := range chainAddrs {
			found, err := deployment.AddressBookContains(existing, chainID, addr)
			if errors.Is(err, deployment.ErrChainNotFound) {
				break
			}
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("contract %s on %s is already recorded in %s", addr, chainID, s.Config.AddressBook)
			}
		}
	}
	return nil
}
