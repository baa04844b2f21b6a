// Package cmd is the tleaf-deploy command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment"
	"github.com/terraleaf-code/tleaf-token/deployment/config"
	"github.com/terraleaf-code/tleaf-token/deployment/envstore"
	"github.com/terraleaf-code/tleaf-token/deployment/executor"
	filelogger "github.com/terraleaf-code/tleaf-token/deployment/logger"
	"github.com/terraleaf-code/tleaf-token/deployment/wallet"
)

// Shell holds what the commands of one invocation share. Fields left nil are
// filled in from the global flags before a command runs.
type Shell struct {
	Logger logger.Logger
	Config config.Config
	RunID  uuid.UUID
	Out    io.Writer
	// Dial creates the ledger client. Defaults to the LCD client.
	Dial  wallet.DialFunc
	Clock clockwork.Clock

	baseCtx     context.Context
	closeLogger func() error
	envFile     string
	metricsFile string
}

// Main runs the command line with os.Args and returns the exit code.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &Shell{baseCtx: ctx}
	if err := NewApp(s).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewApp returns the cli.App backed by s.
func NewApp(s *Shell) *cli.App {
	app := cli.NewApp()
	app.Name = "tleaf-deploy"
	app.Usage = "Store and instantiate the TerraLeaf token contract"
	app.HideVersion = true
	if s.Out != nil {
		app.Writer = s.Out
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML file with network, tx and token settings",
		},
		cli.StringFlag{
			Name:  "env-file, e",
			Usage: "dotenv file holding MNEMO, NETWORK_URL, NETWORK_CHAIN_ID and CONTRACT_TOKEN_NAME; deployed identifiers are written back to it",
			Value: envstore.DefaultPath,
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
			Value: "info",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write JSON logs to this file instead of stderr",
		},
		cli.StringFlag{
			Name:  "metrics-file",
			Usage: "write tx metrics in the Prometheus text format to this file on exit",
		},
		cli.StringFlag{
			Name:  "address-book",
			Usage: "JSON address book of deployed contracts (overrides AddressBook from the config file)",
		},
	}
	app.Before = s.before
	app.After = s.after
	app.Commands = initTokenSubCmds(s)
	return app
}

func (s *Shell) before(c *cli.Context) error {
	paths := make(map[string]string)
	for _, name := range []string{"config", "env-file", "log-file", "metrics-file", "address-book"} {
		p, err := homedir.Expand(c.String(name))
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		paths[name] = p
	}
	s.envFile = paths["env-file"]
	s.metricsFile = paths["metrics-file"]

	cfg, err := config.Load(paths["config"], s.envFile)
	if err != nil {
		return err
	}
	if ab := paths["address-book"]; ab != "" {
		cfg.AddressBook = ab
	}
	if cfg.AddressBook, err = homedir.Expand(cfg.AddressBook); err != nil {
		return err
	}
	s.Config = cfg

	if s.RunID == uuid.Nil {
		s.RunID = uuid.New()
	}
	if s.Out == nil {
		s.Out = os.Stdout
	}
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	if s.Logger == nil {
		lvl, err := zapcore.ParseLevel(c.String("log-level"))
		if err != nil {
			return err
		}
		if err := s.initLogger(paths["log-file"], lvl); err != nil {
			return err
		}
	}
	s.Logger = logger.With(s.Logger, "runID", s.RunID.String())
	s.Logger.Infow("Starting", "command", c.Args().First(), "chainID", cfg.Network.ChainID, "envFile", s.envFile)
	return nil
}

func (s *Shell) initLogger(path string, lvl zapcore.Level) error {
	if path != "" {
		l, err := filelogger.NewSingleFileLogger(path, lvl)
		if err != nil {
			return err
		}
		s.Logger, s.closeLogger = l, l.Close
		return nil
	}
	l, err := logger.NewWith(func(z *zap.Config) {
		z.Level = zap.NewAtomicLevelAt(lvl)
		z.OutputPaths = []string{"stderr"}
		z.Encoding = "console"
		z.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		z.EncoderConfig.CallerKey = ""
	})
	if err != nil {
		return err
	}
	s.Logger = l
	return nil
}

func (s *Shell) after(_ *cli.Context) (err error) {
	if s.metricsFile != "" {
		if werr := prometheus.WriteToTextfile(s.metricsFile, prometheus.DefaultGatherer); werr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to write metrics: %w", werr))
		}
	}
	if s.closeLogger != nil {
		err = multierr.Append(err, s.closeLogger())
		s.closeLogger = nil
	}
	return err
}

// ctx returns the context of the invocation, cancelled on SIGINT or SIGTERM.
func (s *Shell) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

func (s *Shell) errorOut(err error) error {
	if err == nil {
		return nil
	}
	if s.Logger != nil {
		var txErr *executor.TxBroadcastError
		if errors.As(err, &txErr) {
			s.Logger.Errorw("Transaction rejected", "txHash", txErr.TxHash, "stage", txErr.Stage,
				"code", txErr.Code, "codespace", txErr.Codespace, "rawLog", txErr.RawLog)
		} else {
			s.Logger.Errorw("Command failed", "err", err)
		}
	}
	return err
}

func (s *Shell) signingContext() (*wallet.SigningContext, error) {
	if err := s.Config.ValidateWallet(); err != nil {
		return nil, err
	}
	dial := s.Dial
	if dial == nil {
		dial = wallet.LCDDialer(s.Logger, s.Config.LCDConfig())
	}
	sc, err := wallet.NewProvider(dial).DeriveWallet(s.Config.WalletConfig())
	if err != nil {
		return nil, err
	}
	s.Logger.Infow("Using wallet", "address", sc.Address, "chainID", sc.ChainID)
	return sc, nil
}

// environment is a single chain environment for the configured network, with
// the address book file as existing addresses.
func (s *Shell) environment() (*deployment.Environment, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	sc, err := s.signingContext()
	if err != nil {
		return nil, err
	}
	exec, err := executor.New(s.Logger, s.Config.ExecutorConfig(), executor.WithClock(s.Clock))
	if err != nil {
		return nil, err
	}
	ab, err := deployment.LoadAddressBookFile(s.Config.AddressBook)
	if err != nil {
		return nil, err
	}
	chain := deployment.Chain{
		ChainID:  s.Config.Network.ChainID,
		Deployer: sc,
		Executor: exec,
	}
	return deployment.NewEnvironment(
		s.RunID.String(),
		s.Logger,
		ab,
		map[string]deployment.Chain{chain.ChainID: chain},
		s.ctx,
		nil,
	), nil
}
