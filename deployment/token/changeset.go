package token

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/terraleaf-code/tleaf-token/deployment"
	"github.com/terraleaf-code/tleaf-token/deployment/operations"
)

// ConfigSink receives the identifiers produced by a deployment.
type ConfigSink interface {
	Set(key, value string) error
}

// DeployTokenConfig describes one token deployment on one chain.
type DeployTokenConfig struct {
	ChainID   string
	TokenName string
	// WASMPath is the compiled contract. Required unless CodeID is set.
	WASMPath string
	// CodeID instantiates already stored code instead of storing WASMPath.
	CodeID uint64
	// StoreOnly stops after the code is stored.
	StoreOnly    bool
	InitTemplate []byte
	Supply       Supply
	// Label defaults to the token name.
	Label string
	// Redeploy allows deploying a token whose name is already recorded in
	// the environment's address book for the chain.
	Redeploy bool
	// Sink, when set, receives <TOKEN>_CODE_ID as soon as the code is stored
	// and <TOKEN>_ADDRESS once the contract is instantiated.
	Sink ConfigSink
}

func (c DeployTokenConfig) Validate() error {
	if err := deployment.ValidateChainID(c.ChainID); err != nil {
		return fmt.Errorf("%w: %w", deployment.ErrInvalidConfig, err)
	}
	if err := ValidateName(c.TokenName); err != nil {
		return fmt.Errorf("%w: %w", deployment.ErrInvalidConfig, err)
	}
	if c.CodeID == 0 {
		if c.WASMPath == "" {
			return fmt.Errorf("%w: either a wasm path or a code id is required", deployment.ErrInvalidConfig)
		}
		if _, err := os.Stat(c.WASMPath); err != nil {
			return fmt.Errorf("%w: wasm file: %w", deployment.ErrInvalidConfig, err)
		}
	} else if c.StoreOnly {
		return fmt.Errorf("%w: store only with an existing code id has nothing to do", deployment.ErrInvalidConfig)
	}
	if c.StoreOnly {
		return nil
	}
	if err := ValidateInitTemplate(c.InitTemplate); err != nil {
		return fmt.Errorf("%w: %w", deployment.ErrInvalidConfig, err)
	}
	if _, err := c.Supply.BaseUnits(); err != nil {
		return fmt.Errorf("%w: %w", deployment.ErrInvalidConfig, err)
	}
	return nil
}

func (c DeployTokenConfig) label() string {
	if c.Label == "" {
		return c.TokenName
	}
	return c.Label
}

// DeployTokenChangeset stores the token bytecode and instantiates it, strictly
// in that order: the code id produced by the store step feeds the
// instantiation. The output address book holds the new contract labelled
// with the token name and code id.
var DeployTokenChangeset = deployment.CreateChangeSet(deployToken, verifyDeployToken)

func verifyDeployToken(e deployment.Environment, cfg DeployTokenConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := deployment.ValidateChainIDsInEnvironment(e, []string{cfg.ChainID}); err != nil {
		return err
	}
	if err := e.Chains[cfg.ChainID].Validate(); err != nil {
		return err
	}
	if cfg.Redeploy || cfg.StoreOnly || e.ExistingAddresses == nil {
		return nil
	}
	existing, err := DeployedToken(e.ExistingAddresses, cfg.ChainID, cfg.TokenName)
	if errors.Is(err, deployment.ErrChainNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %s is already deployed on %s (%v), set redeploy to deploy again",
			deployment.ErrInvalidEnvironment, cfg.TokenName, cfg.ChainID, existing)
	}
	return nil
}

func deployToken(e deployment.Environment, cfg DeployTokenConfig) (deployment.ChangesetOutput, error) {
	chain := e.Chains[cfg.ChainID]
	deps := Deps{Chain: chain}
	b := e.OperationsBundle
	values := make(map[string]string)

	codeID := cfg.CodeID
	if codeID == 0 {
		report, err := operations.ExecuteOperation(b, StoreCodeOp, deps, StoreCodeInput{
			TokenName: cfg.TokenName,
			WASMPath:  cfg.WASMPath,
		})
		if err != nil {
			return deployment.ChangesetOutput{}, err
		}
		codeID = report.Output.CodeID
		if err := record(cfg.Sink, values, CodeIDKey(cfg.TokenName), strconv.FormatUint(codeID, 10)); err != nil {
			return deployment.ChangesetOutput{}, err
		}
	}
	if cfg.StoreOnly {
		return output(b, deployment.NewMemoryAddressBook(), values)
	}

	initMsg, err := BuildInitMsg(cfg.InitTemplate, chain.Deployer.Address, cfg.Supply)
	if err != nil {
		return deployment.ChangesetOutput{}, err
	}

	ab := deployment.NewMemoryAddressBook()
	deployed, err := deployment.DeployContract(e.Logger, chain, ab, func(chain deployment.Chain) deployment.ContractDeploy {
		report, err := operations.ExecuteOperation(b, InstantiateOp, deps, InstantiateInput{
			TokenName: cfg.TokenName,
			CodeID:    codeID,
			InitMsg:   initMsg,
			Label:     cfg.label(),
		})
		tv := deployment.NewTypeAndVersion(ContractType, ContractVersion)
		tv.AddLabel(cfg.TokenName)
		return deployment.ContractDeploy{
			Address: report.Output.Address,
			CodeID:  codeID,
			TxHash:  report.Output.TxHash,
			Tv:      tv,
			Err:     err,
		}
	})
	if err != nil {
		return deployment.ChangesetOutput{}, err
	}
	if err := record(cfg.Sink, values, AddressKey(cfg.TokenName), deployed.Address); err != nil {
		return deployment.ChangesetOutput{}, err
	}
	return output(b, ab, values)
}

func record(sink ConfigSink, values map[string]string, key, value string) error {
	values[key] = value
	if sink == nil {
		return nil
	}
	if err := sink.Set(key, value); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

func output(b operations.Bundle, ab deployment.AddressBook, values map[string]string) (deployment.ChangesetOutput, error) {
	out := deployment.ChangesetOutput{AddressBook: ab, Values: values}
	if r := b.Reporter(); r != nil {
		reports, err := r.GetReports()
		if err != nil {
			return deployment.ChangesetOutput{}, err
		}
		out.Reports = reports
	}
	return out, nil
}
