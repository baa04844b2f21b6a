package deployment

import (
	"context"
	"fmt"
	"slices"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment/executor"
	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
	"github.com/terraleaf-code/tleaf-token/deployment/operations"
	"github.com/terraleaf-code/tleaf-token/deployment/wallet"
)

// Chain is a CosmWasm chain reachable through a deployer wallet.
type Chain struct {
	// ChainID is the canonical chain identifier, e.g. "columbus-5".
	ChainID string
	// Deployer signs every deployment transaction on this chain.
	Deployer *wallet.SigningContext
	// Executor signs, broadcasts and confirms transactions.
	Executor *executor.Executor
}

func (c Chain) String() string {
	if c.Deployer == nil {
		return c.ChainID
	}
	return fmt.Sprintf("%s (%s)", c.ChainID, c.Deployer.Address)
}

// Client is the ledger client of the deployer.
func (c Chain) Client() ledger.Client {
	if c.Deployer == nil {
		return nil
	}
	return c.Deployer.Client
}

// Validate checks the chain is usable for deployments.
func (c Chain) Validate() error {
	if err := ValidateChainID(c.ChainID); err != nil {
		return err
	}
	if c.Deployer == nil || c.Deployer.Key == nil || c.Deployer.Client == nil {
		return fmt.Errorf("%w: chain %s has no deployer", ErrInvalidEnvironment, c.ChainID)
	}
	if c.Deployer.ChainID != c.ChainID {
		return fmt.Errorf("%w: deployer of chain %s signs for %s", ErrInvalidEnvironment, c.ChainID, c.Deployer.ChainID)
	}
	if c.Executor == nil {
		return fmt.Errorf("%w: chain %s has no executor", ErrInvalidEnvironment, c.ChainID)
	}
	return nil
}

// Environment represents the chains a product is deployed to together with
// the addresses already deployed there.
// You can think of ExistingAddresses as a set of "onchain pointers" meant to
// be used in conjunction with Chains to read/write relevant chain state.
type Environment struct {
	Name              string
	Logger            logger.Logger
	ExistingAddresses AddressBook
	Chains            map[string]Chain
	GetContext        func() context.Context
	OperationsBundle  operations.Bundle
}

func NewEnvironment(
	name string,
	lggr logger.Logger,
	existingAddrs AddressBook,
	chains map[string]Chain,
	ctx func() context.Context,
	reporter operations.Reporter,
) *Environment {
	return &Environment{
		Name:              name,
		Logger:            lggr,
		ExistingAddresses: existingAddrs,
		Chains:            chains,
		GetContext:        ctx,
		OperationsBundle:  operations.NewBundle(ctx, lggr, reporter),
	}
}

// AllChainIDs returns the chain ids of the environment, sorted.
func (e Environment) AllChainIDs() []string {
	ids := make([]string, 0, len(e.Chains))
	for id := range e.Chains {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
