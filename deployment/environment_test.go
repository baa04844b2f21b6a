package deployment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/terraleaf-code/tleaf-token/deployment/executor"
	"github.com/terraleaf-code/tleaf-token/deployment/ledger"
	"github.com/terraleaf-code/tleaf-token/deployment/ledger/ledgertest"
	"github.com/terraleaf-code/tleaf-token/deployment/wallet"
)

func testChain(t *testing.T, chainID string) Chain {
	t.Helper()
	key, err := wallet.Derive(wallet.Config{Mnemonic: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"})
	require.NoError(t, err)
	exec, err := executor.New(logger.Test(t), executor.DefaultConfig())
	require.NoError(t, err)
	return Chain{
		ChainID: chainID,
		Deployer: &wallet.SigningContext{
			Address: key.Address(),
			ChainID: chainID,
			Key:     key,
			Client:  ledgertest.NewClient(ledger.AccountInfo{}),
		},
		Executor: exec,
	}
}

func TestEnvironment_ChainIDs(t *testing.T) {
	t.Parallel()

	e := NewNoopEnvironment(t)
	e.Chains = map[string]Chain{
		testChainB:  testChain(t, testChainB),
		testChainA:  testChain(t, testChainA),
		"phoenix-1": testChain(t, "phoenix-1"),
	}

	assert.Equal(t, []string{testChainB, "phoenix-1", testChainA}, e.AllChainIDs())

	require.NoError(t, ValidateChainIDsInEnvironment(e, []string{testChainA, testChainB}))
	err := ValidateChainIDsInEnvironment(e, []string{testChainA, "localterra"})
	require.ErrorIs(t, err, ErrInvalidEnvironment)
	assert.Contains(t, err.Error(), "chain localterra not found in environment (have columbus-5, phoenix-1, pisco-1)")
}

func TestChain_Validate(t *testing.T) {
	t.Parallel()

	chain := testChain(t, testChainA)
	require.NoError(t, chain.Validate())
	assert.Contains(t, chain.String(), testChainA)
	assert.NotNil(t, chain.Client())

	noDeployer := chain
	noDeployer.Deployer = nil
	require.ErrorIs(t, noDeployer.Validate(), ErrInvalidEnvironment)
	assert.Nil(t, noDeployer.Client())
	assert.Equal(t, testChainA, noDeployer.String())

	mismatch := testChain(t, testChainA)
	mismatch.Deployer.ChainID = testChainB
	require.ErrorIs(t, mismatch.Validate(), ErrInvalidEnvironment)

	noExecutor := testChain(t, testChainA)
	noExecutor.Executor = nil
	require.ErrorIs(t, noExecutor.Validate(), ErrInvalidEnvironment)

	badID := testChain(t, "")
	require.ErrorIs(t, badID.Validate(), ErrInvalidChainID)
}

func TestDeployContract(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	chain := testChain(t, testChainA)
	ab := NewMemoryAddressBook()

	deployed, err := DeployContract(lggr, chain, ab, func(chain Chain) ContractDeploy {
		tv := NewTypeAndVersion("TLeafToken", Version1_0_0)
		tv.AddLabel("TLEAF")
		return ContractDeploy{Address: testAddr(9), CodeID: 42, TxHash: "ABC", Tv: tv}
	})
	require.NoError(t, err)
	assert.Equal(t, testAddr(9), deployed.Address)

	addrs, err := ab.AddressesForChain(testChainA)
	require.NoError(t, err)
	require.Contains(t, addrs, testAddr(9))
	codeID, ok := addrs[testAddr(9)].Labels.CodeID()
	require.True(t, ok)
	assert.Equal(t, uint64(42), codeID)
	assert.Equal(t, 1, logs.FilterMessage("Deployed contract").Len())

	// failed deployments are not saved
	_, err = DeployContract(lggr, chain, ab, func(chain Chain) ContractDeploy {
		return ContractDeploy{Err: errors.New("rejected")}
	})
	require.EqualError(t, err, "rejected")

	// duplicates are rejected by the address book
	_, err = DeployContract(lggr, chain, ab, func(chain Chain) ContractDeploy {
		return ContractDeploy{Address: testAddr(9), Tv: NewTypeAndVersion("TLeafToken", Version1_0_0)}
	})
	require.Error(t, err)
}
