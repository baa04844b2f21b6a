package deployment

import (
	"fmt"
	"strings"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// ContractDeploy is the result of instantiating a contract.
type ContractDeploy struct {
	Address string
	CodeID  uint64
	TxHash  string
	Tv      TypeAndVersion
	Err     error
}

// DeployContract instantiates a contract and records the address in the
// provided address book once the instantiation is confirmed. The deploy
// function is expected to return only after confirmation.
// It returns an error if the deployment failed or the address could not be saved.
func DeployContract(
	lggr logger.Logger,
	chain Chain,
	addressBook AddressBook,
	deploy func(chain Chain) ContractDeploy,
) (*ContractDeploy, error) {
	contractDeploy := deploy(chain)
	if contractDeploy.Err != nil {
		lggr.Errorw("Failed to deploy contract", "chain", chain.String(), "err", contractDeploy.Err)
		return nil, contractDeploy.Err
	}
	if contractDeploy.CodeID != 0 {
		contractDeploy.Tv.AddLabel(CodeIDLabel(contractDeploy.CodeID))
	}
	lggr.Infow("Deployed contract", "contract", contractDeploy.Tv.String(), "addr", contractDeploy.Address, "txHash", contractDeploy.TxHash, "chain", chain.String())
	err := addressBook.Save(chain.ChainID, contractDeploy.Address, contractDeploy.Tv)
	if err != nil {
		lggr.Errorw("Failed to save contract address", "contract", contractDeploy.Tv.String(), "addr", contractDeploy.Address, "chain", chain.String(), "err", err)
		return nil, err
	}
	return &contractDeploy, nil
}

// ValidateChainIDsInEnvironment checks that every one of chainIDs has a chain
// in e.
func ValidateChainIDsInEnvironment(e Environment, chainIDs []string) error {
	for _, id := range chainIDs {
		if _, ok := e.Chains[id]; !ok {
			return fmt.Errorf("%w: chain %s not found in environment (have %s)", ErrInvalidEnvironment, id, strings.Join(e.AllChainIDs(), ", "))
		}
	}
	return nil
}
