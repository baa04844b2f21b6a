// Package token deploys the TerraLeaf cw20 token contract: store the
// bytecode, instantiate it with the deployer as sole admin and holder of the
// initial supply, then record the resulting identifiers.
package token

import (
	"fmt"
	"strings"

	"github.com/terraleaf-code/tleaf-token/deployment"
)

const (
	ContractType deployment.ContractType = "TLeafToken"

	codeIDKeySuffix  = "_CODE_ID"
	addressKeySuffix = "_ADDRESS"
)

var ContractVersion = deployment.Version1_0_0

// CodeIDKey is the config key the stored code id of token is kept under.
func CodeIDKey(token string) string {
	return token + codeIDKeySuffix
}

// AddressKey is the config key the contract address of token is kept under.
func AddressKey(token string) string {
	return token + addressKeySuffix
}

func StoreMemo(token string) string {
	return "Store token contract - " + token
}

func InstantiateMemo(token string) string {
	return "Instantiate token contract - " + token
}

// ValidateName checks token is usable as a config key prefix.
func ValidateName(token string) error {
	if token == "" {
		return fmt.Errorf("token name must be set")
	}
	if strings.IndexFunc(token, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	}) >= 0 {
		return fmt.Errorf("token name %q may only contain letters, digits and underscores", token)
	}
	return nil
}

// DeployedToken returns the contracts recorded for token on chainID, keyed by
// the code id they were instantiated from.
func DeployedToken(ab deployment.AddressBook, chainID, token string) (map[uint64]string, error) {
	addrs, err := ab.AddressesForChain(chainID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]string)
	for addr, tv := range deployment.LabeledAddresses(addrs).OfType(ContractType).And(token) {
		codeID, _ := tv.Labels.CodeID()
		out[codeID] = addr
	}
	return out, nil
}
