package token

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/terraleaf-code/tleaf-token/deployment"
	"github.com/terraleaf-code/tleaf-token/deployment/operations"
	"github.com/terraleaf-code/tleaf-token/deployment/txlog"
	"github.com/terraleaf-code/tleaf-token/deployment/wasm"
)

// Deps are the dependencies of the token operations.
type Deps struct {
	Chain deployment.Chain
}

type StoreCodeInput struct {
	TokenName string `json:"tokenName"`
	WASMPath  string `json:"wasmPath"`
}

type StoreCodeOutput struct {
	CodeID uint64 `json:"codeID"`
	TxHash string `json:"txHash"`
	Height int64  `json:"height"`
}

// StoreCodeOp uploads the contract bytecode and returns the new code id.
var StoreCodeOp = operations.NewOperation(
	"store-code",
	semver.MustParse("1.0.0"),
	"Store token contract bytecode",
	func(b operations.Bundle, deps Deps, input StoreCodeInput) (StoreCodeOutput, error) {
		chain := deps.Chain
		msg, err := wasm.StoreCodeFromFile(chain.Deployer.Address, input.WASMPath)
		if err != nil {
			return StoreCodeOutput{}, err
		}
		b.Logger.Infow("Storing contract code",
			"chain", chain.String(), "wallet", chain.Deployer.Address, "path", input.WASMPath, "size", len(msg.WASMByteCode))

		res, err := chain.Executor.Execute(b.GetContext(), msg, StoreMemo(input.TokenName), chain.Deployer)
		if err != nil {
			return StoreCodeOutput{}, fmt.Errorf("failed to store %s code on %s: %w", input.TokenName, chain.ChainID, err)
		}
		codeID, err := txlog.ExtractCodeID(res.Logs)
		if err != nil {
			return StoreCodeOutput{}, fmt.Errorf("store code tx %s: %w", res.TxHash, err)
		}
		b.Logger.Infow("Stored contract code", "chain", chain.ChainID, "codeID", codeID, "txHash", res.TxHash)
		return StoreCodeOutput{CodeID: codeID, TxHash: res.TxHash, Height: res.Height}, nil
	},
)

type InstantiateInput struct {
	TokenName string          `json:"tokenName"`
	CodeID    uint64          `json:"codeID"`
	InitMsg   json.RawMessage `json:"initMsg"`
	Label     string          `json:"label"`
}

type InstantiateOutput struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash"`
	Height  int64  `json:"height"`
}

// InstantiateOp creates a token contract from a stored code id with the
// deployer as admin.
var InstantiateOp = operations.NewOperation(
	"instantiate-token",
	semver.MustParse("1.0.0"),
	"Instantiate token contract",
	func(b operations.Bundle, deps Deps, input InstantiateInput) (InstantiateOutput, error) {
		chain := deps.Chain
		msg, err := wasm.NewInstantiate(chain.Deployer.Address, input.CodeID, input.InitMsg, input.Label)
		if err != nil {
			return InstantiateOutput{}, err
		}
		b.Logger.Infow("Instantiating contract",
			"chain", chain.String(), "wallet", chain.Deployer.Address, "codeID", input.CodeID, "label", msg.Label)

		res, err := chain.Executor.Execute(b.GetContext(), msg, InstantiateMemo(input.TokenName), chain.Deployer)
		if err != nil {
			return InstantiateOutput{}, fmt.Errorf("failed to instantiate %s from code %d on %s: %w", input.TokenName, input.CodeID, chain.ChainID, err)
		}
		addr, err := txlog.ExtractContractAddress(res.Logs)
		if err != nil {
			return InstantiateOutput{}, fmt.Errorf("instantiate tx %s: %w", res.TxHash, err)
		}
		b.Logger.Infow("Instantiated contract", "chain", chain.ChainID, "address", addr, "txHash", res.TxHash)
		return InstantiateOutput{Address: addr, TxHash: res.TxHash, Height: res.Height}, nil
	},
)
