// Package wasm builds the unsigned CosmWasm messages used to deploy a
// contract: store-code and instantiate-contract.
package wasm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

var (
	ErrPayloadRead    = errors.New("failed to read contract bytecode")
	ErrInvalidCodeID  = errors.New("code id must be a positive integer")
	ErrInvalidInitMsg = errors.New("init msg must be a JSON object")
	ErrInvalidSender  = errors.New("sender must be set")
)

// Kind tags the Message variants.
type Kind string

const (
	KindStoreCode           Kind = "store_code"
	KindInstantiateContract Kind = "instantiate_contract"
)

// Message is an unsigned deployment message. It is either a StoreCode or an
// InstantiateContract.
type Message interface {
	Kind() Kind
	// SDKMsg converts the message to its protobuf form for signing.
	SDKMsg() sdk.Msg
}

// StoreCode uploads contract bytecode.
type StoreCode struct {
	Sender       string
	WASMByteCode []byte
}

func (StoreCode) Kind() Kind { return KindStoreCode }

func (m StoreCode) SDKMsg() sdk.Msg {
	return &wasmtypes.MsgStoreCode{
		Sender:       m.Sender,
		WASMByteCode: m.WASMByteCode,
	}
}

// InstantiateContract creates a contract instance from a stored code id.
type InstantiateContract struct {
	Sender  string
	Admin   string
	CodeID  uint64
	Label   string
	InitMsg json.RawMessage
}

func (InstantiateContract) Kind() Kind { return KindInstantiateContract }

func (m InstantiateContract) SDKMsg() sdk.Msg {
	return &wasmtypes.MsgInstantiateContract{
		Sender: m.Sender,
		Admin:  m.Admin,
		CodeID: m.CodeID,
		Label:  m.Label,
		Msg:    wasmtypes.RawContractMessage(m.InitMsg),
	}
}

// NewStoreCode reads the whole bytecode from src.
func NewStoreCode(sender string, src io.Reader) (StoreCode, error) {
	if sender == "" {
		return StoreCode{}, ErrInvalidSender
	}
	if src == nil {
		return StoreCode{}, fmt.Errorf("%w: no source", ErrPayloadRead)
	}
	code, err := io.ReadAll(src)
	if err != nil {
		return StoreCode{}, fmt.Errorf("%w: %w", ErrPayloadRead, err)
	}
	if len(code) == 0 {
		return StoreCode{}, fmt.Errorf("%w: bytecode is empty", ErrPayloadRead)
	}
	return StoreCode{Sender: sender, WASMByteCode: code}, nil
}

// StoreCodeFromFile reads the bytecode at path.
func StoreCodeFromFile(sender, path string) (StoreCode, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return StoreCode{}, fmt.Errorf("%w: %w", ErrPayloadRead, err)
	}
	return NewStoreCode(sender, bytes.NewReader(code))
}

// NewInstantiate builds an instantiate message where sender is also the
// contract admin.
func NewInstantiate(sender string, codeID uint64, initMsg json.RawMessage, label string) (InstantiateContract, error) {
	if sender == "" {
		return InstantiateContract{}, ErrInvalidSender
	}
	if codeID == 0 {
		return InstantiateContract{}, ErrInvalidCodeID
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(initMsg, &obj); err != nil || obj == nil {
		return InstantiateContract{}, ErrInvalidInitMsg
	}
	if label == "" {
		label = fmt.Sprintf("code-%d", codeID)
	}
	return InstantiateContract{
		Sender:  sender,
		Admin:   sender,
		CodeID:  codeID,
		Label:   label,
		InitMsg: initMsg,
	}, nil
}
