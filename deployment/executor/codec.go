package executor

import (
	"fmt"

	txsigning "cosmossdk.io/x/tx/signing"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/std"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	"github.com/cosmos/gogoproto/proto"
)

const signMode = signingtypes.SignMode_SIGN_MODE_DIRECT

// newTxConfig returns a protobuf tx config able to encode wasm messages for a
// chain using bech32Prefix. The registry and the sign mode handlers share the
// same address codecs, so the global sdk.Config is never read or touched.
func newTxConfig(bech32Prefix string) (client.TxConfig, error) {
	signingOpts := txsigning.Options{
		AddressCodec:          address.NewBech32Codec(bech32Prefix),
		ValidatorAddressCodec: address.NewBech32Codec(bech32Prefix + "valoper"),
	}
	registry, err := codectypes.NewInterfaceRegistryWithOptions(codectypes.InterfaceRegistryOptions{
		ProtoFiles:     proto.HybridResolver,
		SigningOptions: signingOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create interface registry: %w", err)
	}
	std.RegisterInterfaces(registry)
	wasmtypes.RegisterInterfaces(registry)

	return authtx.NewTxConfigWithOptions(codec.NewProtoCodec(registry), authtx.ConfigOptions{
		EnabledSignModes: []signingtypes.SignMode{signMode},
		SigningOptions:   &signingOpts,
	})
}
