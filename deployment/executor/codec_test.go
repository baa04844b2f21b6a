package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTxConfig_SigningContextUsesChainPrefix(t *testing.T) {
	t.Parallel()

	txCfg, err := newTxConfig("terra")
	require.NoError(t, err)

	addr := make([]byte, 20)
	addr[19] = 1

	acc, err := txCfg.SigningContext().AddressCodec().BytesToString(addr)
	require.NoError(t, err)
	assert.Regexp(t, `^terra1`, acc)

	val, err := txCfg.SigningContext().ValidatorAddressCodec().BytesToString(addr)
	require.NoError(t, err)
	assert.Regexp(t, `^terravaloper1`, val)

	back, err := txCfg.SigningContext().AddressCodec().StringToBytes(acc)
	require.NoError(t, err)
	assert.Equal(t, addr, back)
}
