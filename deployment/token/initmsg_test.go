package token

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInitMsg_SetsAdminAndBalances(t *testing.T) {
	t.Parallel()

	msg, err := BuildInitMsg([]byte(`{"admins": [], "initial_balances": []}`), "terra1abc", DefaultSupply())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"admins": ["terra1abc"],
		"initial_balances": [{"address": "terra1abc", "amount": "1000000000000000"}]
	}`, string(msg))
}

func TestBuildInitMsg_KeepsOtherFields(t *testing.T) {
	t.Parallel()

	template := `{
		"name": "TerraLeaf",
		"symbol": "TLEAF",
		"decimals": 6,
		"admins": ["terra1old"],
		"initial_balances": [{"address": "terra1old", "amount": "1"}],
		"mint": {"minter": "terra1minter", "cap": "2000000000000000"},
		"marketing": null
	}`
	msg, err := BuildInitMsg([]byte(template), "terra1abc", DefaultSupply())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "TerraLeaf", got["name"])
	assert.Equal(t, "TLEAF", got["symbol"])
	assert.InDelta(t, 6, got["decimals"], 0)
	assert.Equal(t, []any{"terra1abc"}, got["admins"])
	assert.Equal(t, map[string]any{"minter": "terra1minter", "cap": "2000000000000000"}, got["mint"])
	assert.Contains(t, got, "marketing")
}

func TestBuildInitMsg_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		admin    string
		supply   Supply
	}{
		{name: "not json", template: `{`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "array", template: `[]`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "admins not array", template: `{"admins": "terra1abc"}`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "symbol too short", template: `{"symbol": "TL"}`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "symbol with digits", template: `{"symbol": "TLEAF1"}`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "decimals too large", template: `{"decimals": 19}`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "decimals mismatch", template: `{"decimals": 8}`, admin: "terra1abc", supply: DefaultSupply()},
		{name: "no admin", template: `{}`, admin: "", supply: DefaultSupply()},
		{name: "zero supply", template: `{}`, admin: "terra1abc", supply: Supply{Amount: decimal.Zero, Decimals: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildInitMsg([]byte(tt.template), tt.admin, tt.supply)
			require.ErrorIs(t, err, ErrInvalidInitMsg)
		})
	}
}

func TestSupply_BaseUnits(t *testing.T) {
	t.Parallel()

	units, err := DefaultSupply().BaseUnits()
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", units.String())

	s, err := ParseSupply("12.5", 2)
	require.NoError(t, err)
	units, err = s.BaseUnits()
	require.NoError(t, err)
	assert.Equal(t, "1250", units.String())

	_, err = ParseSupply("0.001", 2)
	require.ErrorContains(t, err, "decimal places")
	_, err = ParseSupply("-1", 6)
	require.ErrorContains(t, err, "positive")
	_, err = ParseSupply("lots", 6)
	require.Error(t, err)
	_, err = ParseSupply("1", 19)
	require.ErrorContains(t, err, "decimals")
}

func TestLoadInitTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "instantiate_msg.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"name":"TerraLeaf","symbol":"TLEAF","decimals":6,"admins":[],"initial_balances":[]}`), 0o600))
	b, err := LoadInitTemplate(good)
	require.NoError(t, err)
	assert.Contains(t, string(b), "TerraLeaf")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"TL"}`), 0o600))
	_, err = LoadInitTemplate(bad)
	require.ErrorIs(t, err, ErrInvalidInitMsg)

	_, err = LoadInitTemplate(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
