package envstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

func TestStore_SetPreservesOtherKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MNEMO=\"abandon about\"\nNETWORK_URL=https://lcd.terra.dev\n"), 0o600))

	s := New(logger.Test(t), path)
	require.NoError(t, s.Set("TLEAF_CODE_ID", "42"))

	values, err := s.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"MNEMO":         "abandon about",
		"NETWORK_URL":   "https://lcd.terra.dev",
		"TLEAF_CODE_ID": "42",
	}, values)

	n, err := s.GetNumber("TLEAF_CODE_ID")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestStore_CreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deploy.env")
	s := New(logger.Test(t), path)
	assert.False(t, s.Exists())

	_, ok, err := s.Get("TLEAF_ADDRESS")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("TLEAF_ADDRESS", "terra1contract"))
	assert.True(t, s.Exists())

	// readable by a fresh store
	v, ok, err := New(logger.Nop(), path).Get("TLEAF_ADDRESS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "terra1contract", v)
}

func TestStore_Overwrite(t *testing.T) {
	t.Parallel()

	s := New(logger.Nop(), filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, s.Set("TLEAF_CODE_ID", "1"))
	require.NoError(t, s.Set("TLEAF_CODE_ID", "2"))

	n, err := s.GetNumber("TLEAF_CODE_ID")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestStore_GetNumberErrors(t *testing.T) {
	t.Parallel()

	s := New(logger.Nop(), filepath.Join(t.TempDir(), ".env"))
	_, err := s.GetNumber("MISSING")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set("TLEAF_CODE_ID", "forty-two"))
	_, err = s.GetNumber("TLEAF_CODE_ID")
	require.ErrorIs(t, err, ErrNotANumber)

	require.NoError(t, s.Set("TLEAF_CODE_ID", "-1"))
	_, err = s.GetNumber("TLEAF_CODE_ID")
	require.ErrorIs(t, err, ErrNotANumber)
}

func TestStore_InvalidKey(t *testing.T) {
	t.Parallel()

	s := New(logger.Nop(), filepath.Join(t.TempDir(), ".env"))
	for _, key := range []string{"", "HAS SPACE", "A=B", "NEW\nLINE"} {
		require.ErrorIs(t, s.Set(key, "x"), ErrInvalidKey, "key %q", key)
	}
	assert.False(t, s.Exists())
}

func TestStore_LogsUpdates(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	s := New(lggr, filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, s.Set("TLEAF_ADDRESS", "terra1contract"))

	entries := logs.FilterMessage("Updating env file").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "TLEAF_ADDRESS", entries[0].ContextMap()["key"])
}

func TestNew_DefaultPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultPath, New(logger.Nop(), "").Path())
}
