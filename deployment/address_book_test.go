package deployment

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var version1_1_0 = *semver.MustParse("1.1.0")

const (
	testChainA = "pisco-1"
	testChainB = "columbus-5"
)

// testAddr returns a deterministic 20 byte terra address.
func testAddr(i int) string {
	b := make([]byte, 20)
	binary.BigEndian.PutUint64(b[12:], uint64(i))
	return sdk.MustBech32ifyAddressBytes("terra", b)
}

func TestAddressBook_Save(t *testing.T) {
	ab := NewMemoryAddressBook()
	token100 := NewTypeAndVersion("TLeafToken", Version1_0_0)
	token110 := NewTypeAndVersion("TLeafToken", version1_1_0)
	addr1 := testAddr(1)
	addr2 := testAddr(2)

	err := ab.Save(testChainA, addr1, token100)
	require.NoError(t, err)

	// Invalid address
	err = ab.Save(testChainA, "asdlfkj", token100)
	require.ErrorIs(t, err, ErrInvalidAddress)
	err = ab.Save(testChainA, "", token100)
	require.ErrorIs(t, err, ErrInvalidAddress)
	// Broken checksum
	broken := addr1[:len(addr1)-1] + "q"
	if strings.HasSuffix(addr1, "q") {
		broken = addr1[:len(addr1)-1] + "p"
	}
	err = ab.Save(testChainA, broken, token100)
	require.ErrorIs(t, err, ErrInvalidAddress)

	// Valid chain but not present.
	_, err = ab.AddressesForChain(testChainB)
	require.ErrorIs(t, err, ErrChainNotFound)

	// Invalid chain id
	err = ab.Save("", addr1, token100)
	require.ErrorIs(t, err, ErrInvalidChainID)
	err = ab.Save("pisco 1", addr1, token100)
	require.ErrorIs(t, err, ErrInvalidChainID)

	// Duplicate
	err = ab.Save(testChainA, addr1, token100)
	require.Error(t, err)
	// Duplicate in upper case is still a duplicate
	err = ab.Save(testChainA, strings.ToUpper(addr1), token100)
	require.Error(t, err)

	// Empty type
	err = NewMemoryAddressBook().Save(testChainA, addr1, TypeAndVersion{Version: Version1_0_0})
	require.Error(t, err)

	// Distinct address same TV will not
	err = ab.Save(testChainA, addr2, token100)
	require.NoError(t, err)
	// Same address different chain will not error
	err = ab.Save(testChainB, addr1, token100)
	require.NoError(t, err)
	// We can save different versions of the same contract
	err = ab.Save(testChainB, addr2, token110)
	require.NoError(t, err)

	addresses, err := ab.Addresses()
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]TypeAndVersion{
		testChainA: {
			addr1: token100,
			addr2: token100,
		},
		testChainB: {
			addr1: token100,
			addr2: token110,
		},
	}, addresses)
}

func TestAddressBook_Merge(t *testing.T) {
	token100 := NewTypeAndVersion("TLeafToken", Version1_0_0)
	token110 := NewTypeAndVersion("TLeafToken", version1_1_0)
	addr1 := testAddr(1)
	addr2 := testAddr(2)
	a1 := NewMemoryAddressBookFromMap(map[string]map[string]TypeAndVersion{
		testChainA: {
			addr1: token100,
		},
	})
	a2 := NewMemoryAddressBookFromMap(map[string]map[string]TypeAndVersion{
		testChainA: {
			addr2: token100,
		},
		testChainB: {
			addr1: token110,
		},
	})
	require.NoError(t, a1.Merge(a2))

	want := map[string]map[string]TypeAndVersion{
		testChainA: {
			addr1: token100,
			addr2: token100,
		},
		testChainB: {
			addr1: token110,
		},
	}
	addresses, err := a1.Addresses()
	require.NoError(t, err)
	assert.Equal(t, want, addresses)

	// Merge with conflicting addresses should error
	a3 := NewMemoryAddressBookFromMap(map[string]map[string]TypeAndVersion{
		testChainA: {
			addr1: token100,
		},
		testChainB: {
			testAddr(3): token100,
		},
	})
	require.Error(t, a1.Merge(a3))
	// a1 should not have changed
	addresses, err = a1.Addresses()
	require.NoError(t, err)
	assert.Equal(t, want, addresses)
}

func TestAddressBook_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "addresses.json")

	// missing file is an empty book
	ab, err := LoadAddressBookFile(path)
	require.NoError(t, err)
	addresses, err := ab.Addresses()
	require.NoError(t, err)
	assert.Empty(t, addresses)

	tv := NewTypeAndVersion("TLeafToken", Version1_0_0)
	tv.AddLabel("TLEAF")
	tv.AddLabel("code-42")
	require.NoError(t, ab.Save(testChainA, testAddr(7), tv))
	require.NoError(t, WriteAddressBookFile(path, ab))

	loaded, err := LoadAddressBookFile(path)
	require.NoError(t, err)
	got, err := loaded.AddressesForChain(testChainA)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, tv.Equal(got[testAddr(7)]))

	found, err := AddressBookContains(loaded, testChainA, strings.ToUpper(testAddr(7)))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = AddressBookContains(loaded, testChainA, testAddr(8))
	require.NoError(t, err)
	assert.False(t, found)

	_, err = AddressBookContains(loaded, testChainB, testAddr(7))
	require.ErrorIs(t, err, ErrChainNotFound)
}

func TestAddressBook_ConcurrencyAndDeadlock(t *testing.T) {
	token100 := NewTypeAndVersion("TLeafToken", Version1_0_0)
	token110 := NewTypeAndVersion("TLeafToken", version1_1_0)

	baseAB := NewMemoryAddressBookFromMap(map[string]map[string]TypeAndVersion{
		testChainA: {
			testAddr(1): token100,
		},
	})

	// concurrent writes
	wg := sync.WaitGroup{}
	for i := 2; i < 1000; i++ {
		wg.Add(1)
		go func(input int) {
			assert.NoError(t, baseAB.Save(testChainA, testAddr(input), token100))
			wg.Done()
		}(i)
	}

	// concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			addresses, err := baseAB.Addresses()
			if !assert.NoError(t, err) {
				return
			}
			for chainID, chainAddresses := range addresses {
				// concurrent read chainAddresses from Addresses() method
				for address := range chainAddresses {
					addresses[chainID][address] = token110
				}

				// concurrent read chainAddresses from AddressesForChain() method
				chainAddresses, err = baseAB.AddressesForChain(chainID)
				if assert.NoError(t, err) {
					for address := range chainAddresses {
						_ = addresses[chainID][address]
					}
				}
			}
			wg.Done()
		}()
	}

	// concurrent merges, starts from 1001 to avoid address conflicts
	for i := 1001; i < 1100; i++ {
		wg.Add(1)
		go func(input int) {
			additionalAB := NewMemoryAddressBookFromMap(map[string]map[string]TypeAndVersion{
				testChainB: {
					testAddr(input): token100,
				},
			})
			assert.NoError(t, baseAB.Merge(additionalAB))
			wg.Done()
		}(i)
	}

	wg.Wait()
}

func TestTypeAndVersion_String(t *testing.T) {
	t.Parallel()

	tv := NewTypeAndVersion("TLeafToken", Version1_0_0)
	assert.Equal(t, "TLeafToken 1.0.0", tv.String())

	tv.AddLabel("staging")
	tv.AddLabel("SA")
	assert.Equal(t, "TLeafToken 1.0.0 SA staging", tv.String())
}

func TestTypeAndVersion_AddLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		initialLabels []string
		toAdd         []string
		wantContains  []string
		wantLen       int
	}{
		{
			name:          "add single labels to empty set",
			initialLabels: nil,
			toAdd:         []string{"foo"},
			wantContains:  []string{"foo"},
			wantLen:       1,
		},
		{
			name:          "add multiple labels to existing set",
			initialLabels: []string{"alpha"},
			toAdd:         []string{"beta", "gamma"},
			wantContains:  []string{"alpha", "beta", "gamma"},
			wantLen:       3,
		},
		{
			name:          "add duplicate labels",
			initialLabels: []string{"dup"},
			toAdd:         []string{"dup", "dup", "new"},
			wantContains:  []string{"dup", "new"},
			wantLen:       2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Construct a TypeAndVersion with any initial labels
			tv := TypeAndVersion{
				Type:    "TLeafToken",
				Version: Version1_0_0,
				Labels:  NewLabelSet(tt.initialLabels...),
			}

			// Call AddLabel for each item in toAdd
			for _, label := range tt.toAdd {
				tv.AddLabel(label)
			}

			// Check final labels length
			require.Len(t, tv.Labels, tt.wantLen, "labels size mismatch")

			// Check that expected labels is present
			for _, md := range tt.wantContains {
				require.True(t, tv.Labels.Contains(md),
					"expected labels %q was not found in tv.Labels", md)
			}
		})
	}
}
