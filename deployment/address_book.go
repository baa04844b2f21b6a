package deployment

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/exp/maps"

	"github.com/Masterminds/semver/v3"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/pkg/errors"
)

var (
	ErrInvalidChainID = errors.New("invalid chain id")
	ErrInvalidAddress = errors.New("invalid address")
	ErrChainNotFound  = errors.New("chain not found")
)

// ContractType is a simple string type for identifying contract types.
type ContractType string

func (ct ContractType) String() string {
	return string(ct)
}

var Version1_0_0 = *semver.MustParse("1.0.0")

type TypeAndVersion struct {
	Type    ContractType   `json:"Type"`
	Version semver.Version `json:"Version"`
	Labels  LabelSet       `json:"Labels,omitempty"`
}

func (tv TypeAndVersion) String() string {
	if len(tv.Labels) == 0 {
		return fmt.Sprintf("%s %s", tv.Type, tv.Version.String())
	}

	// Use the LabelSet's String method for sorted labels
	sortedLabels := tv.Labels.String()
	return fmt.Sprintf("%s %s %s",
		tv.Type,
		tv.Version.String(),
		sortedLabels,
	)
}

func (tv TypeAndVersion) Equal(other TypeAndVersion) bool {
	if tv.Type != other.Type {
		return false
	}
	if !tv.Version.Equal(&other.Version) {
		return false
	}
	return tv.Labels.Equal(other.Labels)
}

func NewTypeAndVersion(t ContractType, v semver.Version) TypeAndVersion {
	return TypeAndVersion{
		Type:    t,
		Version: v,
		Labels:  make(LabelSet), // empty set,
	}
}

// AddressBook is a simple interface for storing and retrieving contract addresses across
// chains. Chains are keyed by their chain id, e.g. "columbus-5" or "pisco-1".
// We store rather than derive typeAndVersion as contracts do not expose it.
// Addresses are always stored in lower case bech32.
type AddressBook interface {
	Save(chainID string, address string, tv TypeAndVersion) error
	Addresses() (map[string]map[string]TypeAndVersion, error)
	AddressesForChain(chainID string) (map[string]TypeAndVersion, error)
	// Allows for merging address books (e.g. new deployments with existing ones)
	Merge(other AddressBook) error
}

type AddressesByChain map[string]map[string]TypeAndVersion

type AddressBookMap struct {
	addressesByChain AddressesByChain
	mtx              sync.RWMutex
}

// ValidateChainID checks that id is usable as an address book key.
func ValidateChainID(id string) error {
	if id == "" {
		return errors.Wrap(ErrInvalidChainID, "chain id cannot be empty")
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return errors.Wrapf(ErrInvalidChainID, "chain id %q contains whitespace", id)
	}
	return nil
}

// NormalizeAddress validates a bech32 account or contract address and returns
// its canonical lower case form.
func NormalizeAddress(address string) (string, error) {
	if address == "" {
		return "", errors.Wrap(ErrInvalidAddress, "address cannot be empty")
	}
	hrp, data, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidAddress, "address %s is not valid bech32: %v", address, err)
	}
	if len(data) == 0 {
		return "", errors.Wrapf(ErrInvalidAddress, "address %s has no payload", address)
	}
	if hrp == "" {
		return "", errors.Wrapf(ErrInvalidAddress, "address %s has no human readable part", address)
	}
	return strings.ToLower(address), nil
}

// save will save an address for a given chain id. It will error if there is a conflicting existing address.
func (m *AddressBookMap) save(chainID string, address string, typeAndVersion TypeAndVersion) error {
	if err := ValidateChainID(chainID); err != nil {
		return err
	}
	address, err := NormalizeAddress(address)
	if err != nil {
		return err
	}

	if typeAndVersion.Type == "" {
		return errors.New("type cannot be empty")
	}

	if _, exists := m.addressesByChain[chainID]; !exists {
		// First time chain add, create map
		m.addressesByChain[chainID] = make(map[string]TypeAndVersion)
	}
	if _, exists := m.addressesByChain[chainID][address]; exists {
		return fmt.Errorf("address %s already exists for chain %s", address, chainID)
	}
	m.addressesByChain[chainID][address] = typeAndVersion
	return nil
}

// Save will save an address for a given chain id. It will error if there is a conflicting existing address.
// thread safety version of the save method
func (m *AddressBookMap) Save(chainID string, address string, typeAndVersion TypeAndVersion) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.save(chainID, address, typeAndVersion)
}

func (m *AddressBookMap) Addresses() (map[string]map[string]TypeAndVersion, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	// maps are mutable and pass via a pointer
	// creating a copy of the map to prevent concurrency
	// read and changes outside object-bound
	return m.cloneAddresses(m.addressesByChain), nil
}

func (m *AddressBookMap) AddressesForChain(chainID string) (map[string]TypeAndVersion, error) {
	if err := ValidateChainID(chainID); err != nil {
		return nil, err
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if _, exists := m.addressesByChain[chainID]; !exists {
		return nil, errors.Wrapf(ErrChainNotFound, "chain id %s", chainID)
	}

	return maps.Clone(m.addressesByChain[chainID]), nil
}

// Merge will merge the addresses from another address book into this one.
// It will error on any existing addresses and leave this book unchanged.
func (m *AddressBookMap) Merge(ab AddressBook) error {
	addresses, err := ab.Addresses()
	if err != nil {
		return err
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	staged := NewMemoryAddressBookFromMap(m.cloneAddresses(m.addressesByChain))
	for chainID, chainAddresses := range addresses {
		for address, typeAndVersion := range chainAddresses {
			if err := staged.save(chainID, address, typeAndVersion); err != nil {
				return err
			}
		}
	}
	m.addressesByChain = staged.addressesByChain
	return nil
}

// cloneAddresses creates a deep copy of map[string]map[string]TypeAndVersion object
func (m *AddressBookMap) cloneAddresses(input map[string]map[string]TypeAndVersion) map[string]map[string]TypeAndVersion {
	result := make(map[string]map[string]TypeAndVersion)
	for chainID, chainAddresses := range input {
		result[chainID] = maps.Clone(chainAddresses)
	}
	return result
}

func NewMemoryAddressBook() *AddressBookMap {
	return &AddressBookMap{
		addressesByChain: make(map[string]map[string]TypeAndVersion),
	}
}

func NewMemoryAddressBookFromMap(addressesByChain map[string]map[string]TypeAndVersion) *AddressBookMap {
	return &AddressBookMap{
		addressesByChain: addressesByChain,
	}
}

// LoadAddressBookFile reads an address book written by WriteAddressBookFile.
// A missing file yields an empty book.
func LoadAddressBookFile(path string) (*AddressBookMap, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewMemoryAddressBook(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read address book %s", path)
	}
	var addresses AddressesByChain
	if err := json.Unmarshal(b, &addresses); err != nil {
		return nil, errors.Wrapf(err, "failed to parse address book %s", path)
	}
	ab := NewMemoryAddressBook()
	if err := ab.Merge(NewMemoryAddressBookFromMap(addresses)); err != nil {
		return nil, errors.Wrapf(err, "invalid address book %s", path)
	}
	return ab, nil
}

// WriteAddressBookFile writes all addresses of ab as indented JSON.
func WriteAddressBookFile(path string, ab AddressBook) error {
	addresses, err := ab.Addresses()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(addresses, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal address book")
	}
	return errors.Wrapf(os.WriteFile(path, b, 0o600), "failed to write address book %s", path)
}

// AddressBookContains reports whether addrToFind is recorded for chainID.
func AddressBookContains(ab AddressBook, chainID string, addrToFind string) (bool, error) {
	addrs, err := ab.AddressesForChain(chainID)
	if err != nil {
		return false, err
	}

	for addr := range addrs {
		if addr == strings.ToLower(addrToFind) {
			return true, nil
		}
	}

	return false, nil
}

// AddLabel adds a string to the LabelSet in the TypeAndVersion.
func (tv *TypeAndVersion) AddLabel(label string) {
	if tv.Labels == nil {
		tv.Labels = make(LabelSet)
	}
	tv.Labels.Add(label)
}
