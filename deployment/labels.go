package deployment

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

const codeIDLabelPrefix = "code-"

// LabelSet represents a set of labels on an address book entry.
type LabelSet map[string]struct{}

// NewLabelSet initializes a new LabelSet with any number of labels.
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, lb := range labels {
		set.Add(lb)
	}
	return set
}

func (ls LabelSet) Add(label string) {
	ls[label] = struct{}{}
}

func (ls LabelSet) Contains(label string) bool {
	_, ok := ls[label]
	return ok
}

// String returns the labels as a sorted, space-separated string.
func (ls LabelSet) String() string {
	return strings.Join(ls.List(), " ")
}

// List returns the labels sorted.
func (ls LabelSet) List() []string {
	if len(ls) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(ls))
}

func (ls LabelSet) Equal(other LabelSet) bool {
	return len(ls) == len(other) && ls.ContainsAll(other.List()...)
}

func (ls LabelSet) ContainsAll(labels ...string) bool {
	for _, label := range labels {
		if !ls.Contains(label) {
			return false
		}
	}
	return true
}

func (ls LabelSet) IsEmpty() bool {
	return len(ls) == 0
}

// CodeIDLabel is the label recording which stored code a contract was
// instantiated from.
func CodeIDLabel(codeID uint64) string {
	return codeIDLabelPrefix + strconv.FormatUint(codeID, 10)
}

// CodeID returns the code id recorded with CodeIDLabel, if any.
func (ls LabelSet) CodeID() (uint64, bool) {
	for label := range ls {
		if id, ok := strings.CutPrefix(label, codeIDLabelPrefix); ok {
			if n, err := strconv.ParseUint(id, 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// LabeledAddresses maps contract addresses to their type, version and labels.
type LabeledAddresses map[string]TypeAndVersion

// And keeps the entries carrying every one of labels. With no labels only
// unlabeled entries are kept.
func (la LabeledAddresses) And(labels ...string) LabeledAddresses {
	filtered := make(LabeledAddresses)
	for addr, tv := range la {
		if len(labels) == 0 {
			if tv.Labels.IsEmpty() {
				filtered[addr] = tv
			}
			continue
		}
		if tv.Labels.ContainsAll(labels...) {
			filtered[addr] = tv
		}
	}
	return filtered
}

// OfType keeps the entries of contract type typ.
func (la LabeledAddresses) OfType(typ ContractType) LabeledAddresses {
	filtered := make(LabeledAddresses)
	for addr, tv := range la {
		if tv.Type == typ {
			filtered[addr] = tv
		}
	}
	return filtered
}
