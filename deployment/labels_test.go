package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelSet(t *testing.T) {
	t.Parallel()

	ls := NewLabelSet("TLEAF", "code-42")
	assert.Len(t, ls, 2)
	assert.True(t, ls.Contains("TLEAF"))
	assert.False(t, ls.Contains("tleaf"))

	ls.Add("TLEAF")
	assert.Len(t, ls, 2)

	assert.Equal(t, []string{"TLEAF", "code-42"}, ls.List())
	assert.Equal(t, "TLEAF code-42", ls.String())

	assert.Empty(t, NewLabelSet().String())
	assert.Equal(t, []string{}, LabelSet(nil).List())
	assert.True(t, LabelSet(nil).IsEmpty())
}

func TestLabelSet_Equal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b LabelSet
		want bool
	}{
		{name: "both empty", a: NewLabelSet(), b: nil, want: true},
		{name: "same", a: NewLabelSet("a", "b"), b: NewLabelSet("b", "a"), want: true},
		{name: "subset", a: NewLabelSet("a"), b: NewLabelSet("a", "b"), want: false},
		{name: "different", a: NewLabelSet("a"), b: NewLabelSet("b"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestLabelSet_CodeID(t *testing.T) {
	t.Parallel()

	id, ok := NewLabelSet("TLEAF", CodeIDLabel(42)).CodeID()
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok = NewLabelSet("TLEAF", "code-abc").CodeID()
	assert.False(t, ok)
	_, ok = NewLabelSet().CodeID()
	assert.False(t, ok)
}

func TestLabeledAddresses(t *testing.T) {
	t.Parallel()

	plain := NewTypeAndVersion("TLeafToken", Version1_0_0)
	tleaf := NewTypeAndVersion("TLeafToken", Version1_0_0)
	tleaf.AddLabel("TLEAF")
	tleaf.AddLabel(CodeIDLabel(42))
	other := NewTypeAndVersion("Other", Version1_0_0)
	other.AddLabel("TLEAF")

	la := LabeledAddresses{
		"terra1plain": plain,
		"terra1tleaf": tleaf,
		"terra1other": other,
	}

	assert.Equal(t, LabeledAddresses{"terra1plain": plain}, la.And())
	assert.Equal(t, LabeledAddresses{"terra1tleaf": tleaf, "terra1other": other}, la.And("TLEAF"))
	assert.Equal(t, LabeledAddresses{"terra1tleaf": tleaf}, la.And("TLEAF", "code-42"))
	assert.Empty(t, la.And("TLEAF", "code-7"))
	assert.Equal(t, LabeledAddresses{"terra1tleaf": tleaf}, la.OfType("TLeafToken").And("TLEAF"))
}
