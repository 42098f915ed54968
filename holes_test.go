package chipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoleRegistryAddPanicsOnDuplicate(t *testing.T) {
	r := NewHoleRegistry()
	r.Add("h0", 1)
	assert.Panics(t, func() { r.Add("h0", 2) })
}

func TestHoleRegistryFreshIsMonotone(t *testing.T) {
	r := NewHoleRegistry()
	h0 := r.Fresh("const", 2)
	h1 := r.Fresh("const", 2)
	h2 := r.Fresh("const", 2)
	assert.Equal(t, "const_0", h0.Name)
	assert.Equal(t, "const_1", h1.Name)
	assert.Equal(t, "const_2", h2.Name)
}

func TestHoleRegistryTotalBits(t *testing.T) {
	r := NewHoleRegistry()
	r.Add("a", WidthMux2)
	r.Add("b", WidthMux3)
	r.Add("c", WidthRelOp)
	require.Equal(t, WidthMux2+WidthMux3+WidthRelOp, r.TotalBits())
}

func TestHoleRegistryMergePreservesBoth(t *testing.T) {
	a := NewHoleRegistry()
	a.Add("a0", 1)
	b := NewHoleRegistry()
	b.Add("b0", 2)

	a.Merge(b)
	assert.Len(t, a.All(), 2)
	h, ok := a.Get("b0")
	require.True(t, ok)
	assert.Equal(t, 2, h.Width)
}
