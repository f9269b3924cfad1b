package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTable_GetMintsOncePerName(t *testing.T) {
	st := NewSymbolTable(UUIDv7Generator{})

	a := st.Get("lp0")
	b := st.Get("lp0")
	assert.Same(t, a, b)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, st.Len())

	c := st.Get("lp1")
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, 2, st.Len())
}

func TestSymbolTable_NormalizesNames(t *testing.T) {
	st := NewSymbolTable(UUIDv7Generator{})

	// "é" precomposed vs "e" + combining acute.
	a := st.Get("café")
	b := st.Get("café")
	assert.Same(t, a, b)
	assert.Equal(t, 1, st.Len())
}

func TestSymbolTable_ForEachSortedOrder(t *testing.T) {
	st := NewSymbolTable(UUIDv7Generator{})
	st.Get("zeta")
	st.Get("alpha")
	st.Get("mid")

	var names []string
	st.ForEach(func(name string, sym *Symbol) {
		require.NotNil(t, sym)
		names = append(names, name)
	})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestSymbol_FlagsStartClear(t *testing.T) {
	st := NewSymbolTable(UUIDv7Generator{})
	sym := st.Get("lp0")
	assert.False(t, sym.Created)
	assert.False(t, sym.StrongRef)
	assert.False(t, sym.WeakRef)
}
