package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialGenerator_Sequence(t *testing.T) {
	gen := NewSequentialGenerator()
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", gen.NewID().String())
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", gen.NewID().String())

	gen.Reset()
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", gen.NewID().String())
}

func TestSequentialGenerator_ConcurrentUse(t *testing.T) {
	gen := NewSequentialGenerator()
	const n = 50

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.NewID().String()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
