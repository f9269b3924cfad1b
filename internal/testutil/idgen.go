package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialGenerator mints predictable row ids for tests.
//
// Each id embeds an incrementing counter in the final UUID segment, so
// golden files stay byte-identical between runs.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu  sync.Mutex
	seq uint32
}

// NewSequentialGenerator creates a generator starting at 1.
//
// The first NewID() returns 00000000-0000-4000-8000-000000000001.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{}
}

// NewID returns the next id in the sequence.
func (g *SequentialGenerator) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012d", g.seq))
}

// Reset restarts the sequence. After Reset(), the next NewID() returns
// the first id again.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
