package testutil

import (
	"fmt"
	"sync"
)

// SequentialTxIDs generates "<prefix>-1", "<prefix>-2", ... and never runs
// out, unlike engine.FixedGenerator. Satisfies engine.TxIDGenerator.
type SequentialTxIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTxIDs creates a generator. An empty prefix means "tx".
func NewSequentialTxIDs(prefix string) *SequentialTxIDs {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequentialTxIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialTxIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
