package engine

// DefaultMaxDepth is the default bound on event depth. The default
// dependency table fans out at most a handful of levels; the bound only
// matters for data-level cycles the cycle detector cannot see.
const DefaultMaxDepth = 32

// DepthLimiter enforces the maximum event depth of a pass.
//
// CRITICAL DISTINCTION from Cycle Detection:
//   - Cycle Detection: Catches repeated events (A → B → A)
//   - Depth Limit: Catches unbounded chains of distinct events (A → B → C → ...)
//
// Events beyond the limit are dropped, not failed: their siblings and the
// rest of the pass continue.
type DepthLimiter struct {
	maxDepth int
}

// NewDepthLimiter creates a limiter. A non-positive bound selects
// DefaultMaxDepth.
func NewDepthLimiter(maxDepth int) DepthLimiter {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return DepthLimiter{maxDepth: maxDepth}
}

// Check returns a depth error if depth is beyond the bound.
func (l DepthLimiter) Check(txID, entity string, depth int) error {
	if depth > l.maxDepth {
		return NewDepthError(txID, entity, depth, l.maxDepth)
	}
	return nil
}

// MaxDepth returns the bound.
func (l DepthLimiter) MaxDepth() int {
	return l.maxDepth
}
