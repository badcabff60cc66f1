package engine

import "sync/atomic"

// Clock is a monotonic logical clock. Every event the engine propagates is
// stamped with the next value, so a transaction trace has a total order
// that does not depend on wall time.
//
// Clock is safe for concurrent use; a single Tx only ever calls Next from
// one goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
