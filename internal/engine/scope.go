package engine

import (
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// scope is the propagation state of one top-level TriggerEvent call. It is
// passed explicitly down the recursion; nothing about a pass lives in
// package or engine state.
type scope struct {
	tx     *Tx
	cycles *CycleDetector

	// path is the chain of events from the top-level call to the current
	// one, used for log context.
	path []ir.EntityRef

	// fanout is set while an event is re-dispatched to the channels that
	// inherit its entity. Those dispatches must not fan out again nor run
	// channel creation handling.
	fanout bool
}

func newScope(tx *Tx) *scope {
	return &scope{tx: tx, cycles: NewCycleDetector()}
}

// push returns a child scope with ref appended to the path. The cycle
// detector is shared.
func (s *scope) push(ref ir.EntityRef) *scope {
	c := *s
	c.path = append(s.path[:len(s.path):len(s.path)], ref)
	return &c
}

// inChannelFanout returns a child scope for channel fan-out dispatch.
func (s *scope) inChannelFanout() *scope {
	c := *s
	c.fanout = true
	return &c
}

func (s *scope) pathString() string {
	parts := make([]string, len(s.path))
	for i, r := range s.path {
		parts[i] = r.String()
	}
	return strings.Join(parts, " > ")
}
