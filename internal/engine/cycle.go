package engine

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/cascade/internal/ir"
)

// flightKey identifies an event for cycle detection. Depth is not part of
// the key: the same change reaching the same entity deeper in its own
// propagation is a cycle.
type flightKey struct {
	entity    ir.EntityKey
	channelID int64
	mask      ir.EventMask
	props     uint64
}

func keyOf(ev ir.Event) flightKey {
	return flightKey{
		entity:    ev.Source.Key(),
		channelID: ev.ChannelID,
		mask:      ev.Mask,
		props:     xxhash.Sum64String(strings.Join(ev.Properties, "\x00")),
	}
}

// CycleDetector tracks the events currently on the propagation stack to
// stop data-level cycles in the dependency graph.
//
// Example cycle:
//
//	folder 1 deleted → sub-folder 2 deleted → sub-folder 1 deleted (again!)
//	← CYCLE DETECTED (the folder tree loops)
//
// Each top-level TriggerEvent gets its own detector. Before propagating an
// event, Enter reports whether the same (entity, channel, mask, properties)
// is still being propagated further up the stack; Leave pops it once its
// propagation returns. An event that already finished may be delivered
// again by another path.
//
// Together with the depth bound this guarantees termination.
type CycleDetector struct {
	inFlight mapset.Set[flightKey]
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{inFlight: mapset.NewThreadUnsafeSet[flightKey]()}
}

// Enter pushes ev and returns false if it is already in flight.
func (c *CycleDetector) Enter(ev ir.Event) bool {
	return c.inFlight.Add(keyOf(ev))
}

// Leave pops ev after its propagation returned.
func (c *CycleDetector) Leave(ev ir.Event) {
	c.inFlight.Remove(keyOf(ev))
}

// WouldCycle reports whether ev is in flight without pushing it.
func (c *CycleDetector) WouldCycle(ev ir.Event) bool {
	return c.inFlight.Contains(keyOf(ev))
}

// Size returns the number of events in flight.
func (c *CycleDetector) Size() int {
	return c.inFlight.Cardinality()
}
