package ir

import (
	"slices"
	"strconv"
)

// Event describes one change delivered to the propagation engine.
//
// Events are immutable once constructed. Recursion builds a new Event with
// Next, which always increments Depth.
type Event struct {
	// Source is the entity the event is delivered to.
	Source EntityRef

	// Object is the dependency object whose dependents are looked up. It is
	// nil for create-type events on objects that do not exist yet; the
	// engine then uses Source.
	Object *EntityRef

	// Properties lists the changed properties. Empty means "whole object".
	// Move events carry the id of the node the object moved from as the
	// first property.
	Properties []string

	Mask      EventMask
	Depth     int
	ChannelID int64
}

// NewEvent builds a depth-0 event. The property slice is copied.
func NewEvent(source EntityRef, props []string, mask EventMask, channelID int64) Event {
	return Event{
		Source:     source,
		Properties: slices.Clone(props),
		Mask:       mask,
		ChannelID:  channelID,
	}
}

// Next builds the follow-on event at depth+1 in the same channel.
func (e Event) Next(source EntityRef, props []string, mask EventMask) Event {
	return Event{
		Source:     source,
		Properties: slices.Clone(props),
		Mask:       mask,
		Depth:      e.Depth + 1,
		ChannelID:  e.ChannelID,
	}
}

// InChannel returns a copy of e delivered to another channel.
func (e Event) InChannel(channelID int64) Event {
	c := e
	c.Properties = slices.Clone(e.Properties)
	c.ChannelID = channelID
	return c
}

// DependencyObject returns the object dependents are looked up for.
func (e Event) DependencyObject() EntityRef {
	if e.Object != nil && !e.Object.Empty() {
		return *e.Object
	}
	return e.Source
}

// WholeObject reports whether the event carries no property list.
func (e Event) WholeObject() bool {
	return len(e.Properties) == 0
}

// MovedFromNode returns the node id carried by a move event.
func (e Event) MovedFromNode() (int64, bool) {
	if !e.Mask.Has(EventMove) || len(e.Properties) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(e.Properties[0], 10, 64)
	if err != nil || IsEmptyID(id) {
		return 0, false
	}
	return id, true
}

// MoveProperties builds the property payload of a move event.
func MoveProperties(fromNodeID int64) []string {
	if IsEmptyID(fromNodeID) {
		return nil
	}
	return []string{strconv.FormatInt(fromNodeID, 10)}
}
