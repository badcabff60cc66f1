package ir

import (
	"fmt"
	"strings"
)

// EventMask is a set of flags describing what happened to an entity.
type EventMask uint32

const (
	EventCreate EventMask = 1 << iota
	EventUpdate
	EventDelete
	EventMove
	EventHide
	EventReveal
	EventChild
	EventParent
	EventStatusChange
	EventDirt
)

// EventNone is the empty mask.
const EventNone EventMask = 0

var maskNames = []struct {
	flag EventMask
	name string
}{
	{EventCreate, "create"},
	{EventUpdate, "update"},
	{EventDelete, "delete"},
	{EventMove, "move"},
	{EventHide, "hide"},
	{EventReveal, "reveal"},
	{EventChild, "child"},
	{EventParent, "parent"},
	{EventStatusChange, "statuschange"},
	{EventDirt, "dirt"},
}

// Has reports whether every bit of flag is set.
func (m EventMask) Has(flag EventMask) bool {
	return flag != 0 && m&flag == flag
}

// HasAny reports whether any bit of flags is set.
func (m EventMask) HasAny(flags EventMask) bool {
	return m&flags != 0
}

// Union returns m with the bits of other added.
func (m EventMask) Union(other EventMask) EventMask {
	return m | other
}

// Without returns m with the bits of other cleared.
func (m EventMask) Without(other EventMask) EventMask {
	return m &^ other
}

// Corrected maps the visibility flags onto the structural ones the
// dependency table understands: Hide becomes Delete, Reveal becomes Create.
// The result is only used for dependency lookup; side-effect dispatch keeps
// the original mask.
func (m EventMask) Corrected() EventMask {
	c := m
	if c.Has(EventHide) {
		c = c.Without(EventHide).Union(EventDelete)
	}
	if c.Has(EventReveal) {
		c = c.Without(EventReveal).Union(EventCreate)
	}
	return c
}

func (m EventMask) String() string {
	if m == EventNone {
		return "none"
	}
	var parts []string
	for _, n := range maskNames {
		if m.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseMask parses a "|" or "," separated list of flag names.
func ParseMask(s string) (EventMask, error) {
	var m EventMask
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return EventNone, nil
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name := strings.ToLower(strings.TrimSpace(part))
		found := false
		for _, n := range maskNames {
			if n.name == name {
				m |= n.flag
				found = true
				break
			}
		}
		if !found {
			return EventNone, fmt.Errorf("unknown event flag %q", part)
		}
	}
	return m, nil
}

// MarshalText implements encoding.TextMarshaler.
func (m EventMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EventMask) UnmarshalText(text []byte) error {
	parsed, err := ParseMask(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
