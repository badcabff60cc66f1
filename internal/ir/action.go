package ir

import (
	"fmt"
	"slices"
)

// Action is what the publish pipeline must do with a dirty entity.
//
// Actions are totally ordered by severity:
// Remove > Move > Modify > Dependency.
type Action int

const (
	ActionDependency Action = iota + 1
	ActionModify
	ActionMove
	ActionRemove
)

var actionNames = map[Action]string{
	ActionDependency: "dependency",
	ActionModify:     "modify",
	ActionMove:       "move",
	ActionRemove:     "remove",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts a name back into an Action.
func ParseAction(s string) (Action, error) {
	for a, n := range actionNames {
		if n == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Severity returns the merge rank of the action.
func (a Action) Severity() int {
	return int(a)
}

// Max returns the more severe of a and b.
func (a Action) Max(b Action) Action {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// MarkKey identifies the slot a dirty mark occupies in the publish queue.
type MarkKey struct {
	Kind      Kind
	ID        int64
	ChannelID int64
}

// DirtyMark records that an entity must be reprocessed in a channel.
type DirtyMark struct {
	Kind       Kind     `json:"kind"`
	ID         int64    `json:"id"`
	ChannelID  int64    `json:"channel_id"`
	Action     Action   `json:"action"`
	Properties []string `json:"properties,omitempty"`
	Seq        int64    `json:"seq"`
}

// Key returns the merge key of the mark.
func (m DirtyMark) Key() MarkKey {
	return MarkKey{Kind: m.Kind, ID: m.ID, ChannelID: m.ChannelID}
}

// Merge folds other into m: the more severe action wins and the property
// lists are united. The earlier sequence number is kept.
func (m DirtyMark) Merge(other DirtyMark) DirtyMark {
	out := m
	out.Action = m.Action.Max(other.Action)
	out.Properties = slices.Clone(m.Properties)
	for _, p := range other.Properties {
		if !slices.Contains(out.Properties, p) {
			out.Properties = append(out.Properties, p)
		}
	}
	if other.Seq != 0 && (out.Seq == 0 || other.Seq < out.Seq) {
		out.Seq = other.Seq
	}
	return out
}

func (m DirtyMark) String() string {
	return fmt.Sprintf("%s:%d@%d %s", m.Kind, m.ID, m.ChannelID, m.Action)
}
