// Package dirtyq collects the dirty marks produced by one propagation pass.
//
// A mark says "entity X must be reprocessed in channel C by the publish
// pipeline". The queue merges marks for the same (kind, id, channel) slot by
// action severity, so the pipeline does at most one operation per entity per
// channel per transaction however many propagation paths reached it.
//
// A Queue belongs to exactly one transaction and is not safe for concurrent
// use.
package dirtyq

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/cascade/internal/ir"
)

// Sink receives marks when a transaction (or a slice of it) commits.
// Implemented by store.Store.
type Sink interface {
	WriteDirtyMarks(ctx context.Context, marks []ir.DirtyMark) error
}

// Queue is the in-transaction publish queue.
type Queue struct {
	slots map[ir.MarkKey]int
	marks []ir.DirtyMark
	seq   int64
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{slots: make(map[ir.MarkKey]int)}
}

// Dirty records that ref must be reprocessed in channelID. If a mark for the
// same slot exists, the more severe action is kept and the property lists
// are united; no second mark is created.
//
// Returns the resulting mark.
func (q *Queue) Dirty(ref ir.EntityRef, action ir.Action, channelID int64, props ...string) ir.DirtyMark {
	q.seq++
	mark := ir.DirtyMark{
		Kind:       ref.Kind,
		ID:         ref.ID,
		ChannelID:  channelID,
		Action:     action,
		Properties: slices.Clone(props),
		Seq:        q.seq,
	}

	if i, ok := q.slots[mark.Key()]; ok {
		q.marks[i] = q.marks[i].Merge(mark)
		return q.marks[i]
	}

	q.slots[mark.Key()] = len(q.marks)
	q.marks = append(q.marks, mark)
	return mark
}

// Get returns the mark for a slot.
func (q *Queue) Get(kind ir.Kind, id, channelID int64) (ir.DirtyMark, bool) {
	i, ok := q.slots[ir.MarkKey{Kind: kind, ID: id, ChannelID: channelID}]
	if !ok {
		return ir.DirtyMark{}, false
	}
	return q.marks[i], true
}

// Marks returns a copy of all marks in first-arrival order.
func (q *Queue) Marks() []ir.DirtyMark {
	out := make([]ir.DirtyMark, len(q.marks))
	for i, m := range q.marks {
		m.Properties = slices.Clone(m.Properties)
		out[i] = m
	}
	return out
}

// Len returns the number of distinct slots.
func (q *Queue) Len() int {
	return len(q.marks)
}

// Reset discards every mark. Used when the enclosing transaction aborts.
func (q *Queue) Reset() {
	q.slots = make(map[ir.MarkKey]int)
	q.marks = nil
}

// Flush hands all marks to the sink and empties the queue. On error the
// queue is left untouched so the caller can abort.
func (q *Queue) Flush(ctx context.Context, sink Sink) (int, error) {
	if len(q.marks) == 0 {
		return 0, nil
	}
	n := len(q.marks)
	if err := sink.WriteDirtyMarks(ctx, q.Marks()); err != nil {
		return 0, fmt.Errorf("flush dirty marks: %w", err)
	}
	q.Reset()
	return n, nil
}
