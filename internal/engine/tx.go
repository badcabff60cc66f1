package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/roach88/cascade/internal/dirtyq"
	"github.com/roach88/cascade/internal/ir"
)

// Committer persists what a transaction produced. Implemented by store.Store.
type Committer interface {
	dirtyq.Sink
	ReplaceDependencies(ctx context.Context, root ir.EntityRef, rows []ir.DependencyRow) error
	RemoveDependencies(ctx context.Context, root ir.EntityRef) error
	WriteTransaction(ctx context.Context, rec ir.TxRecord) error
}

// TraceEntry is one propagated event, stamped with the engine clock.
type TraceEntry struct {
	Seq   int64    `json:"seq"`
	Event ir.Event `json:"event"`
}

// Tx is the transaction context of one propagation pass. It owns the dirty
// queue and buffers dependency rows written by renders until commit.
//
// A Tx is used by a single goroutine. Interrupt may be called from any
// goroutine.
type Tx struct {
	id        string
	channelID int64
	userID    int64

	queue *dirtyq.Queue
	deps  []pendingDeps
	trace []TraceEntry
	stats ir.TxStats

	interrupted atomic.Bool
	done        bool

	sink   Committer
	logger *slog.Logger
}

// pendingDeps is a buffered dependency write for one render root. A nil rows
// slice means remove.
type pendingDeps struct {
	root ir.EntityRef
	rows []ir.DependencyRow
}

// ID returns the transaction id.
func (t *Tx) ID() string { return t.id }

// ChannelID returns the channel the transaction runs in.
func (t *Tx) ChannelID() int64 { return t.channelID }

// UserID returns the acting user.
func (t *Tx) UserID() int64 { return t.userID }

// Interrupt asks the running propagation to stop at the next check.
func (t *Tx) Interrupt() { t.interrupted.Store(true) }

// Interrupted reports whether Interrupt was called.
func (t *Tx) Interrupted() bool { return t.interrupted.Load() }

// Marks returns the pending dirty marks in first-arrival order.
func (t *Tx) Marks() []ir.DirtyMark { return t.queue.Marks() }

// Trace returns the propagated events in order.
func (t *Tx) Trace() []TraceEntry { return slices.Clone(t.trace) }

// Stats returns the counters of the transaction so far.
func (t *Tx) Stats() ir.TxStats {
	s := t.stats
	s.Marks += t.queue.Len()
	return s
}

// ReplaceDependencies buffers the dependency rows recorded for root. A
// later write for the same root replaces an earlier one.
func (t *Tx) ReplaceDependencies(_ context.Context, root ir.EntityRef, rows []ir.DependencyRow) error {
	if rows == nil {
		rows = []ir.DependencyRow{}
	}
	t.bufferDeps(root, rows)
	return nil
}

// RemoveDependencies buffers the removal of every row recorded for root.
func (t *Tx) RemoveDependencies(_ context.Context, root ir.EntityRef) error {
	t.bufferDeps(root, nil)
	return nil
}

func (t *Tx) bufferDeps(root ir.EntityRef, rows []ir.DependencyRow) {
	key := root.Key()
	for i := range t.deps {
		if t.deps[i].root.Key() == key {
			t.deps[i].rows = rows
			return
		}
	}
	t.deps = append(t.deps, pendingDeps{root: root, rows: rows})
}

func (t *Tx) dirty(ref ir.EntityRef, action ir.Action, channelID int64, props ...string) {
	m := t.queue.Dirty(ref, action, channelID, props...)
	t.logger.Debug("dirty",
		"tx", t.id,
		"entity", ref.String(),
		"channel", channelID,
		"action", action.String(),
		"merged", m.Action.String(),
	)
}

// Checkpoint writes the marks and dependency rows gathered so far and
// keeps the transaction open. Returns the number of marks written.
func (t *Tx) Checkpoint(ctx context.Context) (int, error) {
	if t.done {
		return 0, fmt.Errorf("tx %s already finished", t.id)
	}
	if t.sink == nil {
		return 0, fmt.Errorf("tx %s has no committer", t.id)
	}

	for _, d := range t.deps {
		var err error
		if d.rows == nil {
			err = t.sink.RemoveDependencies(ctx, d.root)
		} else {
			err = t.sink.ReplaceDependencies(ctx, d.root, d.rows)
		}
		if err != nil {
			return 0, fmt.Errorf("write dependencies of %s: %w", d.root, err)
		}
	}
	t.deps = nil

	marks := t.queue.Len()
	n, err := t.queue.Flush(ctx, t.sink)
	if err != nil {
		return n, err
	}
	t.stats.Marks += marks
	return n, nil
}

// Commit writes everything pending plus the transaction record and closes
// the transaction. An interrupted transaction still commits the marks it
// produced.
func (t *Tx) Commit(ctx context.Context) error {
	if _, err := t.Checkpoint(ctx); err != nil {
		return err
	}
	rec := ir.TxRecord{
		ID:          t.id,
		ChannelID:   t.channelID,
		UserID:      t.userID,
		Interrupted: t.Interrupted(),
		Stats:       t.stats,
	}
	if err := t.sink.WriteTransaction(ctx, rec); err != nil {
		return fmt.Errorf("write transaction %s: %w", t.id, err)
	}
	t.done = true
	t.logger.Info("transaction committed",
		"tx", t.id,
		"events", t.stats.Events,
		"marks", t.stats.Marks,
		"interrupted", rec.Interrupted,
	)
	return nil
}

// Abort discards pending marks and buffered dependency rows.
func (t *Tx) Abort() {
	t.queue.Reset()
	t.deps = nil
	t.done = true
	t.logger.Debug("transaction aborted", "tx", t.id)
}
