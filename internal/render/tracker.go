// Package render records the dynamic dependencies of a render pass.
//
// While a root entity renders, every property it reads through the Tracker
// is remembered as "dependent property was derived from source property".
// Finish persists the reads as dependency rows keyed by the root and starts
// over, so stale rows from the previous render never re-trigger.
//
// A Tracker is bound to one render at a time and is not safe for
// concurrent use.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/depgraph"
	"github.com/roach88/cascade/internal/ir"
)

// ErrRenderLoop is returned by Push when the entity is already rendering.
var ErrRenderLoop = errors.New("render loop")

// EntityLoader loads entities read through the tracker.
type EntityLoader interface {
	Entity(ctx context.Context, kind ir.Kind, id int64) (*ir.Entity, error)
}

// Writer receives the rows of a finished render. Implemented by store.Store
// and engine.Tx.
type Writer interface {
	ReplaceDependencies(ctx context.Context, root ir.EntityRef, rows []ir.DependencyRow) error
}

type frame struct {
	ref      ir.EntityRef
	property string
}

// Tracker records property reads during rendering.
type Tracker struct {
	graph    *depgraph.Graph
	entities EntityLoader
	logger   *slog.Logger

	root      ir.EntityRef
	channelID int64
	active    bool
	stack     []frame
	seen      mapset.Set[string]
	rows      []ir.DependencyRow
	suspended int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger for read failures and loops.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// NewTracker creates a tracker computing properties with the graph's
// registry and loading related entities from entities.
func NewTracker(graph *depgraph.Graph, entities EntityLoader, opts ...Option) *Tracker {
	t := &Tracker{
		graph:    graph,
		entities: entities,
		logger:   slog.Default(),
		seen:     mapset.NewThreadUnsafeSet[string](),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin starts a render pass of root in channelID. Any unfinished pass is
// discarded.
func (t *Tracker) Begin(root ir.EntityRef, channelID int64) {
	t.root = root
	t.channelID = channelID
	t.active = true
	t.stack = []frame{{ref: root}}
	t.seen.Clear()
	t.rows = nil
	t.suspended = 0
}

// Root returns the entity being rendered.
func (t *Tracker) Root() ir.EntityRef { return t.root }

// Push marks ref as rendering. It fails with ErrRenderLoop if ref is
// already on the render stack.
func (t *Tracker) Push(ref ir.EntityRef) error {
	if t.Find(ref) {
		return fmt.Errorf("%w: %s", ErrRenderLoop, ref)
	}
	t.stack = append(t.stack, frame{ref: ref})
	return nil
}

// Pop removes the innermost rendering entity. The root is never popped.
func (t *Tracker) Pop() {
	if len(t.stack) > 1 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// Find reports whether ref is currently on the render stack.
func (t *Tracker) Find(ref ir.EntityRef) bool {
	for _, f := range t.stack {
		if f.ref.Key() == ref.Key() {
			return true
		}
	}
	return false
}

// Depth returns the size of the render stack.
func (t *Tracker) Depth() int { return len(t.stack) }

// Suspend stops recording until the returned function is called. Calls nest.
func (t *Tracker) Suspend() (resume func()) {
	t.suspended++
	done := false
	return func() {
		if !done {
			done = true
			t.suspended--
		}
	}
}

// Suspended reports whether recording is off.
func (t *Tracker) Suspended() bool { return t.suspended > 0 }

// Resolve computes property name of e and records the read. A failing read
// is logged and yields nil.
func (t *Tracker) Resolve(ctx context.Context, e *ir.Entity, name string) any {
	if e == nil {
		t.logger.Warn("property read of missing entity", "property", name)
		return nil
	}
	v, err := t.resolve(ctx, e, name)
	if err != nil {
		t.logger.Warn("property read failed",
			"entity", e.Ref.String(),
			"property", name,
			"error", err,
		)
		return nil
	}
	return v
}

func (t *Tracker) resolve(ctx context.Context, e *ir.Entity, name string) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("resolve %s: nil entity", name)
	}
	t.record(e.Ref, name)

	for _, f := range t.stack {
		if f.ref.Key() == e.Ref.Key() && f.property == name {
			t.logger.Warn("property depends on itself while rendering",
				"entity", e.Ref.String(),
				"property", name,
			)
			return nil, nil
		}
	}

	t.stack = append(t.stack, frame{ref: e.Ref, property: name})
	defer func() { t.stack = t.stack[:len(t.stack)-1] }()
	return t.graph.Registry().Resolve(ctx, e, name, t)
}

func (t *Tracker) record(source ir.EntityRef, property string) {
	if !t.active || t.Suspended() || len(t.stack) == 0 {
		return
	}
	top := t.stack[len(t.stack)-1]
	if top.ref.Key() == source.Key() {
		return
	}

	row := ir.DependencyRow{
		Root:              t.root,
		Source:            source,
		SourceProperty:    property,
		Dependent:         top.ref,
		DependentProperty: top.property,
		Mask:              compiler.DefaultSourceMask,
		ChannelID:         t.channelID,
	}
	id, err := ir.DependencyRowID(row)
	if err != nil {
		t.logger.Warn("cannot record dependency", "source", source.String(), "error", err)
		return
	}
	if !t.seen.Add(id) {
		return
	}
	row.ID = id
	t.rows = append(t.rows, row)
}

// Property implements depgraph.Reader.
func (t *Tracker) Property(ctx context.Context, ref ir.EntityRef, name string) (any, error) {
	e, err := t.entities.Entity(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	return t.resolve(ctx, e, name)
}

// Related implements depgraph.Reader.
func (t *Tracker) Related(ctx context.Context, ref ir.EntityRef, rel ir.Relation, kind ir.Kind) ([]ir.EntityRef, error) {
	r := t.graph.Relations()
	if r == nil {
		return nil, nil
	}
	return r.Related(ctx, ref, rel, kind, t.channelID)
}

// Rows returns the rows recorded so far, in read order.
func (t *Tracker) Rows() []ir.DependencyRow {
	return append([]ir.DependencyRow(nil), t.rows...)
}

// Finish persists the recorded rows for the root, replacing the rows of the
// previous render, and clears the tracker. Returns the number of rows written.
func (t *Tracker) Finish(ctx context.Context, w Writer) (int, error) {
	if !t.active {
		return 0, fmt.Errorf("finish: no render in progress")
	}
	rows := t.Rows()
	if err := w.ReplaceDependencies(ctx, t.root, rows); err != nil {
		return 0, fmt.Errorf("persist dependencies of %s: %w", t.root, err)
	}
	t.logger.Debug("render dependencies recorded", "root", t.root.String(), "rows", len(rows))

	t.active = false
	t.stack = nil
	t.seen.Clear()
	t.rows = nil
	return len(rows), nil
}
