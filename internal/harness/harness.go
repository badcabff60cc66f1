package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/depgraph"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/render"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
)

// Harness runs the steps of one scenario.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	graph    *depgraph.Graph
	engine   *engine.Engine
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and seed the fixture
//  2. Compile the dependency table and build the engine
//  3. Run every step in its own transaction
//  4. Read back the publish queue and transaction log
//  5. Evaluate assertions
//
// An error is returned only when the scenario cannot be set up; failed
// expectations and assertions are reported on the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	fixture, err := store.LoadFixture(scenario.Fixture)
	if err != nil {
		return nil, err
	}
	if err := st.Seed(ctx, fixture); err != nil {
		return nil, fmt.Errorf("failed to seed fixture: %w", err)
	}

	table, err := loadTable(scenario.Table)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	graph, err := depgraph.New(table,
		depgraph.WithRelations(st),
		depgraph.WithDependencyStore(st),
		depgraph.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithCommitter(st),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithTxIDGenerator(testutil.NewSequentialTxIDs(scenario.Name)),
		engine.WithLogger(logger),
		engine.WithMaxDepth(scenario.MaxDepth),
	}
	if scenario.Multichannel != nil {
		opts = append(opts, engine.WithMultichannel(*scenario.Multichannel))
	}
	eng, err := engine.New(st, graph, opts...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		store:    st,
		graph:    graph,
		engine:   eng,
		logger:   logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if result.Marks, err = st.DirtyMarks(ctx); err != nil {
		return nil, err
	}
	if result.Transactions, err = st.Transactions(ctx); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadTable(path string) (*compiler.Table, error) {
	if path == "" {
		return compiler.DefaultTable()
	}
	return compiler.LoadTable(path)
}

// runStep runs one step in its own transaction. The transaction commits
// unless the step failed with an unexpected error.
func (h *Harness) runStep(ctx context.Context, i int, step Step, result *Result) error {
	channelID := h.scenario.Channel
	if step.Channel != nil {
		channelID = *step.Channel
	}

	tx := h.engine.Begin(channelID, h.scenario.User)
	if step.Interrupt {
		tx.Interrupt()
	}

	var stepErr error
	switch {
	case step.Trigger != nil:
		t := step.Trigger
		stepErr = h.engine.TriggerEvent(ctx, tx, t.Entity, t.Object, t.Properties, t.Mask, t.Depth, channelID)
	case step.Apply != nil:
		stepErr = h.apply(ctx, tx, step.Apply)
	case step.Render != nil:
		stepErr = h.render(ctx, tx, channelID, step.Render)
	}

	for _, entry := range tx.Trace() {
		result.Trace = append(result.Trace, newTraceEvent(i, entry))
	}

	if msg := checkExpectedError(step.ExpectError, stepErr); msg != "" {
		result.AddError(fmt.Sprintf("step %d: %s", i, msg))
	}

	if stepErr != nil && !engine.IsInterruptedError(stepErr) {
		tx.Abort()
		return nil
	}
	return tx.Commit(ctx)
}

func checkExpectedError(expect string, err error) string {
	switch expect {
	case "":
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
	case ExpectInterrupted:
		if !engine.IsInterruptedError(err) {
			return fmt.Sprintf("expected interrupted error, got %v", err)
		}
	case ExpectReadOnly:
		if !engine.IsReadOnlyError(err) {
			return fmt.Sprintf("expected read-only error, got %v", err)
		}
	}
	return ""
}

func (h *Harness) apply(ctx context.Context, tx *engine.Tx, a *ApplyStep) error {
	ent, err := h.store.Entity(ctx, a.Entity.Kind, a.Entity.ID)
	if err != nil {
		return err
	}
	for k, v := range a.Attributes {
		if ent.Attributes == nil {
			ent.Attributes = make(map[string]string)
		}
		ent.Attributes[k] = v
	}
	ent.ReadOnly = a.ReadOnly
	return h.engine.Apply(ctx, tx, engine.Mutation{
		Kind:       a.Mutation,
		Entity:     ent,
		Properties: a.Properties,
		FromNode:   a.FromNode,
	})
}

func (h *Harness) render(ctx context.Context, tx *engine.Tx, channelID int64, r *RenderStep) error {
	tracker := render.NewTracker(h.graph, h.store, render.WithLogger(h.logger))
	tracker.Begin(r.Root, channelID)
	for _, read := range r.Reads {
		ent, err := h.store.Entity(ctx, read.Kind, read.ID)
		if err != nil {
			return err
		}
		tracker.Resolve(ctx, ent, read.Property)
	}
	_, err := tracker.Finish(ctx, tx)
	return err
}
