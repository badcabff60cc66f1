package engine

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestTriggerEvent_NilTx(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	err := e.TriggerEvent(context.Background(), nil, page(10), nil, nil, ir.EventUpdate, 0, 1)
	assert.Error(t, err)
}

func TestTriggerEvent_DirtIsTerminal(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, page(10), nil, []string{"content"}, ir.EventDirt, 0, 1)
	require.NoError(t, err)

	marks := tx.Marks()
	require.Len(t, marks, 1)
	assert.Equal(t, ir.ActionDependency, marks[0].Action)
	assert.Equal(t, []string{"content"}, marks[0].Properties)
	assert.Len(t, tx.Trace(), 1, "a dirt event must not produce follow-on events")
}

func TestTriggerEvent_FolderDelete(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventDelete, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	want := map[string]ir.Action{
		markName(ir.KindFolder, 2, 1): ir.ActionRemove,
		markName(ir.KindPage, 10, 1):  ir.ActionRemove,
		markName(ir.KindPage, 11, 1):  ir.ActionRemove,
		markName(ir.KindPage, 12, 1):  ir.ActionRemove,
		markName(ir.KindPage, 13, 1):  ir.ActionRemove,
		markName(ir.KindFile, 20, 1):  ir.ActionRemove,
		markName(ir.KindFolder, 1, 1): ir.ActionDependency,
	}
	assert.Equal(t, want, got)
	assert.Equal(t, ir.KindFolder, tx.Marks()[0].Kind, "the deleted folder is marked first")
}

func TestTriggerEvent_HideEqualsDelete(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	ctx := context.Background()

	dirts := func(mask ir.EventMask) []string {
		tx := e.Begin(1, 0)
		require.NoError(t, e.TriggerEvent(ctx, tx, page(13), nil, nil, mask, 0, 1))
		var out []string
		for _, entry := range tx.Trace() {
			if entry.Event.Mask.Has(ir.EventDirt) {
				out = append(out, entry.Event.Source.String()+"."+entry.Event.Properties[0])
			}
		}
		return out
	}

	deleted := dirts(ir.EventDelete)
	require.NotEmpty(t, deleted)
	assert.Equal(t, deleted, dirts(ir.EventHide))
}

func TestTriggerEvent_FolderHideKeepsChildren(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventHide, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionRemove, got[markName(ir.KindFolder, 2, 1)])
	for _, id := range []int64{10, 11, 12, 13} {
		assert.NotEqual(t, ir.ActionRemove, got[markName(ir.KindPage, id, 1)], "page %d", id)
	}
	assert.NotEqual(t, ir.ActionRemove, got[markName(ir.KindFile, 20, 1)])
	assert.Equal(t, ir.ActionDependency, got[markName(ir.KindFolder, 1, 1)], "the parent list still refreshes")
}

func TestTriggerEvent_RevealEqualsCreate(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	ctx := context.Background()

	marks := func(mask ir.EventMask) map[string]ir.Action {
		tx := e.Begin(1, 0)
		require.NoError(t, e.TriggerEvent(ctx, tx, page(13), nil, nil, mask, 0, 1))
		return markActions(tx.Marks())
	}

	assert.Equal(t, marks(ir.EventCreate), marks(ir.EventReveal))
}

func TestTriggerEvent_MarksMergeBySeverity(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	ctx := context.Background()
	tx := e.Begin(1, 0)

	require.NoError(t, e.TriggerEvent(ctx, tx, page(13), nil, []string{"name"}, ir.EventUpdate, 0, 1))
	m, ok := markActions(tx.Marks())[markName(ir.KindPage, 13, 1)]
	require.True(t, ok)
	assert.Equal(t, ir.ActionDependency, m)

	require.NoError(t, e.TriggerEvent(ctx, tx, page(13), nil, nil, ir.EventDelete, 0, 1))
	n := 0
	for _, mark := range tx.Marks() {
		if mark.Kind == ir.KindPage && mark.ID == 13 {
			n++
			assert.Equal(t, ir.ActionRemove, mark.Action)
		}
	}
	assert.Equal(t, 1, n, "one mark per entity and channel")
}

func TestTriggerEvent_FolderURLReachesChildren(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, []string{"pub_dir"}, ir.EventUpdate, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	for _, name := range []string{
		markName(ir.KindFolder, 2, 1),
		markName(ir.KindPage, 10, 1),
		markName(ir.KindPage, 11, 1),
		markName(ir.KindPage, 12, 1),
		markName(ir.KindPage, 13, 1),
		markName(ir.KindFile, 20, 1),
	} {
		assert.Equal(t, ir.ActionDependency, got[name], name)
	}
	assert.Len(t, got, 6)
	assert.NotContains(t, got, markName(ir.KindFolder, 1, 1), "a property update does not touch the parent")
}

func TestTriggerEvent_FolderMoveUpdatesSubtreeURLs(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventMove, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionMove, got[markName(ir.KindFolder, 2, 1)])
	assert.Equal(t, ir.ActionDependency, got[markName(ir.KindPage, 10, 1)])
	assert.Equal(t, ir.ActionDependency, got[markName(ir.KindPage, 13, 1)])

	var urlUpdates int
	for _, entry := range tx.Trace() {
		ev := entry.Event
		if ev.Source.Kind == ir.KindPage && ev.Mask == ir.EventUpdate && ir.ContainsProperty(ev.Properties, ir.PropURL) {
			urlUpdates++
		}
	}
	assert.Equal(t, 4, urlUpdates)
}

func TestTriggerEvent_BinaryContent(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, ir.Ref(ir.KindFile, 20), nil, []string{"binarycontent"}, ir.EventUpdate, 0, 1)
	require.NoError(t, err)

	marks := tx.Marks()
	require.NotEmpty(t, marks)
	assert.Equal(t, ir.ActionModify, marks[0].Action)
	assert.Contains(t, marks[0].Properties, "binarycontent")
}

func TestTriggerEvent_Tag(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, ir.Ref(ir.KindTag, 30), nil, []string{"value"}, ir.EventUpdate, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionModify, got[markName(ir.KindPage, 10, 1)])
	assert.Equal(t, ir.ActionDependency, got[markName(ir.KindTag, 30, 1)])

	var containerEvents []ir.Event
	for _, entry := range tx.Trace() {
		if entry.Event.Source.Key() == page(10).Key() {
			containerEvents = append(containerEvents, entry.Event)
		}
	}
	require.Len(t, containerEvents, 1, "the child event on the container must not fan out")
	assert.True(t, containerEvents[0].Mask.Has(ir.EventChild))
}

func TestTriggerEvent_DynamicDependency(t *testing.T) {
	e, s := setupEngine(t, "tree.yaml")
	ctx := context.Background()

	// Page 13 rendered the name of page 11.
	require.NoError(t, s.ReplaceDependencies(ctx, page(13), []ir.DependencyRow{{
		Source:            page(11),
		SourceProperty:    "name",
		Dependent:         page(13),
		DependentProperty: "content",
		Mask:              ir.EventUpdate,
	}}))

	tx := e.Begin(1, 0)
	require.NoError(t, e.TriggerEvent(ctx, tx, page(11), nil, []string{"name"}, ir.EventUpdate, 0, 1))

	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionDependency, got[markName(ir.KindPage, 13, 1)])

	tx = e.Begin(1, 0)
	require.NoError(t, e.TriggerEvent(ctx, tx, page(11), nil, []string{"online"}, ir.EventUpdate, 0, 1))
	assert.NotContains(t, markActions(tx.Marks()), markName(ir.KindPage, 13, 1),
		"a row on another property must not fire")
}

func TestTriggerEvent_StaleSourceSkipped(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, page(999), nil, []string{"name"}, ir.EventUpdate, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, tx.Marks())
	assert.Equal(t, 1, tx.Stats().SkippedStale)
}

func TestTriggerEvent_DeletedSourceStillRemoved(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, page(999), nil, nil, ir.EventDelete, 0, 1)
	require.NoError(t, err)
	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionRemove, got[markName(ir.KindPage, 999, 1)])
}

func TestTriggerEvent_DepthBound(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml", WithMaxDepth(3))
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, page(10), nil, []string{"name"}, ir.EventUpdate, 4, 1)
	require.NoError(t, err, "events beyond the bound are dropped, not failed")
	assert.Empty(t, tx.Marks())
	assert.Equal(t, 1, tx.Stats().DroppedDepth)
}

func TestTriggerEvent_DepthBoundKeepsShallowMarks(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml", WithMaxDepth(1))
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventDelete, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionRemove, got[markName(ir.KindFolder, 2, 1)])
	assert.Equal(t, ir.ActionRemove, got[markName(ir.KindPage, 10, 1)])
	assert.Positive(t, tx.Stats().DroppedDepth)
	assert.NotContains(t, got, markName(ir.KindFolder, 1, 1), "the parent dirt sits at depth 2")
}

func TestTriggerEvent_CyclicTreeTerminates(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(3), nil, nil, ir.EventDelete, 0, 1)
	require.NoError(t, err)

	got := markActions(tx.Marks())
	assert.Equal(t, ir.ActionRemove, got[markName(ir.KindFolder, 3, 1)])
	assert.Equal(t, ir.ActionRemove, got[markName(ir.KindFolder, 4, 1)])
	assert.Positive(t, tx.Stats().SkippedCycles)
}

func TestTriggerEvent_FinishedEventPropagatesAgain(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventDelete, 0, 1)
	require.NoError(t, err)

	refreshes := 0
	for _, entry := range tx.Trace() {
		ev := entry.Event
		if ev.Source == folder(2) && ev.Mask == ir.EventUpdate && slices.Equal(ev.Properties, []string{"pages"}) {
			refreshes++
		}
	}
	assert.Equal(t, 4, refreshes, "every deleted page refreshes the list once its sibling finished")
}

func TestTriggerEvent_InterruptedBeforeStart(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)
	tx.Interrupt()

	err := e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventDelete, 0, 1)
	require.Error(t, err)
	assert.True(t, IsInterruptedError(err))
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.Empty(t, tx.Marks())
}

// interruptingRepo interrupts the transaction the first time folder
// children are listed.
type interruptingRepo struct {
	*store.Store
	tx *Tx
}

func (r *interruptingRepo) Children(ctx context.Context, folderID int64, kind ir.Kind) ([]*ir.Entity, error) {
	children, err := r.Store.Children(ctx, folderID, kind)
	r.tx.Interrupt()
	return children, err
}

func TestTriggerEvent_InterruptedBetweenChildren(t *testing.T) {
	base, s := setupEngine(t, "tree.yaml")
	repo := &interruptingRepo{Store: s}
	e, err := New(repo, base.Graph(), WithCommitter(s))
	require.NoError(t, err)

	tx := e.Begin(1, 0)
	repo.tx = tx

	err = e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventDelete, 0, 1)
	require.Error(t, err)
	assert.True(t, IsInterruptedError(err))

	got := markActions(tx.Marks())
	assert.Equal(t, map[string]ir.Action{markName(ir.KindFolder, 2, 1): ir.ActionRemove}, got,
		"marks written before the interrupt stay, children are skipped")
}

func TestTriggerEvent_ContextCanceled(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.TriggerEvent(ctx, e.Begin(1, 0), folder(2), nil, nil, ir.EventDelete, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTriggerEvent_TraceIsOrdered(t *testing.T) {
	e, _ := setupEngine(t, "tree.yaml")
	tx := e.Begin(1, 0)
	require.NoError(t, e.TriggerEvent(context.Background(), tx, folder(2), nil, nil, ir.EventDelete, 0, 1))

	trace := tx.Trace()
	require.NotEmpty(t, trace)
	assert.Equal(t, 0, trace[0].Event.Depth)
	for i := 1; i < len(trace); i++ {
		assert.Greater(t, trace[i].Seq, trace[i-1].Seq)
	}
	assert.Equal(t, len(trace), tx.Stats().Events)
}
