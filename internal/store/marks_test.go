package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func mark(kind ir.Kind, id, ch int64, a ir.Action, props ...string) ir.DirtyMark {
	return ir.DirtyMark{Kind: kind, ID: id, ChannelID: ch, Action: a, Properties: props}
}

func TestWriteDirtyMarks_MergesBySeverity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDirtyMarks(ctx, []ir.DirtyMark{
		mark(ir.KindPage, 1, 0, ir.ActionRemove),
		mark(ir.KindPage, 2, 0, ir.ActionDependency, "url"),
	}))
	require.NoError(t, s.WriteDirtyMarks(ctx, []ir.DirtyMark{
		mark(ir.KindPage, 1, 0, ir.ActionModify),
		mark(ir.KindPage, 2, 0, ir.ActionMove, "name"),
		mark(ir.KindPage, 2, 5, ir.ActionModify),
	}))

	marks, err := s.DirtyMarks(ctx)
	require.NoError(t, err)
	require.Len(t, marks, 3)

	assert.Equal(t, ir.ActionRemove, marks[0].Action, "lower severity never downgrades")
	assert.Equal(t, int64(1), marks[0].Seq)

	assert.Equal(t, ir.ActionMove, marks[1].Action)
	assert.Equal(t, []string{"url", "name"}, marks[1].Properties)
	assert.Equal(t, int64(2), marks[1].Seq, "first arrival order is kept")

	assert.Equal(t, int64(5), marks[2].ChannelID)
	assert.Equal(t, int64(3), marks[2].Seq)
}

func TestWriteDirtyMarks_Empty(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.WriteDirtyMarks(context.Background(), nil))
}

func TestClearDirtyMarks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDirtyMarks(ctx, []ir.DirtyMark{
		mark(ir.KindPage, 1, 0, ir.ActionModify),
		mark(ir.KindFile, 1, 0, ir.ActionModify),
	}))
	n, err := s.ClearDirtyMarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	marks, err := s.DirtyMarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestTransactions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := ir.TxRecord{ID: "tx-1", ChannelID: 2, UserID: 7, Stats: ir.TxStats{Events: 4, Marks: 3, DroppedDepth: 1}}
	require.NoError(t, s.WriteTransaction(ctx, rec))
	require.NoError(t, s.WriteTransaction(ctx, rec))
	require.NoError(t, s.WriteTransaction(ctx, ir.TxRecord{ID: "tx-0", Interrupted: true}))

	recs, err := s.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, rec, recs[0])
	assert.True(t, recs[1].Interrupted)
}
