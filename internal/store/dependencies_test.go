package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func depRow(root, source, dependent ir.EntityRef, prop string, channelID int64) ir.DependencyRow {
	return ir.DependencyRow{
		Root:              root,
		Source:            source,
		SourceProperty:    prop,
		Dependent:         dependent,
		DependentProperty: "content",
		Mask:              ir.EventUpdate | ir.EventDelete,
		ChannelID:         channelID,
	}
}

func TestDependencies_ReplaceAndLookup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	root := ir.Ref(ir.KindPage, 1)
	folder := ir.Ref(ir.KindFolder, 3)

	rows := []ir.DependencyRow{
		depRow(root, folder, root, "name", 0),
		depRow(root, folder, root, "name", 0), // duplicate read
		depRow(root, folder, root, "pub_dir", 5),
		depRow(root, ir.Ref(ir.KindTag, 9), root, "value", 0),
	}
	require.NoError(t, s.ReplaceDependencies(ctx, root, rows))

	all, err := s.Dependencies(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 3, "content-addressed ids collapse the duplicate")
	assert.Equal(t, ir.MustDependencyRowID(rows[0]), all[0].ID)
	assert.Equal(t, rows[0].Mask, all[0].Mask)

	bySource, err := s.DependencyRows(ctx, folder, 0)
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "name", bySource[0].SourceProperty)

	bySource, err = s.DependencyRows(ctx, folder, 5)
	require.NoError(t, err)
	assert.Len(t, bySource, 2)

	// next render replaces the previous rows
	require.NoError(t, s.ReplaceDependencies(ctx, root, rows[3:]))
	all, err = s.Dependencies(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.RemoveDependencies(ctx, root))
	all, err = s.Dependencies(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDependencies_RootsAreIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	folder := ir.Ref(ir.KindFolder, 3)
	a, b := ir.Ref(ir.KindPage, 1), ir.Ref(ir.KindPage, 2)

	require.NoError(t, s.ReplaceDependencies(ctx, a, []ir.DependencyRow{depRow(a, folder, a, "name", 0)}))
	require.NoError(t, s.ReplaceDependencies(ctx, b, []ir.DependencyRow{depRow(b, folder, b, "name", 0)}))
	require.NoError(t, s.RemoveDependencies(ctx, a))

	rows, err := s.DependencyRows(ctx, folder, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b, rows[0].Root)
}
