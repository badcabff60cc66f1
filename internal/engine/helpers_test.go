package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/depgraph"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
)

// setupEngine seeds a fresh store with a fixture from testdata and builds
// an engine over it with the default dependency table.
func setupEngine(t *testing.T, fixture string, opts ...Option) (*Engine, *store.Store) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	s := testutil.SeedStore(t, string(data))

	g, err := depgraph.Default(
		depgraph.WithRelations(s),
		depgraph.WithDependencyStore(s),
	)
	require.NoError(t, err)

	opts = append([]Option{WithCommitter(s)}, opts...)
	e, err := New(s, g, opts...)
	require.NoError(t, err)
	return e, s
}

// markActions indexes marks by "kind:id@channel".
func markActions(marks []ir.DirtyMark) map[string]ir.Action {
	out := make(map[string]ir.Action, len(marks))
	for _, m := range marks {
		out[markName(m.Kind, m.ID, m.ChannelID)] = m.Action
	}
	return out
}

func markName(kind ir.Kind, id, channelID int64) string {
	return ir.EntityRef{Kind: kind, ID: id, ChannelID: channelID}.String()
}

func page(id int64) ir.EntityRef   { return ir.Ref(ir.KindPage, id) }
func folder(id int64) ir.EntityRef { return ir.Ref(ir.KindFolder, id) }
