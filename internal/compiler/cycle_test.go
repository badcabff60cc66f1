package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func TestAnalyzeCycles_CrossObjectCycleIsWarning(t *testing.T) {
	table, err := CompileTableBytes("cross.cue", []byte(`
kinds: {
	folder: properties: {
		url: {}
		pages: dependsOn: [{kind: "page", property: "url", via: "children"}]
	}
	page: properties: {
		url: dependsOn: [{kind: "folder", property: "pages", via: "parent"}]
	}
}
`))
	require.NoError(t, err, "cross-object cycles compile")

	warnings := AnalyzeCycles(table)
	require.Len(t, warnings, 1)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Len(t, warnings[0].Path, 3)
	assert.Equal(t, warnings[0].Path[0], warnings[0].Path[2])
	assert.ElementsMatch(t, []string{"folder.pages", "page.url"}, warnings[0].Path[:2])
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	table := &Table{Kinds: []KindDecl{{
		Kind: ir.KindPage,
		Properties: []PropertyDecl{{
			Name:      "content",
			DependsOn: []SourceDecl{{Kind: ir.KindPage, Property: "content", Via: ir.RelationLanguages, On: DefaultSourceMask}},
		}},
	}}}

	warnings := AnalyzeCycles(table)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"page.content", "page.content"}, warnings[0].Path)
	assert.Empty(t, derivationCycles(table), "languages edges are not same-object derivations")
}

func TestAnalyzeCycles_EmptyTable(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(&Table{}))
}

func TestTarjanSCC_Deterministic(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b"},
		"b": {"a"},
		"c": {"d"},
		"d": {"c"},
	}
	first := tarjanSCC(graph)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tarjanSCC(graph))
	}
}
