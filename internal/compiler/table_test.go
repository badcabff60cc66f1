package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func TestDefaultTable_Compiles(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	var kinds []ir.Kind
	for _, k := range table.Kinds {
		kinds = append(kinds, k.Kind)
	}
	assert.Equal(t, ir.Kinds, kinds, "every kind declared, in declaration order")

	url, ok := table.Property(ir.KindPage, "url")
	require.True(t, ok)
	require.Len(t, url.DependsOn, 2)
	assert.Equal(t, SourceDecl{Kind: ir.KindPage, Property: "filename", Via: ir.RelationSelf, On: DefaultSourceMask}, url.DependsOn[0])
	assert.Equal(t, SourceDecl{Kind: ir.KindFolder, Property: "url", Via: ir.RelationParent, On: ir.EventUpdate | ir.EventMove}, url.DependsOn[1])

	assert.Empty(t, AnalyzeCycles(table))
}

func TestCompileTable_PreservesFieldOrder(t *testing.T) {
	table, err := CompileTableBytes("order.cue", []byte(`
kinds: page: properties: {
	zeta: {}
	alpha: {}
	mid: dependsOn: [{property: "zeta"}, {property: "alpha"}]
}
`))
	require.NoError(t, err)

	k, ok := table.Kind(ir.KindPage)
	require.True(t, ok)
	var names []string
	for _, p := range k.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestCompileTable_FromValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
kinds: tag: properties: {
	value: {}
	content: dependsOn: [{property: "value", on: ["update"]}]
}
`)
	table, err := CompileTable(v)
	require.NoError(t, err)

	content, ok := table.Property(ir.KindTag, "content")
	require.True(t, ok)
	assert.Equal(t, ir.EventUpdate, content.DependsOn[0].On)
}

func TestCompileTable_MissingKinds(t *testing.T) {
	_, err := CompileTableBytes("empty.cue", []byte(`other: 1`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "kinds", ce.Field)
}

func TestCompileTable_UnknownKind(t *testing.T) {
	_, err := CompileTableBytes("bad.cue", []byte(`kinds: template: properties: {}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}

func TestCompileTable_SyntaxError(t *testing.T) {
	_, err := CompileTableBytes("syntax.cue", []byte(`kinds: {`))
	require.Error(t, err)
}

func TestCompileTable_BadRelation(t *testing.T) {
	_, err := CompileTableBytes("via.cue", []byte(`
kinds: page: properties: {
	name: {}
	url: dependsOn: [{property: "name", via: "cousin"}]
}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cousin")
}

func TestCompileTable_BadEventName(t *testing.T) {
	_, err := CompileTableBytes("on.cue", []byte(`
kinds: page: properties: {
	name: {}
	url: dependsOn: [{property: "name", on: ["explode"]}]
}
`))
	require.Error(t, err)
}

func TestCompileTable_ValidationErrors(t *testing.T) {
	_, err := CompileTableBytes("invalid.cue", []byte(`
kinds: {
	folder: properties: name: {}
	page: properties: {
		name: {}
		a: dependsOn: [{property: "b"}]
		b: dependsOn: [{property: "a"}]
		c: dependsOn: [{property: "missing"}]
		d: dependsOn: [{kind: "folder", property: "name"}]
		e: dependsOn: [{kind: "page", property: "name", via: "parent"}]
	}
}
`))
	require.Error(t, err)

	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))

	codes := map[string]bool{}
	for _, e := range verrs.Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes[ErrDerivationCycle], "a <-> b")
	assert.True(t, codes[ErrUndeclaredSource], "missing")
	assert.True(t, codes[ErrSelfKindMismatch], "folder source without via")
	assert.True(t, codes[ErrInvalidParentVia], "page source via parent")
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.cue")
	require.NoError(t, os.WriteFile(path, []byte(`kinds: generic: properties: title: {}`), 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)
	_, ok := table.Property(ir.KindGeneric, "title")
	assert.True(t, ok)

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
