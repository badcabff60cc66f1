package depgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

type stubReader struct {
	props   map[string]any
	related []ir.EntityRef
	err     error
}

func (s *stubReader) Property(_ context.Context, ref ir.EntityRef, name string) (any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.props[ref.String()+"."+name], nil
}

func (s *stubReader) Related(_ context.Context, _ ir.EntityRef, _ ir.Relation, _ ir.Kind) ([]ir.EntityRef, error) {
	return s.related, s.err
}

func TestRegistry_DeclarationOrder(t *testing.T) {
	g := newTestGraph(t)
	assert.Equal(t, []string{"value", "content"}, g.Registry().Properties(ir.KindTag))
	assert.Empty(t, g.Registry().Properties(ir.KindGeneric))

	p, ok := g.Registry().Lookup(ir.KindPage, "url")
	require.True(t, ok)
	assert.Len(t, p.DependsOn, 2)

	_, ok = g.Registry().Lookup(ir.KindPage, "nope")
	assert.False(t, ok)
}

func TestRegistry_BuiltinAccessors(t *testing.T) {
	g := newTestGraph(t)
	reg := g.Registry()
	ctx := context.Background()

	folder := &ir.Entity{Ref: ir.Ref(ir.KindFolder, 3), Attributes: map[string]string{"pub_dir": "/news/"}}
	v, err := reg.Resolve(ctx, folder, "url", nil)
	require.NoError(t, err)
	assert.Equal(t, "/news/", v)

	page := &ir.Entity{
		Ref:        ir.Ref(ir.KindPage, 7),
		FolderID:   3,
		Online:     true,
		Attributes: map[string]string{"name": "Hello", "filename": "hello.html"},
	}
	rd := &stubReader{props: map[string]any{"folder:3.url": "/news/"}}

	v, err = reg.Resolve(ctx, page, "url", rd)
	require.NoError(t, err)
	assert.Equal(t, "/news/hello.html", v)

	v, err = reg.Resolve(ctx, page, "online", rd)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = reg.Resolve(ctx, page, "name", rd)
	require.NoError(t, err)
	assert.Equal(t, "Hello", v)

	v, err = reg.Resolve(ctx, page, "undeclared", rd)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	rd.related = []ir.EntityRef{ir.Ref(ir.KindPage, 8), ir.Ref(ir.KindPage, 9)}
	v, err = reg.Resolve(ctx, page, "languageset", rd)
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 9}, v)

	v, err = reg.Resolve(ctx, folder, "pages", rd)
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 9}, v)
}

func TestRegistry_AccessorErrorPropagates(t *testing.T) {
	g := newTestGraph(t)
	page := &ir.Entity{Ref: ir.Ref(ir.KindPage, 7), FolderID: 3}

	_, err := g.Registry().Resolve(context.Background(), page, "url", &stubReader{err: errors.New("boom")})
	assert.Error(t, err)
}

func TestWithAccessor_Override(t *testing.T) {
	g := newTestGraph(t, WithAccessor(ir.KindTag, "value", func(_ context.Context, e *ir.Entity, _ Reader) (any, error) {
		return "tag-" + e.Attr("value"), nil
	}))
	tag := &ir.Entity{Ref: ir.Ref(ir.KindTag, 1), Attributes: map[string]string{"value": "x"}}

	v, err := g.Registry().Resolve(context.Background(), tag, "value", nil)
	require.NoError(t, err)
	assert.Equal(t, "tag-x", v)
}
