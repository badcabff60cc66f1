package depgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/ir"
)

// Reader gives accessors access to other entities. Reads through a Reader
// may be recorded as dynamic dependencies (see render.Tracker).
type Reader interface {
	// Property computes a property of another entity.
	Property(ctx context.Context, ref ir.EntityRef, name string) (any, error)

	// Related lists entities of kind reached from ref through rel.
	Related(ctx context.Context, ref ir.EntityRef, rel ir.Relation, kind ir.Kind) ([]ir.EntityRef, error)
}

// Accessor computes the value of one property of an entity.
type Accessor func(ctx context.Context, e *ir.Entity, rd Reader) (any, error)

// Property is one registry entry.
type Property struct {
	Name      string
	Accessor  Accessor
	DependsOn []compiler.SourceDecl
}

// Registry maps kind -> property -> entry. It is built once and never
// modified.
type Registry struct {
	order map[ir.Kind][]string
	props map[ir.Kind]map[string]Property
}

// AccessorKey names an accessor override.
type AccessorKey struct {
	Kind     ir.Kind
	Property string
}

func newRegistry(t *compiler.Table, overrides map[AccessorKey]Accessor) *Registry {
	r := &Registry{
		order: make(map[ir.Kind][]string),
		props: make(map[ir.Kind]map[string]Property),
	}
	for _, k := range t.Kinds {
		m := make(map[string]Property, len(k.Properties))
		for _, p := range k.Properties {
			acc, ok := overrides[AccessorKey{Kind: k.Kind, Property: p.Name}]
			if !ok {
				acc = builtinAccessor(k.Kind, p.Name)
			}
			m[p.Name] = Property{Name: p.Name, Accessor: acc, DependsOn: p.DependsOn}
			r.order[k.Kind] = append(r.order[k.Kind], p.Name)
		}
		r.props[k.Kind] = m
	}
	return r
}

// Lookup returns the entry for kind.name.
func (r *Registry) Lookup(kind ir.Kind, name string) (Property, bool) {
	p, ok := r.props[kind][name]
	return p, ok
}

// Properties returns the declared property names of kind in declaration order.
func (r *Registry) Properties(kind ir.Kind) []string {
	return append([]string(nil), r.order[kind]...)
}

// Resolve computes kind.name for e. Undeclared properties fall back to the
// attribute accessor.
func (r *Registry) Resolve(ctx context.Context, e *ir.Entity, name string, rd Reader) (any, error) {
	if p, ok := r.Lookup(e.Ref.Kind, name); ok && p.Accessor != nil {
		return p.Accessor(ctx, e, rd)
	}
	return attributeAccessor(name)(ctx, e, rd)
}

func builtinAccessor(kind ir.Kind, name string) Accessor {
	switch name {
	case ir.PropOnline:
		return onlineAccessor
	case ir.PropURL:
		return urlAccessor
	case "filename":
		return filenameAccessor
	case ir.PropFolders:
		return childrenAccessor(ir.KindFolder)
	case ir.PropPages:
		return childrenAccessor(ir.KindPage)
	case ir.PropFiles:
		return childrenAccessor(ir.KindFile)
	case ir.PropImages:
		return childrenAccessor(ir.KindImage)
	case ir.PropLanguageSet:
		return siblingsAccessor(ir.RelationLanguages)
	case ir.PropPageVariants:
		return siblingsAccessor(ir.RelationVariants)
	}
	return attributeAccessor(name)
}

func attributeAccessor(name string) Accessor {
	return func(_ context.Context, e *ir.Entity, _ Reader) (any, error) {
		return e.Attr(name), nil
	}
}

func onlineAccessor(_ context.Context, e *ir.Entity, _ Reader) (any, error) {
	return e.Online, nil
}

func filenameAccessor(_ context.Context, e *ir.Entity, _ Reader) (any, error) {
	if f := e.Attr("filename"); f != "" {
		return f, nil
	}
	return e.Attr("name"), nil
}

// urlAccessor builds the publish url of an entity: a folder's pub_dir, or
// the parent folder's url joined with the entity's own file name.
func urlAccessor(ctx context.Context, e *ir.Entity, rd Reader) (any, error) {
	if e.Ref.Kind == ir.KindFolder {
		dir := e.Attr("pub_dir")
		if dir == "" {
			dir = "/"
		}
		return dir, nil
	}

	name := e.Attr("filename")
	if name == "" {
		name = e.Attr("name")
	}
	if ir.IsEmptyID(e.FolderID) || rd == nil {
		return "/" + name, nil
	}
	parent, err := rd.Property(ctx, ir.EntityRef{Kind: ir.KindFolder, ID: e.FolderID, ChannelID: e.Ref.ChannelID}, ir.PropURL)
	if err != nil {
		return nil, fmt.Errorf("url of parent folder %d: %w", e.FolderID, err)
	}
	dir, _ := parent.(string)
	return strings.TrimSuffix(dir, "/") + "/" + name, nil
}

func childrenAccessor(kind ir.Kind) Accessor {
	return func(ctx context.Context, e *ir.Entity, rd Reader) (any, error) {
		if rd == nil {
			return []int64{}, nil
		}
		refs, err := rd.Related(ctx, e.Ref, ir.RelationChildren, kind)
		if err != nil {
			return nil, err
		}
		return refIDs(refs), nil
	}
}

func siblingsAccessor(rel ir.Relation) Accessor {
	return func(ctx context.Context, e *ir.Entity, rd Reader) (any, error) {
		if rd == nil {
			return []int64{}, nil
		}
		refs, err := rd.Related(ctx, e.Ref, rel, ir.KindPage)
		if err != nil {
			return nil, err
		}
		return refIDs(refs), nil
	}
}

func refIDs(refs []ir.EntityRef) []int64 {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}
