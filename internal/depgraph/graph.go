package depgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/ir"
)

// Relations resolves the related entities of a reference. Implementations
// return ir.ErrNotFound (possibly wrapped) when from no longer exists.
type Relations interface {
	Related(ctx context.Context, from ir.EntityRef, rel ir.Relation, kind ir.Kind, channelID int64) ([]ir.EntityRef, error)
}

// DependencyStore persists the dynamic dependencies recorded while rendering.
type DependencyStore interface {
	// DependencyRows returns the rows whose source is the given entity and
	// whose channel is 0 or channelID.
	DependencyRows(ctx context.Context, source ir.EntityRef, channelID int64) ([]ir.DependencyRow, error)

	// ReplaceDependencies replaces every row recorded for root.
	ReplaceDependencies(ctx context.Context, root ir.EntityRef, rows []ir.DependencyRow) error

	// RemoveDependencies deletes every row recorded for root.
	RemoveDependencies(ctx context.Context, root ir.EntityRef) error
}

// Rule is an inverse edge of the table: a change of Source dirties Target
// on every entity reached from the changed one through Via.Inverse().
type Rule struct {
	Source ir.PropertyRef
	Target ir.PropertyRef
	Via    ir.Relation
	Mask   ir.EventMask
}

// Graph is the static dependency registry plus the dynamic lookup.
type Graph struct {
	table     *compiler.Table
	registry  *Registry
	rules     map[ir.PropertyRef][]Rule
	relations Relations
	store     DependencyStore
	overrides map[AccessorKey]Accessor
	logger    *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithRelations sets the resolver for non-self relations.
func WithRelations(r Relations) Option {
	return func(g *Graph) {
		g.relations = r
	}
}

// WithDependencyStore sets the store of dynamic dependencies.
func WithDependencyStore(s DependencyStore) Option {
	return func(g *Graph) {
		g.store = s
	}
}

// WithAccessor overrides the accessor of kind.name.
func WithAccessor(kind ir.Kind, name string, acc Accessor) Option {
	return func(g *Graph) {
		g.overrides[AccessorKey{Kind: kind, Property: name}] = acc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// New builds a Graph from a compiled table.
func New(t *compiler.Table, opts ...Option) (*Graph, error) {
	if t == nil {
		return nil, fmt.Errorf("new graph: nil table")
	}
	g := &Graph{
		table:     t,
		rules:     make(map[ir.PropertyRef][]Rule),
		overrides: make(map[AccessorKey]Accessor),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, k := range t.Kinds {
		for _, p := range k.Properties {
			for _, src := range p.DependsOn {
				from := ir.PropertyRef{Kind: src.Kind, Property: src.Property}
				g.rules[from] = append(g.rules[from], Rule{
					Source: from,
					Target: ir.PropertyRef{Kind: k.Kind, Property: p.Name},
					Via:    src.Via,
					Mask:   src.On,
				})
			}
		}
	}
	g.registry = newRegistry(t, g.overrides)
	return g, nil
}

// Default builds a Graph over the embedded default table.
func Default(opts ...Option) (*Graph, error) {
	t, err := compiler.DefaultTable()
	if err != nil {
		return nil, err
	}
	return New(t, opts...)
}

// Table returns the table the graph was built from.
func (g *Graph) Table() *compiler.Table { return g.table }

// Registry returns the property registry.
func (g *Graph) Registry() *Registry { return g.registry }

// Relations returns the configured relation resolver, or nil.
func (g *Graph) Relations() Relations { return g.relations }

// Rules returns the inverse edges leaving source, in registration order.
func (g *Graph) Rules(source ir.PropertyRef) []Rule {
	return slices.Clone(g.rules[source])
}

// Closure returns props followed by every property of the same object that
// is transitively derived from them, in discovery order.
func (g *Graph) Closure(kind ir.Kind, props []string) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for i := 0; i < len(out); i++ {
		for _, r := range g.rules[ir.PropertyRef{Kind: kind, Property: out[i]}] {
			if r.Via != ir.RelationSelf || r.Target.Kind != kind {
				continue
			}
			if !slices.Contains(out, r.Target.Property) {
				out = append(out, r.Target.Property)
			}
		}
	}
	return out
}

type depKey struct {
	dependent ir.EntityKey
	property  string
}

// AllDependencies returns the dependencies affected by a change of props
// on object under mask (already corrected). Empty props means the whole
// object changed and every dependency applies.
//
// Static dependencies come first, in registration order, followed by the
// dynamic rows. Each (dependent, property) pair is returned once. Targets
// that can no longer be resolved are logged and skipped.
func (g *Graph) AllDependencies(ctx context.Context, object ir.EntityRef, props []string, mask ir.EventMask, channelID int64) ([]ir.Dependency, error) {
	var sources []string
	whole := len(props) == 0
	if whole {
		sources = g.registry.Properties(object.Kind)
	} else {
		sources = g.Closure(object.Kind, props)
	}

	var deps []ir.Dependency
	seen := make(map[depKey]bool)
	add := func(d ir.Dependency) {
		k := depKey{dependent: d.Dependent.Key(), property: d.Target.Property}
		if seen[k] {
			return
		}
		seen[k] = true
		deps = append(deps, d)
	}

	for _, prop := range sources {
		for _, r := range g.rules[ir.PropertyRef{Kind: object.Kind, Property: prop}] {
			if !r.Mask.HasAny(mask) {
				continue
			}
			targets, err := g.resolve(ctx, object, r, channelID)
			if err != nil {
				if errors.Is(err, ir.ErrNotFound) {
					g.logger.Warn("skipping stale dependency",
						"object", object.String(),
						"rule", r.Source.String()+" -> "+r.Target.String(),
						"error", err,
					)
					continue
				}
				return nil, fmt.Errorf("resolve %s -> %s: %w", r.Source, r.Target, err)
			}
			for _, t := range targets {
				add(ir.Dependency{
					Source:    r.Source,
					Target:    r.Target,
					Dependent: t,
					Via:       r.Via,
					Mask:      r.Mask,
				})
			}
		}
	}

	if g.store == nil {
		return deps, nil
	}
	rows, err := g.store.DependencyRows(ctx, object, channelID)
	if err != nil {
		return nil, fmt.Errorf("load dynamic dependencies of %s: %w", object, err)
	}
	for _, row := range rows {
		if row.Source.Kind != object.Kind || row.Source.ID != object.ID {
			continue
		}
		if row.ChannelID != 0 && row.ChannelID != channelID {
			continue
		}
		if !row.Mask.HasAny(mask) {
			continue
		}
		if !whole && row.SourceProperty != "" && !slices.Contains(sources, row.SourceProperty) {
			continue
		}
		add(ir.Dependency{
			Source:    ir.PropertyRef{Kind: row.Source.Kind, Property: row.SourceProperty},
			Target:    ir.PropertyRef{Kind: row.Dependent.Kind, Property: row.DependentProperty},
			Dependent: row.Dependent,
			Via:       ir.RelationSelf,
			Mask:      row.Mask,
			Dynamic:   true,
		})
	}
	return deps, nil
}

// resolve finds the dependents of a rule starting from the changed object.
func (g *Graph) resolve(ctx context.Context, object ir.EntityRef, r Rule, channelID int64) ([]ir.EntityRef, error) {
	if r.Via == ir.RelationSelf {
		return []ir.EntityRef{object}, nil
	}
	if g.relations == nil {
		g.logger.Debug("no relation resolver, skipping rule",
			"rule", r.Source.String()+" -> "+r.Target.String(),
			"via", string(r.Via),
		)
		return nil, nil
	}
	return g.relations.Related(ctx, object, r.Via.Inverse(), r.Target.Kind, channelID)
}

// RemovePrepared drops the dynamic dependencies recorded for root, so the
// next render of root starts from an empty set.
func (g *Graph) RemovePrepared(ctx context.Context, root ir.EntityRef) error {
	if g.store == nil {
		return nil
	}
	if err := g.store.RemoveDependencies(ctx, root); err != nil {
		return fmt.Errorf("remove prepared dependencies of %s: %w", root, err)
	}
	return nil
}
