package ir

import "fmt"

// Relation names how a dependent object is reached from the object whose
// property it was derived from.
type Relation string

const (
	// RelationSelf: the dependent property belongs to the same object.
	RelationSelf Relation = "self"
	// RelationParent: the dependent reads a property of its parent folder.
	RelationParent Relation = "parent"
	// RelationChildren: the dependent reads properties of its child objects.
	RelationChildren Relation = "children"
	// RelationLanguages: the dependent reads its language variants.
	RelationLanguages Relation = "languages"
	// RelationVariants: the dependent reads its page variants.
	RelationVariants Relation = "variants"
)

// ParseRelation converts a string to a Relation; "" means self.
func ParseRelation(s string) (Relation, error) {
	switch Relation(s) {
	case "":
		return RelationSelf, nil
	case RelationSelf, RelationParent, RelationChildren, RelationLanguages, RelationVariants:
		return Relation(s), nil
	default:
		return "", fmt.Errorf("unknown relation %q", s)
	}
}

// Inverse returns the relation that leads from the source object back to
// the dependent.
func (r Relation) Inverse() Relation {
	switch r {
	case RelationParent:
		return RelationChildren
	case RelationChildren:
		return RelationParent
	default:
		return r
	}
}

// PropertyRef names a property of an entity kind. An empty Property means
// the whole object.
type PropertyRef struct {
	Kind     Kind   `json:"kind" yaml:"kind"`
	Property string `json:"property,omitempty" yaml:"property,omitempty"`
}

func (p PropertyRef) String() string {
	if p.Property == "" {
		return string(p.Kind)
	}
	return string(p.Kind) + "." + p.Property
}

// Dependency is one resolved dependency returned by the dependency graph:
// the Dependent's Target property was derived from Source.
type Dependency struct {
	Source    PropertyRef
	Target    PropertyRef
	Dependent EntityRef
	Via       Relation
	Mask      EventMask

	// Dynamic is set for dependencies recorded during rendering.
	Dynamic bool
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s -> %s (%s.%s)", d.Source, d.Dependent, d.Dependent.Kind, d.Target.Property)
}

// DependencyRow is a dynamic dependency recorded while rendering Root.
// Dependent.Property of Dependent was derived from SourceProperty of Source;
// SourceProperty "" means the whole source object.
type DependencyRow struct {
	ID                string    `json:"id"`
	Root              EntityRef `json:"root"`
	Source            EntityRef `json:"source"`
	SourceProperty    string    `json:"source_property,omitempty"`
	Dependent         EntityRef `json:"dependent"`
	DependentProperty string    `json:"dependent_property,omitempty"`
	Mask              EventMask `json:"mask"`
	ChannelID         int64     `json:"channel_id,omitempty"`
}
