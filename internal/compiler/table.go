package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/cascade/internal/ir"
)

//go:embed default.cue
var defaultTableSource []byte

// DefaultSourceMask is the event mask of a source that declares no "on" list.
const DefaultSourceMask = ir.EventCreate | ir.EventUpdate | ir.EventDelete | ir.EventMove

// Table is a compiled dependency table.
type Table struct {
	Kinds []KindDecl `json:"kinds"`
}

// KindDecl lists the properties declared for one entity kind.
type KindDecl struct {
	Kind       ir.Kind        `json:"kind"`
	Properties []PropertyDecl `json:"properties"`
}

// PropertyDecl declares a property and what it is derived from.
type PropertyDecl struct {
	Name      string       `json:"name"`
	DependsOn []SourceDecl `json:"depends_on,omitempty"`
}

// SourceDecl is one source of a derived property.
type SourceDecl struct {
	Kind     ir.Kind      `json:"kind"`
	Property string       `json:"property"`
	Via      ir.Relation  `json:"via"`
	On       ir.EventMask `json:"on"`
}

// Kind returns the declaration for kind.
func (t *Table) Kind(kind ir.Kind) (KindDecl, bool) {
	for _, k := range t.Kinds {
		if k.Kind == kind {
			return k, true
		}
	}
	return KindDecl{}, false
}

// Property returns the declaration of kind.name.
func (t *Table) Property(kind ir.Kind, name string) (PropertyDecl, bool) {
	k, ok := t.Kind(kind)
	if !ok {
		return PropertyDecl{}, false
	}
	for _, p := range k.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDecl{}, false
}

// DefaultTable compiles the embedded default dependency table.
func DefaultTable() (*Table, error) {
	return CompileTableBytes("default.cue", defaultTableSource)
}

// LoadTable reads and compiles a dependency table from a CUE file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return CompileTableBytes(path, data)
}

// CompileTableBytes compiles CUE source into a validated Table.
func CompileTableBytes(filename string, src []byte) (*Table, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileTable(v)
}

// CompileTable converts a CUE value holding a "kinds" struct into a Table
// and validates it. Validation failures are returned as *ValidationErrors.
func CompileTable(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kinds"))
	if !kindsVal.Exists() {
		return nil, &CompileError{Field: "kinds", Message: "kinds is required", Pos: v.Pos()}
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	table := &Table{}
	for iter.Next() {
		kind, err := ir.ParseKind(iter.Label())
		if err != nil {
			return nil, &CompileError{Field: "kinds." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
		decl, err := parseKind(kind, iter.Value())
		if err != nil {
			return nil, err
		}
		table.Kinds = append(table.Kinds, decl)
	}

	if errs := Validate(table); len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}
	return table, nil
}

func parseKind(kind ir.Kind, v cue.Value) (KindDecl, error) {
	decl := KindDecl{Kind: kind}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return decl, nil
	}

	iter, err := propsVal.Fields()
	if err != nil {
		return decl, formatCUEError(err)
	}
	for iter.Next() {
		prop := PropertyDecl{Name: iter.Label()}
		deps, err := parseSources(kind, prop.Name, iter.Value())
		if err != nil {
			return decl, err
		}
		prop.DependsOn = deps
		decl.Properties = append(decl.Properties, prop)
	}
	return decl, nil
}

func parseSources(kind ir.Kind, prop string, v cue.Value) ([]SourceDecl, error) {
	depsVal := v.LookupPath(cue.ParsePath("dependsOn"))
	if !depsVal.Exists() {
		return nil, nil
	}

	list, err := depsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	field := fmt.Sprintf("kinds.%s.properties.%s.dependsOn", kind, prop)
	var sources []SourceDecl
	for i := 0; list.Next(); i++ {
		item := list.Value()
		at := fmt.Sprintf("%s[%d]", field, i)

		src := SourceDecl{Kind: kind, Via: ir.RelationSelf, On: DefaultSourceMask}

		name, err := lookupString(item, "property")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, &CompileError{Field: at, Message: "property is required", Pos: item.Pos()}
		}
		src.Property = name

		kindName, err := lookupString(item, "kind")
		if err != nil {
			return nil, err
		}
		if kindName != "" {
			if src.Kind, err = ir.ParseKind(kindName); err != nil {
				return nil, &CompileError{Field: at + ".kind", Message: err.Error(), Pos: item.Pos()}
			}
		}

		via, err := lookupString(item, "via")
		if err != nil {
			return nil, err
		}
		if src.Via, err = ir.ParseRelation(via); err != nil {
			return nil, &CompileError{Field: at + ".via", Message: err.Error(), Pos: item.Pos()}
		}

		onVal := item.LookupPath(cue.ParsePath("on"))
		if onVal.Exists() {
			mask, err := parseMaskList(onVal)
			if err != nil {
				return nil, &CompileError{Field: at + ".on", Message: err.Error(), Pos: item.Pos()}
			}
			src.On = mask
		}

		sources = append(sources, src)
	}
	return sources, nil
}

func lookupString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func parseMaskList(v cue.Value) (ir.EventMask, error) {
	list, err := v.List()
	if err != nil {
		return 0, err
	}
	var mask ir.EventMask
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return 0, err
		}
		m, err := ir.ParseMask(s)
		if err != nil {
			return 0, err
		}
		mask |= m
	}
	if mask == ir.EventNone {
		return 0, fmt.Errorf("on must name at least one event")
	}
	return mask, nil
}
