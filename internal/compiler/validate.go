package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateKind      = "E101" // kind declared twice
	ErrDuplicateProperty  = "E102" // property declared twice on a kind
	ErrUndeclaredSource   = "E103" // source property not declared on its kind
	ErrInvalidParentVia   = "E104" // via parent needs a folder source
	ErrInvalidChildrenVia = "E105" // via children needs a folder dependent
	ErrInvalidVariantVia  = "E106" // via languages/variants needs pages
	ErrSelfKindMismatch   = "E107" // via self across kinds
	ErrDerivationCycle    = "E108" // same-object derivation cycle
)

// ValidationError represents a table validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors carries every validation error of a table.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("invalid dependency table: %s", strings.Join(msgs, "; "))
}

// Validate checks a compiled table. Returns all errors (not fail-fast).
func Validate(t *Table) []ValidationError {
	var errs []ValidationError

	seenKinds := make(map[ir.Kind]bool)
	for _, k := range t.Kinds {
		if seenKinds[k.Kind] {
			errs = append(errs, ValidationError{
				Field:   "kinds." + string(k.Kind),
				Message: "kind declared more than once",
				Code:    ErrDuplicateKind,
			})
		}
		seenKinds[k.Kind] = true

		seenProps := make(map[string]bool)
		for _, p := range k.Properties {
			field := fmt.Sprintf("kinds.%s.properties.%s", k.Kind, p.Name)
			if seenProps[p.Name] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "property declared more than once",
					Code:    ErrDuplicateProperty,
				})
			}
			seenProps[p.Name] = true

			for i, src := range p.DependsOn {
				errs = append(errs, validateSource(t, k.Kind, fmt.Sprintf("%s.dependsOn[%d]", field, i), src)...)
			}
		}
	}

	for _, c := range derivationCycles(t) {
		errs = append(errs, ValidationError{
			Field:   strings.Join(c.Path, " → "),
			Message: "property is derived from itself",
			Code:    ErrDerivationCycle,
		})
	}

	return errs
}

func validateSource(t *Table, dependent ir.Kind, field string, src SourceDecl) []ValidationError {
	var errs []ValidationError

	if _, ok := t.Property(src.Kind, src.Property); !ok {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("source %s.%s is not declared", src.Kind, src.Property),
			Code:    ErrUndeclaredSource,
		})
	}

	switch src.Via {
	case ir.RelationSelf:
		if src.Kind != dependent {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("a %s source of a %s property needs a via relation", src.Kind, dependent),
				Code:    ErrSelfKindMismatch,
			})
		}
	case ir.RelationParent:
		if src.Kind != ir.KindFolder || !dependent.Hierarchical() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "via parent reads a folder property from a folder child",
				Code:    ErrInvalidParentVia,
			})
		}
	case ir.RelationChildren:
		if dependent != ir.KindFolder || !src.Kind.Hierarchical() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "via children reads child properties from a folder",
				Code:    ErrInvalidChildrenVia,
			})
		}
	case ir.RelationLanguages, ir.RelationVariants:
		if dependent != ir.KindPage || src.Kind != ir.KindPage {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("via %s relates pages only", src.Via),
				Code:    ErrInvalidVariantVia,
			})
		}
	}

	return errs
}
