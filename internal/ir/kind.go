package ir

import "fmt"

// Kind identifies the concrete type of a content entity.
//
// The set is closed. Code that dispatches on Kind must handle every value,
// falling through to KindGeneric only where generic behaviour is intended.
type Kind string

const (
	KindFolder  Kind = "folder"
	KindPage    Kind = "page"
	KindFile    Kind = "file"
	KindImage   Kind = "image"
	KindTag     Kind = "tag"
	KindGeneric Kind = "generic"
)

// Kinds lists every entity kind in declaration order.
var Kinds = []Kind{KindFolder, KindPage, KindFile, KindImage, KindTag, KindGeneric}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Hierarchical reports whether entities of this kind live in the folder tree
// and take part in channel localisation.
func (k Kind) Hierarchical() bool {
	switch k {
	case KindFolder, KindPage, KindFile, KindImage:
		return true
	case KindTag, KindGeneric:
		return false
	default:
		return false
	}
}

// Publishable reports whether the publish pipeline renders entities of this kind.
func (k Kind) Publishable() bool {
	switch k {
	case KindFolder, KindPage, KindFile, KindImage:
		return true
	case KindTag, KindGeneric:
		return false
	default:
		return false
	}
}

// Binary reports whether entities of this kind carry binary content.
func (k Kind) Binary() bool {
	return k == KindFile || k == KindImage
}

// ChildListProperty returns the property of the parent folder that lists
// entities of this kind, or "" for kinds that are not folder children.
func (k Kind) ChildListProperty() string {
	switch k {
	case KindFolder:
		return PropFolders
	case KindPage:
		return PropPages
	case KindFile:
		return PropFiles
	case KindImage:
		return PropImages
	case KindTag, KindGeneric:
		return ""
	default:
		return ""
	}
}
