package decl

import "fmt"

// Kind is the closed set of declaration kinds the engine knows how to resolve.
// Resolution strategies switch over every value; a new kind must be added to
// each of them.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindScript
	// KindFileAnnotations is the container of the file-level annotations of a file.
	KindFileAnnotations
	KindClass
	KindTypeAlias
	KindFunction
	KindProperty
	// KindAccessor is a getter or setter. It is resolved together with its property.
	KindAccessor
	// KindBackingField is the storage of a property. It is resolved together with its property.
	KindBackingField
	KindField
)

var kindNames = map[Kind]string{
	KindFile:            "file",
	KindScript:          "script",
	KindFileAnnotations: "file_annotations",
	KindClass:           "class",
	KindTypeAlias:       "type_alias",
	KindFunction:        "function",
	KindProperty:        "property",
	KindAccessor:        "accessor",
	KindBackingField:    "backing_field",
	KindField:           "field",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown declaration kind %q", s)
}

// IsRoot returns true for kinds that may appear at the top of a declaration tree.
func (k Kind) IsRoot() bool {
	return k == KindFile || k == KindScript
}

// IsContainer returns true for kinds whose children are independently resolvable declarations.
func (k Kind) IsContainer() bool {
	return k == KindFile || k == KindScript || k == KindClass
}

// IsCallable returns true for kinds that carry a return type.
func (k Kind) IsCallable() bool {
	switch k {
	case KindFunction, KindProperty, KindAccessor, KindBackingField, KindField:
		return true
	default:
		return false
	}
}

// IsPropertyPart returns true for kinds that only exist as part of a property.
func (k Kind) IsPropertyPart() bool {
	return k == KindAccessor || k == KindBackingField
}
