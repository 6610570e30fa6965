package project

import (
	"fmt"
	"strings"
)

// Kind classifies a module by where its declarations come from.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindSource is a module whose sources are part of the project.
	KindSource
	// KindLibrary is a compiled library.
	KindLibrary
	// KindLibrarySource holds the sources attached to a compiled library.
	KindLibrarySource
	// KindSDK is the platform SDK, always compiled.
	KindSDK
	// KindScript is a standalone script.
	KindScript
	// KindScriptDependency is a library a script depends on.
	KindScriptDependency
	// KindNotUnderContentRoot is a file that belongs to no configured module.
	KindNotUnderContentRoot
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindSource:              "source",
	KindLibrary:             "library",
	KindLibrarySource:       "library_source",
	KindSDK:                 "sdk",
	KindScript:              "script",
	KindScriptDependency:    "script_dependency",
	KindNotUnderContentRoot: "not_under_content_root",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a snake_case kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, n := range kindNames {
		if n == name && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown module kind %q", s)
}

// IsBinary returns true for modules whose declarations are read from compiled artifacts.
func (k Kind) IsBinary() bool {
	return k == KindLibrary || k == KindSDK
}

// IsLibrary returns true for binary modules and for library sources, the modules
// that are assumed stable across a source-only invalidation.
func (k Kind) IsLibrary() bool {
	return k.IsBinary() || k == KindLibrarySource
}

// IsScript returns true for scripts and their dependencies.
func (k Kind) IsScript() bool {
	return k == KindScript || k == KindScriptDependency
}

// Module is the identity of one unit of analysis together with its dependencies.
// Modules are compared by ID.
type Module struct {
	ID           string
	Kind         Kind
	Platforms    []Platform
	Dependencies []*Module
}

// NewModule creates a module with the given identity.
func NewModule(id string, kind Kind, platforms []Platform, deps ...*Module) *Module {
	return &Module{
		ID:           id,
		Kind:         kind,
		Platforms:    platforms,
		Dependencies: deps,
	}
}

func (m *Module) String() string {
	return fmt.Sprintf("%s(%s)", m.ID, m.Kind)
}

// Key is the cache key of the module.
func (m *Module) Key() string {
	return m.ID
}
