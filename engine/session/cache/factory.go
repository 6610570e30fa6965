package cache

import (
	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/engine/rules/basic"
	"github.com/onflow/lazyres/engine/session"
	"github.com/onflow/lazyres/model/project"
)

// Factory holds what the sessions of one platform family have in common.
type Factory struct {
	Family         project.Family
	DefaultImports []string
	// Transformers returns the rules of a session given the default imports.
	Transformers func(defaultImports []string) lazyresolve.Transformers
}

func (f Factory) rules() session.Rules {
	return session.Rules{
		Transformers: f.Transformers(f.DefaultImports),
		Bodies:       lazyresolve.NewTextBodies(),
	}
}

// DefaultFactories returns a factory per platform family, all with the basic rules.
func DefaultFactories() []Factory {
	common := []string{"lang.*", "collections.*"}
	with := func(imports ...string) []string {
		return append(append([]string(nil), common...), imports...)
	}
	return []Factory{
		{Family: project.FamilyCommon, DefaultImports: with(), Transformers: basic.New},
		{Family: project.FamilyJVM, DefaultImports: with("jvm.*"), Transformers: basic.New},
		{Family: project.FamilyJS, DefaultImports: with("js.*"), Transformers: basic.New},
		{Family: project.FamilyNative, DefaultImports: with("native.*"), Transformers: basic.New},
	}
}

// sessionKind is the label of the session created for a module.
func sessionKind(m *project.Module, binary bool) (string, bool) {
	switch m.Kind {
	case project.KindSource:
		return "source", true
	case project.KindLibrary, project.KindLibrarySource, project.KindScriptDependency:
		if binary {
			return "binary_library", true
		}
		return "library", true
	case project.KindSDK:
		return "binary_library", true
	case project.KindScript:
		return "script", true
	case project.KindNotUnderContentRoot:
		return "standalone", true
	default:
		return "", false
	}
}
