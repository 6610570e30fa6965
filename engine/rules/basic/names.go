package basic

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/model/decl"
)

// builtins are the types every module sees without declaring them.
var builtins = map[string]struct{}{
	"Any":     {},
	"Nothing": {},
	"Unit":    {},
	"Boolean": {},
	"Int":     {},
	"Long":    {},
	"Double":  {},
	"String":  {},
}

var (
	intLiteral    = regexp.MustCompile(`^-?[0-9]+$`)
	doubleLiteral = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	stringLiteral = regexp.MustCompile(`^"(?:[^"\\]|\\.)*"$`)
)

func builtin(name string) decl.TypeRef {
	return decl.ResolvedType(name, "", "")
}

func literalType(text string) (decl.TypeRef, bool) {
	text = strings.TrimSpace(text)
	switch {
	case intLiteral.MatchString(text):
		return builtin("Int"), true
	case doubleLiteral.MatchString(text):
		return builtin("Double"), true
	case stringLiteral.MatchString(text):
		return builtin("String"), true
	case text == "true" || text == "false":
		return builtin("Boolean"), true
	case text == "null":
		return builtin("Nothing"), true
	}
	return decl.TypeRef{}, false
}

// candidates returns the qualified names a simple name used inside node may
// refer to, innermost class scope first.
func candidates(node *decl.Node, name string) []string {
	var names []string
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == decl.KindClass {
			names = append(names, p.QualifiedName()+"."+name)
		}
	}
	return append(names, name)
}

// resolveType binds a type name used inside node to a visible class or type
// alias, or to a builtin type. Unknown names become error types.
func resolveType(tc *lazyresolve.Context, node *decl.Node, name string) decl.TypeRef {
	for _, candidate := range candidates(node, name) {
		n, ok := tc.Symbols.Lookup(candidate)
		if !ok {
			continue
		}
		switch n.Kind() {
		case decl.KindClass, decl.KindTypeAlias:
			return decl.ResolvedType(n.Name(), n.QualifiedName(), n.Arena().Module())
		}
	}
	if _, ok := builtins[name]; ok {
		return builtin(name)
	}
	return decl.ErrorType(name, "unresolved type")
}

// expressionType infers the type of e: literals have their builtin type, any
// other expression has the type of the first name it refers to.
func expressionType(ctx context.Context, tc *lazyresolve.Context, node *decl.Node, e decl.Expression) (decl.TypeRef, error) {
	if t, ok := literalType(e.Text); ok {
		return t, nil
	}
	if len(e.References) == 0 {
		return decl.ErrorType(e.Text, "cannot infer type"), nil
	}
	name := e.References[0]
	for _, candidate := range candidates(node, name) {
		callee, ok := tc.Symbols.Lookup(candidate)
		if !ok {
			continue
		}
		t, err := tc.ReturnTypes.ReturnTypeOf(ctx, tc, candidate)
		if errors.Is(err, lazyresolve.ErrSymbolNotFound) {
			continue
		}
		if err != nil {
			return decl.TypeRef{}, err
		}
		if t.Kind == decl.TypeUnresolved {
			// declared types are bound where they are declared
			t = resolveType(tc, callee, t.Name)
		}
		return t, nil
	}
	if _, ok := builtins[name]; ok {
		return builtin(name), nil
	}
	return decl.ErrorType(name, "unresolved reference"), nil
}
