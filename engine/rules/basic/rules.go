// Package basic holds a small set of semantic rules: imports are bound to
// visible modules, type names to visible classes, implicit types are
// inferred from literals and referenced callables, and bodies are marked
// resolved. It is enough to drive the engine over real declaration trees.
package basic

import (
	"context"
	"fmt"
	"strings"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
)

// New returns the transformers of every phase. The default imports are added
// to every file and script, already resolved.
func New(defaultImports []string) lazyresolve.Transformers {
	return lazyresolve.Transformers{
		Imports:             imports{defaults: defaultImports},
		SuperTypes:          superTypes{},
		AnnotationArguments: annotationArguments{},
		ImplicitTypes:       implicitTypes{},
		Body:                bodies{},
	}
}

type imports struct {
	defaults []string
}

func (imports) Phase() phase.Phase { return phase.Imports }

func (t imports) Transform(_ context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	for i := range p.Imports {
		imp := &p.Imports[i]
		if imp.Resolved {
			continue
		}
		imp.Module, imp.Resolved = bindImport(tc.Symbols, imp.Path)
	}
	for _, path := range t.defaults {
		if !hasImport(p.Imports, path) {
			p.Imports = append(p.Imports, decl.Import{Path: path, Resolved: true})
		}
	}
	return nil
}

// bindImport binds path to the module declaring it, or to the visible module
// the path is nested in.
func bindImport(symbols lazyresolve.SymbolProvider, path string) (string, bool) {
	path = strings.TrimSuffix(path, ".*")
	if n, ok := symbols.Lookup(path); ok {
		return n.Arena().Module(), true
	}
	for _, m := range symbols.Modules() {
		if path == m || strings.HasPrefix(path, m+".") {
			return m, true
		}
	}
	return "", false
}

func hasImport(imports []decl.Import, path string) bool {
	for _, imp := range imports {
		if imp.Path == path {
			return true
		}
	}
	return false
}

type superTypes struct{}

func (superTypes) Phase() phase.Phase { return phase.SuperTypes }

func (superTypes) Transform(_ context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	for i, st := range p.SuperTypes {
		if !st.IsFinal() {
			p.SuperTypes[i] = resolveType(tc, d.Node(), st.Name)
		}
	}
	return nil
}

type annotationArguments struct{}

func (annotationArguments) Phase() phase.Phase { return phase.AnnotationArguments }

// Transform resolves annotation types and arguments. Placeholder arguments
// with nested calls cannot be typed reliably and trigger a recompute.
func (annotationArguments) Transform(_ context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	for i := range p.Annotations {
		a := &p.Annotations[i]
		if !a.Type.IsFinal() {
			a.Type = resolveType(tc, d.Node(), a.Name)
		}
		args, ok := a.Arguments.Value()
		if !ok {
			continue
		}
		for j := range args {
			arg := &args[j]
			if arg.Placeholder && !tc.Recompute && strings.ContainsAny(arg.Text, "()") {
				return fmt.Errorf("argument %q of @%s: %w", arg.Text, a.Name, lazyresolve.ErrRecompute)
			}
			if t, ok := literalType(arg.Text); ok {
				arg.Type = t
			} else if refs := lazyresolve.References(arg.Text); len(refs) > 0 {
				arg.Type = resolveType(tc, d.Node(), refs[0])
			}
			arg.Resolved = true
			arg.Placeholder = false
		}
		a.Arguments = a.Arguments.Compute(args)
	}
	return nil
}

type implicitTypes struct{}

func (implicitTypes) Phase() phase.Phase { return phase.ImplicitTypes }

func (implicitTypes) Transform(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	node, p := d.Node(), d.Payload()
	for i := range p.ValueParameters {
		vp := &p.ValueParameters[i]
		if !vp.Type.IsImplicit() {
			continue
		}
		t := decl.ErrorType(vp.Name, "parameter without type or default")
		if def, ok := vp.Default.Value(); ok {
			var err error
			if t, err = expressionType(ctx, tc, node, def); err != nil {
				return err
			}
		}
		vp.Type = t
	}
	if !p.ReturnType.IsImplicit() {
		return nil
	}

	source, ok := typeSource(tc, d)
	if !ok {
		p.ReturnType = decl.ErrorType(node.Name(), "no initializer or body to infer the type from")
		return nil
	}
	t, err := expressionType(ctx, tc, node, source)
	if err != nil {
		return err
	}
	p.ReturnType = t
	return nil
}

// typeSource returns the expression the type of d is inferred from: the
// initializer, the last statement of the body, or for properties the last
// statement of the getter.
func typeSource(tc *lazyresolve.Context, d *decl.Draft) (decl.Expression, bool) {
	p := d.Payload()
	if initializer, ok := p.Initializer.Value(); ok {
		return initializer, true
	}
	if e, ok := lastStatement(p.Body); ok {
		return e, true
	}
	if getter := d.Node().Getter(); getter != nil {
		if gd := tc.Draft(getter); gd != nil {
			return lastStatement(gd.Payload().Body)
		}
		return lastStatement(getter.Payload().Body)
	}
	return decl.Expression{}, false
}

func lastStatement(body decl.Lazy[decl.Body]) (decl.Expression, bool) {
	b, ok := body.Value()
	if !ok || len(b.Statements) == 0 {
		return decl.Expression{}, false
	}
	return b.Statements[len(b.Statements)-1], true
}

type bodies struct{}

func (bodies) Phase() phase.Phase { return phase.Body }

func (bodies) Transform(_ context.Context, _ *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	p.Body = p.Body.Map(func(b decl.Body) decl.Body {
		for i := range b.Statements {
			b.Statements[i].Resolved = true
		}
		b.Resolved = true
		return b
	})
	p.Initializer = p.Initializer.Map(resolved)
	for i := range p.ValueParameters {
		p.ValueParameters[i].Default = p.ValueParameters[i].Default.Map(resolved)
	}
	return nil
}

func resolved(e decl.Expression) decl.Expression {
	e.Resolved = true
	return e
}
