package lazyresolve

import (
	"context"
	"fmt"

	"github.com/onflow/lazyres/model/decl"
)

type implicitTypesStrategy struct{}

func (implicitTypesStrategy) withoutLock(context.Context, *PhaseResolver, *Context, *decl.Node) error {
	return nil
}

func (s implicitTypesStrategy) underLock(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	switch d.Node().Kind() {
	case decl.KindFunction, decl.KindField:
		return s.resolveCallable(ctx, r, tc, d)
	case decl.KindProperty:
		return s.resolveProperty(ctx, r, tc, d)
	case decl.KindScript:
		for _, statement := range d.Node().Statements() {
			sd := d.Related(statement)
			var err error
			switch statement.Kind() {
			case decl.KindFunction:
				err = s.resolveCallable(ctx, r, tc, sd)
			case decl.KindProperty:
				err = s.resolveProperty(ctx, r, tc, sd)
			default:
				err = unknownKind(statement, r.phase)
			}
			if err != nil {
				return err
			}
		}
		return nil
	case decl.KindFile, decl.KindFileAnnotations, decl.KindClass, decl.KindTypeAlias:
		return nil
	case decl.KindAccessor, decl.KindBackingField:
		return ownedNode(d.Node(), r.phase)
	default:
		return unknownKind(d.Node(), r.phase)
	}
}

// resolveCallable infers the type of a function or field. A callable without
// implicit types only has its phase updated.
func (implicitTypesStrategy) resolveCallable(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	if !hasImplicitTypes(d.Payload()) {
		return nil
	}
	return r.resolveWithKeeper(ctx, tc, d, bodyKeeper, r.computeBodies, false)
}

// resolveProperty infers the type of a property and hands it to the implicit
// types of its accessors and backing field, all in one step.
func (implicitTypesStrategy) resolveProperty(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	parts := d.RelateParts()
	implicit := hasImplicitTypes(d.Payload())
	for _, part := range parts {
		implicit = implicit || hasImplicitTypes(part.Payload())
	}
	if !implicit {
		return nil
	}
	if hasImplicitTypes(d.Payload()) {
		if err := r.resolveWithKeeper(ctx, tc, d, bodyKeeper, r.computeBodies, false); err != nil {
			return err
		}
	}

	t := d.Payload().ReturnType
	if t.IsImplicit() {
		return NewPhaseConsistencyErrorf(d.Node(), r.phase, "transformer left the property type implicit")
	}
	for _, part := range parts {
		p := part.Payload()
		if p.ReturnType.IsImplicit() {
			p.ReturnType = t
		}
		for i := range p.ValueParameters {
			if p.ValueParameters[i].Type.IsImplicit() {
				p.ValueParameters[i].Type = t
			}
		}
	}
	return nil
}

func hasImplicitTypes(p *decl.Payload) bool {
	if p.ReturnType.IsImplicit() {
		return true
	}
	for _, vp := range p.ValueParameters {
		if vp.Type.IsImplicit() {
			return true
		}
	}
	return false
}

func (implicitTypesStrategy) checkResolved(node *decl.Node) error {
	for _, n := range append([]*decl.Node{node}, node.AllParts()...) {
		if n.Kind().IsCallable() && hasImplicitTypes(n.Payload()) {
			return fmt.Errorf("%s kept an implicit type", n)
		}
	}
	return nil
}
