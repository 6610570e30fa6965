package lazyresolve

import (
	"context"
	"fmt"

	"github.com/onflow/lazyres/model/decl"
)

type bodyStrategy struct{}

func (bodyStrategy) withoutLock(context.Context, *PhaseResolver, *Context, *decl.Node) error {
	return nil
}

func (bodyStrategy) underLock(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	switch d.Node().Kind() {
	case decl.KindFunction, decl.KindField:
		return r.resolveWithKeeper(ctx, tc, d, bodyKeeper, r.computeBodies, false)
	case decl.KindProperty, decl.KindScript:
		d.RelateParts()
		return r.resolveWithKeeper(ctx, tc, d, bodyKeeper, r.computeBodies, true)
	case decl.KindFile, decl.KindFileAnnotations, decl.KindClass, decl.KindTypeAlias:
		return nil
	case decl.KindAccessor, decl.KindBackingField:
		return ownedNode(d.Node(), r.phase)
	default:
		return unknownKind(d.Node(), r.phase)
	}
}

func (bodyStrategy) checkResolved(node *decl.Node) error {
	switch node.Kind() {
	case decl.KindFunction, decl.KindField, decl.KindProperty, decl.KindScript:
	default:
		return nil
	}
	for _, n := range append([]*decl.Node{node}, node.AllParts()...) {
		p := n.Payload()
		if p.Body.IsDeferred() {
			return fmt.Errorf("body of %s is still deferred", n)
		}
		if p.Initializer.IsDeferred() {
			return fmt.Errorf("initializer of %s is still deferred", n)
		}
		for _, vp := range p.ValueParameters {
			if vp.Default.IsDeferred() {
				return fmt.Errorf("default value of parameter %s of %s is still deferred", vp.Name, n)
			}
		}
	}
	return nil
}
