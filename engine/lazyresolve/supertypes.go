package lazyresolve

import (
	"context"
	"fmt"

	"github.com/onflow/lazyres/model/decl"
)

type superTypesStrategy struct{}

func (superTypesStrategy) withoutLock(context.Context, *PhaseResolver, *Context, *decl.Node) error {
	return nil
}

func (superTypesStrategy) underLock(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	switch d.Node().Kind() {
	case decl.KindClass, decl.KindTypeAlias:
		return r.resolveWithKeeper(ctx, tc, d, superTypesKeeper, nil, false)
	case decl.KindFile, decl.KindScript, decl.KindFileAnnotations, decl.KindFunction, decl.KindProperty, decl.KindField:
		return nil
	case decl.KindAccessor, decl.KindBackingField:
		return ownedNode(d.Node(), r.phase)
	default:
		return unknownKind(d.Node(), r.phase)
	}
}

func (superTypesStrategy) checkResolved(node *decl.Node) error {
	if node.Kind() != decl.KindClass && node.Kind() != decl.KindTypeAlias {
		return nil
	}
	for _, t := range node.Payload().SuperTypes {
		if !t.IsFinal() {
			return fmt.Errorf("supertype %s is not resolved", t)
		}
	}
	return nil
}
