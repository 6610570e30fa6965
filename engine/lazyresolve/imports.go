package lazyresolve

import (
	"context"

	"github.com/onflow/lazyres/model/decl"
)

type importsStrategy struct{}

func (importsStrategy) withoutLock(context.Context, *PhaseResolver, *Context, *decl.Node) error {
	return nil
}

func (importsStrategy) underLock(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	switch d.Node().Kind() {
	case decl.KindFile, decl.KindScript:
		return r.resolveWithKeeper(ctx, tc, d, importsKeeper, nil, false)
	case decl.KindFileAnnotations, decl.KindClass, decl.KindTypeAlias, decl.KindFunction, decl.KindProperty, decl.KindField:
		return nil
	case decl.KindAccessor, decl.KindBackingField:
		return ownedNode(d.Node(), r.phase)
	default:
		return unknownKind(d.Node(), r.phase)
	}
}

func (importsStrategy) checkResolved(*decl.Node) error {
	return nil
}
