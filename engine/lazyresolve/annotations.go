package lazyresolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
)

type annotationArgumentsStrategy struct{}

// withoutLock resolves the annotation classes used by the node and its parts
// to their supertypes. They may be declared in a dependency session, whose
// nodes must never be locked together with ours.
func (annotationArgumentsStrategy) withoutLock(ctx context.Context, _ *PhaseResolver, tc *Context, node *decl.Node) error {
	if node.Kind() == decl.KindFile {
		return nil
	}
	for _, n := range append([]*decl.Node{node}, node.AllParts()...) {
		for _, a := range n.Payload().Annotations {
			_, err := tc.Symbols.Resolve(ctx, a.Name, phase.SuperTypes)
			if errors.Is(err, ErrSymbolNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("could not resolve annotation class %s of %s: %w", a.Name, n, err)
			}
		}
	}
	return nil
}

func (annotationArgumentsStrategy) underLock(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error {
	switch d.Node().Kind() {
	case decl.KindFile:
		// file level annotations are resolved by the FileAnnotations node
		return nil
	case decl.KindScript, decl.KindProperty:
		d.RelateParts()
		return r.resolveWithKeeper(ctx, tc, d, annotationsKeeper(tc.Bodies), r.computeArguments, true)
	case decl.KindFileAnnotations, decl.KindClass, decl.KindTypeAlias, decl.KindFunction, decl.KindField:
		return r.resolveWithKeeper(ctx, tc, d, annotationsKeeper(tc.Bodies), r.computeArguments, false)
	case decl.KindAccessor, decl.KindBackingField:
		return ownedNode(d.Node(), r.phase)
	default:
		return unknownKind(d.Node(), r.phase)
	}
}

func (annotationArgumentsStrategy) checkResolved(node *decl.Node) error {
	if node.Kind() == decl.KindFile {
		return nil
	}
	for _, n := range append([]*decl.Node{node}, node.AllParts()...) {
		for _, a := range n.Payload().Annotations {
			if !a.Type.IsFinal() {
				return fmt.Errorf("type of %s on %s is not resolved", a, n)
			}
			if !argumentsResolved(a.Arguments) {
				return fmt.Errorf("arguments of %s on %s are not resolved: %s", a, n, a.Arguments)
			}
		}
	}
	return nil
}
