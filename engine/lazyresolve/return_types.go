package lazyresolve

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/module/metrics"
)

// RecursiveTypeReason is the reason of the error type given to a callable
// whose implicit type depends on itself.
const RecursiveTypeReason = "recursive implicit type"

// ReturnTypeCalculator computes the types of callables referenced from
// bodies, resolving them to phase.ImplicitTypes on demand. Computed types
// are memoized; placeholders for recursive types are not.
type ReturnTypeCalculator struct {
	log     zerolog.Logger
	metrics module.CacheMetrics
	symbols SymbolProvider
	memo    *lru.Cache
}

func NewReturnTypeCalculator(log zerolog.Logger, collector module.CacheMetrics, symbols SymbolProvider, size int) (*ReturnTypeCalculator, error) {
	memo, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("could not create return type memo: %w", err)
	}
	return &ReturnTypeCalculator{
		log:     log.With().Str("component", "return_types").Logger(),
		metrics: collector,
		symbols: symbols,
		memo:    memo,
	}, nil
}

// ReturnTypeOf returns the type of the callable or class named name as seen
// from the request of tc. A reference back into a declaration that is being
// resolved yields an error type with RecursiveTypeReason.
// Expected errors:
//   - ErrSymbolNotFound if name is not declared
func (c *ReturnTypeCalculator) ReturnTypeOf(ctx context.Context, tc *Context, name string) (decl.TypeRef, error) {
	node, ok := c.symbols.Lookup(name)
	if !ok {
		c.metrics.CacheNotFound(metrics.ResourceReturnTypes)
		return decl.TypeRef{}, fmt.Errorf("%s: %w", name, ErrSymbolNotFound)
	}
	switch node.Kind() {
	case decl.KindClass, decl.KindTypeAlias:
		return decl.ResolvedType(node.Name(), node.QualifiedName(), node.Arena().Module()), nil
	}
	if !node.Kind().IsCallable() {
		return decl.TypeRef{}, fmt.Errorf("%s is a %s, not a callable", name, node.Kind())
	}

	// declarations published together with the current node are read from their draft
	if d := tc.Draft(node); d != nil {
		t := d.Payload().ReturnType
		if t.IsImplicit() {
			return decl.ErrorType(name, RecursiveTypeReason), nil
		}
		return t, nil
	}

	key := node.Arena().Module() + ":" + node.QualifiedName()
	if v, ok := c.memo.Get(key); ok {
		c.metrics.CacheHit(metrics.ResourceReturnTypes)
		return v.(decl.TypeRef), nil
	}
	c.metrics.CacheMiss(metrics.ResourceReturnTypes)

	err := c.symbols.ResolveNode(ctx, node, phase.ImplicitTypes)
	if locks.IsCycleError(err) {
		c.log.Warn().Err(err).Str("callable", name).Msg("recursive implicit type")
		return decl.ErrorType(name, RecursiveTypeReason), nil
	}
	if err != nil {
		return decl.TypeRef{}, fmt.Errorf("could not resolve type of %s: %w", name, err)
	}
	t := node.Payload().ReturnType
	c.memo.Add(key, t)
	return t, nil
}

// Purge drops every memoized type.
func (c *ReturnTypeCalculator) Purge() {
	c.memo.Purge()
}
