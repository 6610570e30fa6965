package lazyresolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/utils/logging"
)

// Engine resolves the nodes of one arena. It owns one PhaseResolver per
// resolvable phase and always runs them in lattice order.
type Engine struct {
	log         zerolog.Logger
	metrics     module.ResolutionMetrics
	arena       *decl.Arena
	locks       *locks.Provider
	symbols     SymbolProvider
	bodies      BodyCalculator
	returnTypes *ReturnTypeCalculator
	resolvers   []*PhaseResolver
}

// NewEngine creates the engine of an arena. It fails with a
// PhaseConsistencyError if a transformer is missing or reports a phase
// other than the one of its slot.
func NewEngine(
	log zerolog.Logger,
	metrics module.ResolutionMetrics,
	arena *decl.Arena,
	locks *locks.Provider,
	symbols SymbolProvider,
	bodies BodyCalculator,
	returnTypes *ReturnTypeCalculator,
	transformers Transformers,
) (*Engine, error) {
	e := &Engine{
		log:         log.With().Str("component", "lazy_resolve").Str("module", arena.Module()).Logger(),
		metrics:     metrics,
		arena:       arena,
		locks:       locks,
		symbols:     symbols,
		bodies:      bodies,
		returnTypes: returnTypes,
	}

	strategies := map[phase.Phase]strategy{
		phase.Imports:             importsStrategy{},
		phase.SuperTypes:          superTypesStrategy{},
		phase.AnnotationArguments: annotationArgumentsStrategy{},
		phase.ImplicitTypes:       implicitTypesStrategy{},
		phase.Body:                bodyStrategy{},
	}
	for _, p := range phase.All() {
		t, err := transformers.For(p)
		if err != nil {
			return nil, NewPhaseConsistencyError(nil, p, err)
		}
		if t == nil {
			return nil, NewPhaseConsistencyErrorf(nil, p, "no transformer")
		}
		if t.Phase() != p {
			return nil, NewPhaseConsistencyErrorf(nil, p, "transformer of slot %s computes %s", p, t.Phase())
		}
		e.resolvers = append(e.resolvers, newPhaseResolver(e, p, t, strategies[p]))
	}
	return e, nil
}

// Resolver returns the resolver of phase p, which must be resolvable.
func (e *Engine) Resolver(p phase.Phase) *PhaseResolver {
	return e.resolvers[p-phase.First]
}

// ResolveTo advances the target to at least phase p, resolving every phase
// from phase.First to p in order. It is a no-op for phase.Raw.
// Expected errors:
//   - StaleSessionError if the arena was invalidated
//   - CancellationError if ctx is done before the target is resolved
//   - TransformerError if a transformer failed
//   - locks.CycleError if the request would deadlock
//   - PhaseConsistencyError (an irrecoverable exception) on logic bugs
func (e *Engine) ResolveTo(ctx context.Context, target decl.Target, p phase.Phase) error {
	if target.IsZero() {
		return fmt.Errorf("cannot resolve an empty target")
	}
	if !p.IsValid() {
		return fmt.Errorf("cannot resolve %s to %s", target, p)
	}
	node := target.Node()
	if node.Arena() != e.arena {
		return fmt.Errorf("target %s belongs to module %s, not %s", target, node.Arena().Module(), e.arena.Module())
	}
	if !e.arena.Valid() {
		return NewStaleSessionError(e.arena.Module(), node)
	}
	if p == phase.Raw {
		return nil
	}
	if target.Scope() == decl.ScopeDeclaration && node.RootOwner().IsResolved(p) {
		e.metrics.PhaseAlreadyResolved(p.String())
		return nil
	}

	ctx, _ = locks.WithTask(ctx, "resolve "+target.String())
	for current := phase.First; current <= p; current++ {
		if err := e.Resolver(current).Resolve(ctx, target); err != nil {
			return err
		}
	}
	e.log.Debug().Object("target", logging.Target(target)).Str("to", p.String()).Msg("target resolved")
	return nil
}

// IsResolved works with every node, including accessors and their properties.
func (e *Engine) IsResolved(node *decl.Node, p phase.Phase) bool {
	return node.RootOwner().IsResolved(p)
}
