package lazyresolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module"
	"github.com/onflow/lazyres/utils/logging"
)

// strategy is the per-kind policy of one phase.
type strategy interface {
	// withoutLock resolves the foreign dependencies of node before its lock is taken.
	withoutLock(ctx context.Context, r *PhaseResolver, tc *Context, node *decl.Node) error
	// underLock computes the phase into d. It is called with the lock of d's node held.
	underLock(ctx context.Context, r *PhaseResolver, tc *Context, d *decl.Draft) error
	// checkResolved verifies the post-conditions of the phase on a published node.
	checkResolved(node *decl.Node) error
}

// PhaseResolver advances nodes of one arena to a single phase. Every
// resolution of a node goes through the same steps: stale check, lock-free
// fast path, dependency resolution outside of the lock, then under the lock a
// re-check, the transformer run on a draft and the publication of the draft.
type PhaseResolver struct {
	log         zerolog.Logger
	metrics     module.ResolutionMetrics
	engine      *Engine
	phase       phase.Phase
	transformer Transformer
	strategy    strategy
}

func newPhaseResolver(engine *Engine, p phase.Phase, transformer Transformer, s strategy) *PhaseResolver {
	return &PhaseResolver{
		log:         engine.log.With().Str("phase", p.String()).Logger(),
		metrics:     engine.metrics,
		engine:      engine,
		phase:       p,
		transformer: transformer,
		strategy:    s,
	}
}

func (r *PhaseResolver) Phase() phase.Phase { return r.phase }

// Resolve advances the target to the resolver's phase. The containers on the
// target path are resolved first, from the outermost one, for their own state
// only. With ScopeWithMembers the nested declarations follow in declared order.
// The caller must have resolved the target to the previous phase.
func (r *PhaseResolver) Resolve(ctx context.Context, target decl.Target) error {
	for _, container := range target.Path() {
		if err := r.resolveNode(ctx, container); err != nil {
			return err
		}
	}
	if err := r.resolveNode(ctx, target.Node()); err != nil {
		return err
	}
	if target.Scope() == decl.ScopeWithMembers {
		return r.resolveMembers(ctx, target.Node())
	}
	return nil
}

func (r *PhaseResolver) resolveMembers(ctx context.Context, n *decl.Node) error {
	for _, child := range n.Children() {
		if err := ctx.Err(); err != nil {
			return r.fail(child, err)
		}
		if err := r.resolveNode(ctx, child); err != nil {
			return err
		}
		if err := r.resolveMembers(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (r *PhaseResolver) resolveNode(ctx context.Context, node *decl.Node) error {
	// accessors, backing fields and script statements are published by their owner
	node = node.RootOwner()

	if !node.Arena().Valid() {
		return r.fail(node, NewStaleSessionError(node.Arena().Module(), node))
	}
	if node.IsResolved(r.phase) {
		r.metrics.PhaseAlreadyResolved(r.phase.String())
		return nil
	}

	tc, err := r.newContext(node)
	if err != nil {
		return r.fail(node, err)
	}
	err = r.strategy.withoutLock(ctx, r, tc, node)
	if err != nil {
		return r.fail(node, err)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(node, err)
	}

	err = r.engine.locks.WithLock(ctx, node.ID(), func() error {
		if node.IsResolved(r.phase) {
			// another task published the phase while we were waiting
			r.metrics.PhaseAlreadyResolved(r.phase.String())
			return nil
		}
		if previous := r.phase.Previous(); !node.IsResolved(previous) {
			return NewPhaseConsistencyErrorf(node, r.phase, "node is at %s, prerequisite %s was skipped", node.Phase(), previous)
		}

		start := time.Now()
		d := node.NewDraft()
		tc.root = d
		if err := r.strategy.underLock(ctx, r, tc, d); err != nil {
			return err
		}
		if err := d.Publish(r.phase); err != nil {
			return NewPhaseConsistencyError(node, r.phase, err)
		}
		if !node.IsResolved(r.phase) {
			return NewPhaseConsistencyErrorf(node, r.phase, "phase did not advance, node is at %s", node.Phase())
		}
		if err := r.strategy.checkResolved(node); err != nil {
			return NewPhaseConsistencyError(node, r.phase, err)
		}

		r.metrics.PhaseResolved(r.phase.String(), node.Kind().String(), time.Since(start))
		r.log.Debug().Object("node", logging.Node(node)).Msg("phase resolved")
		return nil
	})
	if err != nil {
		return r.fail(node, err)
	}
	return nil
}

func (r *PhaseResolver) newContext(node *decl.Node) (*Context, error) {
	target, err := node.Arena().Target(node.ID())
	if err != nil {
		return nil, fmt.Errorf("could not build target: %w", err)
	}
	return &Context{
		Target:      target,
		Phase:       r.phase,
		Module:      node.Arena().Module(),
		Symbols:     r.engine.symbols,
		ReturnTypes: r.engine.returnTypes,
		Bodies:      r.engine.bodies,
		Log:         r.log,
	}, nil
}

// resolveWithKeeper runs the transformer on d, and on every related draft if
// withParts is set, between a snapshot and its restoration on failure. A
// transformer returning ErrRecompute gets exactly one more attempt with
// precisely computed inputs.
func (r *PhaseResolver) resolveWithKeeper(
	ctx context.Context,
	tc *Context,
	d *decl.Draft,
	keeper keeperFunc,
	prepare func(tc *Context, d *decl.Draft) error,
	withParts bool,
) error {
	attempt := func(recompute bool) error {
		tc.Recompute = recompute
		snapshot := keeper(recompute).Prepare(d)
		err := r.transform(ctx, tc, d, prepare, withParts)
		if err != nil {
			snapshot.Restore()
			r.metrics.StateRestored(r.phase.String())
		}
		return err
	}

	err := attempt(false)
	if errors.Is(err, ErrRecompute) {
		r.log.Debug().Object("node", logging.Node(d.Node())).Msg("transformer requested recompute")
		err = attempt(true)
		if errors.Is(err, ErrRecompute) {
			return NewPhaseConsistencyErrorf(d.Node(), r.phase, "transformer requested a recompute twice")
		}
	}
	if err == nil || isContextError(err) || IsPhaseConsistencyError(err) {
		return err
	}
	return NewTransformerError(d.Node(), r.phase, tc.Target, err)
}

func (r *PhaseResolver) transform(ctx context.Context, tc *Context, d *decl.Draft, prepare func(*Context, *decl.Draft) error, withParts bool) error {
	if prepare != nil {
		if err := prepare(tc, d); err != nil {
			return err
		}
	}
	if err := r.transformer.Transform(ctx, tc, d); err != nil {
		return err
	}
	if withParts {
		for _, related := range d.AllRelated() {
			if err := r.transformer.Transform(ctx, tc, related); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeBodies replaces the deferred body, initializer and parameter
// defaults of d and its related drafts by their computed values.
func (r *PhaseResolver) computeBodies(tc *Context, d *decl.Draft) error {
	for _, draft := range append([]*decl.Draft{d}, d.AllRelated()...) {
		node, p := draft.Node(), draft.Payload()
		if p.Body.IsDeferred() {
			body, err := tc.Bodies.CalculateBody(node, p.Body.Source())
			if err != nil {
				return err
			}
			p.Body = p.Body.Compute(body)
		}
		if p.Initializer.IsDeferred() {
			initializer, err := tc.Bodies.CalculateExpression(node, p.Initializer.Source())
			if err != nil {
				return err
			}
			p.Initializer = p.Initializer.Compute(initializer)
		}
		for i := range p.ValueParameters {
			vp := &p.ValueParameters[i]
			if !vp.Default.IsDeferred() {
				continue
			}
			def, err := tc.Bodies.CalculateExpression(node, vp.Default.Source())
			if err != nil {
				return err
			}
			vp.Default = vp.Default.Compute(def)
		}
	}
	return nil
}

// computeArguments computes the precise argument lists on a recompute. The
// first attempt works on the placeholders installed by the keeper.
func (r *PhaseResolver) computeArguments(tc *Context, d *decl.Draft) error {
	if !tc.Recompute {
		return nil
	}
	for _, draft := range append([]*decl.Draft{d}, d.AllRelated()...) {
		p := draft.Payload()
		for i := range p.Annotations {
			a := &p.Annotations[i]
			if !a.Arguments.IsDeferred() && !hasPlaceholders(a.Arguments) {
				continue
			}
			args, err := tc.Bodies.CalculateArguments(draft.Node(), *a, a.Arguments.Source())
			if err != nil {
				return err
			}
			a.Arguments = a.Arguments.Compute(args)
		}
	}
	return nil
}

// fail counts and logs a failure once, where it happened. Failures of nested
// resolutions are returned as they are.
func (r *PhaseResolver) fail(node *decl.Node, err error) error {
	if isReported(err) {
		return err
	}
	if isContextError(err) && !IsCancellationError(err) {
		err = NewCancellationError(r.phase, node, err)
	}
	reason := failureReason(err)
	r.metrics.ResolutionFailed(r.phase.String(), reason)

	var ev *zerolog.Event
	switch {
	case IsPhaseConsistencyError(err):
		ev = r.log.Error()
	case IsCancellationError(err), IsStaleSessionError(err):
		ev = r.log.Debug()
	default:
		ev = r.log.Warn()
	}
	ev.Err(err).Object("node", logging.Node(node)).Msg("could not resolve node")
	return reportedError{err}
}

func unknownKind(node *decl.Node, p phase.Phase) error {
	return NewPhaseConsistencyErrorf(node, p, "no %s policy for kind %s", p, node.Kind())
}

func ownedNode(node *decl.Node, p phase.Phase) error {
	return NewPhaseConsistencyErrorf(node, p, "owned %s resolved without its owner", node.Kind())
}
