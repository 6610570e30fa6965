package lazyresolve_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/engine/lazyresolve/mock"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module/irrecoverable"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/module/metrics"
	"github.com/onflow/lazyres/utils/unittest"
)

func TestNewEngineChecksTransformerPhases(t *testing.T) {
	arena := sampleTree(t)
	log := unittest.Logger()
	collector := metrics.NewNoopCollector()

	transformers := func(misplaced lazyresolve.Transformer) lazyresolve.Transformers {
		ts := lazyresolve.Transformers{}
		for _, p := range phase.All() {
			m := mock.NewTransformer(t)
			m.On("Phase").Return(p).Maybe()
			switch p {
			case phase.Imports:
				ts.Imports = m
			case phase.SuperTypes:
				ts.SuperTypes = m
			case phase.AnnotationArguments:
				ts.AnnotationArguments = m
			case phase.ImplicitTypes:
				ts.ImplicitTypes = m
			case phase.Body:
				ts.Body = misplaced
			}
		}
		return ts
	}

	t.Run("matching phases", func(t *testing.T) {
		body := mock.NewTransformer(t)
		body.On("Phase").Return(phase.Body)
		_, err := lazyresolve.NewEngine(log, collector, arena, locks.NewProvider(log, collector), nil, lazyresolve.NewTextBodies(), nil, transformers(body))
		require.NoError(t, err)
	})

	t.Run("transformer in the wrong slot", func(t *testing.T) {
		wrong := mock.NewTransformer(t)
		wrong.On("Phase").Return(phase.ImplicitTypes)
		_, err := lazyresolve.NewEngine(log, collector, arena, locks.NewProvider(log, collector), nil, lazyresolve.NewTextBodies(), nil, transformers(wrong))
		require.Error(t, err)
		assert.True(t, lazyresolve.IsPhaseConsistencyError(err))
		assert.True(t, irrecoverable.IsException(err))
	})

	t.Run("missing transformer", func(t *testing.T) {
		_, err := lazyresolve.NewEngine(log, collector, arena, locks.NewProvider(log, collector), nil, lazyresolve.NewTextBodies(), nil, transformers(nil))
		require.Error(t, err)
		assert.True(t, lazyresolve.IsPhaseConsistencyError(err))
	})
}

func TestResolveFileToBody(t *testing.T) {
	var mu sync.Mutex
	var bodyOrder []string
	var violations []string

	checkParent := func(tc *lazyresolve.Context, d *decl.Draft) {
		if d.Node().IsOwned() {
			// published together with the owner
			return
		}
		if parent := d.Node().Parent(); parent != nil && !parent.IsResolved(tc.Phase) {
			mu.Lock()
			violations = append(violations, d.Node().String()+" before "+parent.String())
			mu.Unlock()
		}
	}
	f := newFixture(t, sampleTree(t), map[phase.Phase]transformFunc{
		phase.SuperTypes: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			checkParent(tc, d)
			return resolveSuperTypes(ctx, tc, d)
		},
		phase.Body: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			checkParent(tc, d)
			mu.Lock()
			bodyOrder = append(bodyOrder, d.Node().QualifiedName())
			mu.Unlock()
			return resolveBodies(ctx, tc, d)
		},
	})

	require.NoError(t, f.engine.ResolveTo(context.Background(), f.fileTarget(t), phase.Body))

	// children in declared order, parts right after their owner
	assert.Equal(t, []string{"A.f", "A.x", "A.x.<get>", "A.x.<set>", "A.x.<field>", "A.y", "g", "z", "z.<get>"}, bodyOrder)
	assert.Empty(t, violations)

	f.arena.Walk(func(n *decl.Node) bool {
		if n.Kind() == decl.KindScript {
			assert.Equal(t, phase.Raw, n.Phase(), "scripts are not part of the file")
			return true
		}
		assert.Equal(t, phase.Body, n.Phase(), n.String())
		for _, part := range n.AllParts() {
			assert.Equal(t, phase.Body, part.Phase(), part.String())
		}
		return true
	})

	file := f.arena.Roots()[0]
	assert.True(t, file.Payload().Imports[0].Resolved)
	a := f.node(t, "A")
	assert.Equal(t, decl.TypeResolved, a.Payload().SuperTypes[0].Kind)
	args, ok := a.Payload().Annotations[0].Arguments.Value()
	require.True(t, ok)
	assert.Equal(t, []decl.Argument{{Text: `"old"`, Resolved: true, Type: decl.ResolvedType("String", "", "")}}, args)

	fn := f.node(t, "A.f")
	body, ok := fn.Payload().Body.Value()
	require.True(t, ok)
	assert.True(t, body.Resolved)
	assert.Equal(t, []string{"g"}, body.Statements[0].References)

	x := f.node(t, "A.x")
	assert.Equal(t, "Int", x.Payload().ReturnType.Name)
	assert.Equal(t, "Int", x.Getter().Payload().ReturnType.Name)
	assert.Equal(t, "Int", x.Setter().Payload().ValueParameters[0].Type.Name)
	assert.Equal(t, "Int", x.BackingField().Payload().ReturnType.Name)
	initializer, ok := x.Payload().Initializer.Value()
	require.True(t, ok)
	assert.Equal(t, "1", initializer.Text)
}

// Two requests for the same fresh function run the implicit type transformer once.
func TestConcurrentResolveRunsTransformerOnce(t *testing.T) {
	f := newFixture(t, sampleTree(t), map[phase.Phase]transformFunc{
		phase.ImplicitTypes: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			time.Sleep(20 * time.Millisecond)
			return inferInt(ctx, tc, d)
		},
	})
	target := f.target(t, "A.f")

	const requests = 10
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	types := make(chan decl.TypeRef, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.engine.ResolveTo(context.Background(), target, phase.ImplicitTypes)
			errs <- err
			types <- target.Node().Payload().ReturnType
		}()
	}
	unittest.RequireReturnsBefore(t, wg.Wait, 5*time.Second, "resolution did not finish")
	close(errs)
	close(types)

	for err := range errs {
		require.NoError(t, err)
	}
	for typ := range types {
		assert.Equal(t, decl.ResolvedType("Int", "", ""), typ)
	}
	assert.Equal(t, 1, f.calls(phase.ImplicitTypes))
	assert.Equal(t, phase.ImplicitTypes, target.Node().Phase())
}

// A property with an implicit type and a custom getter gets both types in one call.
func TestImplicitPropertyWithGetter(t *testing.T) {
	f := newFixture(t, sampleTree(t), nil)
	z := f.node(t, "z")
	require.True(t, z.Getter().Payload().ReturnType.IsImplicit())

	require.NoError(t, f.engine.ResolveTo(context.Background(), f.target(t, "z"), phase.ImplicitTypes))

	assert.Equal(t, 1, f.calls(phase.ImplicitTypes))
	assert.Equal(t, "Int", z.Payload().ReturnType.Name)
	assert.Equal(t, "Int", z.Getter().Payload().ReturnType.Name)
	assert.Equal(t, phase.ImplicitTypes, z.Getter().Phase())
	// the getter body was computed along the way
	assert.True(t, z.Getter().Payload().Body.IsComputed())
}

// Cancelling while the third annotation is resolved commits nothing; a retry
// resolves every annotation.
func TestCancelDuringAnnotationArguments(t *testing.T) {
	b := decl.NewBuilder("app")
	file := b.File("Main.kt")
	b.Class(file, "C",
		decl.WithAnnotation("First", "1"),
		decl.WithAnnotation("Second", "2"),
		decl.WithAnnotation("Third", "3"),
	)
	arena, err := b.Build()
	require.NoError(t, err)

	var cancel context.CancelFunc
	cancelAt := 2
	f := newFixture(t, arena, map[phase.Phase]transformFunc{
		phase.AnnotationArguments: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			p := d.Payload()
			for i := range p.Annotations {
				if i == cancelAt {
					cancel()
					return ctx.Err()
				}
				resolveAnnotation(tc, &p.Annotations[i])
			}
			return nil
		},
	})
	c := f.node(t, "C")
	require.NoError(t, f.engine.ResolveTo(context.Background(), f.target(t, "C"), phase.SuperTypes))
	before := c.Payload()

	ctx, cancelFunc := context.WithCancel(context.Background())
	cancel = cancelFunc
	err = f.engine.ResolveTo(ctx, f.target(t, "C"), phase.AnnotationArguments)
	require.Error(t, err)
	assert.True(t, lazyresolve.IsCancellationError(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, phase.SuperTypes, c.Phase())
	assert.Same(t, before, c.Payload(), "nothing is published on cancellation")
	for _, a := range c.Payload().Annotations {
		assert.True(t, a.Arguments.IsDeferred())
		assert.Equal(t, decl.TypeUnresolved, a.Type.Kind)
	}

	cancelAt = -1
	require.NoError(t, f.engine.ResolveTo(context.Background(), f.target(t, "C"), phase.AnnotationArguments))
	assert.Equal(t, phase.AnnotationArguments, c.Phase())
	for _, a := range c.Payload().Annotations {
		assert.Equal(t, decl.TypeResolved, a.Type.Kind)
		args, ok := a.Arguments.Value()
		require.True(t, ok)
		require.Len(t, args, 1)
		assert.True(t, args[0].Resolved)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t, sampleTree(t), nil)
	target := f.target(t, "A.x")
	require.NoError(t, f.engine.ResolveTo(context.Background(), target, phase.Body))
	payload := target.Node().Payload()
	calls := make(map[phase.Phase]int)
	for _, p := range phase.All() {
		calls[p] = f.calls(p)
	}

	for _, p := range phase.All() {
		require.NoError(t, f.engine.ResolveTo(context.Background(), target, p))
	}
	assert.Same(t, payload, target.Node().Payload())
	for _, p := range phase.All() {
		assert.Equal(t, calls[p], f.calls(p), p.String())
	}
	assert.True(t, f.engine.IsResolved(target.Node().Getter(), phase.Body))
}

func TestRecomputeWithPreciseArguments(t *testing.T) {
	b := decl.NewBuilder("app")
	file := b.File("Main.kt")
	b.Function(file, "f", decl.WithReturnType("Unit"), decl.WithAnnotation("Ann", "listOf(1, 2)", `"x"`))
	arena, err := b.Build()
	require.NoError(t, err)

	var seen [][]string
	f := newFixture(t, arena, map[phase.Phase]transformFunc{
		phase.AnnotationArguments: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			a := &d.Payload().Annotations[0]
			args, ok := a.Arguments.Value()
			require.True(t, ok)
			texts := make([]string, len(args))
			for i, arg := range args {
				texts[i] = arg.Text
			}
			seen = append(seen, texts)
			if args[0].Placeholder && !tc.Recompute {
				return lazyresolve.ErrRecompute
			}
			resolveAnnotation(tc, a)
			return nil
		},
	})

	require.NoError(t, f.engine.ResolveTo(context.Background(), f.target(t, "f"), phase.AnnotationArguments))
	assert.Equal(t, [][]string{
		{"listOf(1", "2)", `"x"`},
		{"listOf(1, 2)", `"x"`},
	}, seen)
	args, _ := f.node(t, "f").Payload().Annotations[0].Arguments.Value()
	require.Len(t, args, 2)
	assert.Equal(t, "listOf(1, 2)", args[0].Text)
}

func TestSecondRecomputeIsConsistencyError(t *testing.T) {
	f := newFixture(t, sampleTree(t), map[phase.Phase]transformFunc{
		phase.AnnotationArguments: func(context.Context, *lazyresolve.Context, *decl.Draft) error {
			return lazyresolve.ErrRecompute
		},
	})
	a := f.node(t, "A")

	err := f.engine.ResolveTo(context.Background(), f.target(t, "A"), phase.AnnotationArguments)
	require.Error(t, err)
	assert.True(t, lazyresolve.IsPhaseConsistencyError(err))
	assert.True(t, irrecoverable.IsException(err))
	assert.Equal(t, phase.SuperTypes, a.Phase())
	// one attempt and one recompute
	assert.Equal(t, 2, f.calls(phase.AnnotationArguments))
}

func TestTransformerErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	f := newFixture(t, sampleTree(t), map[phase.Phase]transformFunc{
		phase.SuperTypes: func(_ context.Context, _ *lazyresolve.Context, d *decl.Draft) error {
			// partial writes must not survive the failure
			d.Payload().SuperTypes[0] = decl.ResolvedType("Base", "Base", "app")
			return boom
		},
	})
	a := f.node(t, "A")

	err := f.engine.ResolveTo(context.Background(), f.target(t, "A.f"), phase.Body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var terr lazyresolve.TransformerError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, a.ID(), terr.NodeID)
	assert.Equal(t, "A", terr.Node)
	assert.Equal(t, decl.KindClass, terr.Kind)
	assert.Equal(t, phase.SuperTypes, terr.Phase)
	assert.Equal(t, "Main.kt/A", terr.Target)

	assert.Equal(t, phase.Imports, a.Phase())
	assert.Equal(t, decl.TypeUnresolved, a.Payload().SuperTypes[0].Kind)
	// imports were resolved for the whole path before supertypes failed
	assert.Equal(t, phase.Imports, f.node(t, "A.f").Phase())
}

func TestStaleAndForeignTargets(t *testing.T) {
	f := newFixture(t, sampleTree(t), nil)
	other := newFixture(t, sampleTree(t), nil)

	err := f.engine.ResolveTo(context.Background(), other.target(t, "A"), phase.Imports)
	require.Error(t, err)
	assert.False(t, lazyresolve.IsStaleSessionError(err))

	err = f.engine.ResolveTo(context.Background(), decl.Target{}, phase.Imports)
	require.Error(t, err)

	target := f.target(t, "A")
	require.True(t, f.arena.Invalidate())
	err = f.engine.ResolveTo(context.Background(), target, phase.Imports)
	require.Error(t, err)
	assert.True(t, lazyresolve.IsStaleSessionError(err))
	assert.Equal(t, phase.Raw, target.Node().Phase())
}

func TestSkippedPrerequisite(t *testing.T) {
	f := newFixture(t, sampleTree(t), nil)
	err := f.engine.Resolver(phase.Body).Resolve(context.Background(), f.target(t, "A.f"))
	require.Error(t, err)
	assert.True(t, lazyresolve.IsPhaseConsistencyError(err))
	assert.Equal(t, phase.Raw, f.node(t, "A.f").Phase())
}

func TestOwnedNodesResolveWithTheirOwner(t *testing.T) {
	f := newFixture(t, sampleTree(t), nil)
	x := f.node(t, "A.x")
	target, err := f.arena.Target(x.Getter().ID())
	require.NoError(t, err)

	require.NoError(t, f.engine.ResolveTo(context.Background(), target, phase.ImplicitTypes))
	assert.Equal(t, phase.ImplicitTypes, x.Phase())
	assert.True(t, f.engine.IsResolved(x.Getter(), phase.ImplicitTypes))
	assert.Equal(t, 1, f.calls(phase.ImplicitTypes))
}

func TestScriptStatementsResolveWithTheScript(t *testing.T) {
	f := newFixture(t, sampleTree(t), nil)
	script := f.arena.Roots()[1]
	target, err := f.arena.TargetWithMembers(script.ID())
	require.NoError(t, err)

	require.NoError(t, f.engine.ResolveTo(context.Background(), target, phase.Body))
	for _, statement := range script.Statements() {
		assert.Equal(t, phase.Body, statement.Phase(), statement.String())
		assert.False(t, statement.Payload().ReturnType.IsImplicit())
	}
	task := f.node(t, "task")
	body, ok := task.Payload().Body.Value()
	require.True(t, ok)
	assert.True(t, body.Resolved)
	// version and task are published with the script, one transformer call each
	assert.Equal(t, 2, f.calls(phase.ImplicitTypes))
}

// Functions whose implicit types depend on each other get an error type
// instead of deadlocking.
func TestRecursiveImplicitTypes(t *testing.T) {
	b := decl.NewBuilder("app")
	file := b.File("Main.kt")
	b.Function(file, "p", decl.WithBody("q()"))
	b.Function(file, "q", decl.WithBody("p()"))
	b.Function(file, "r", decl.WithBody("q()"))
	arena, err := b.Build()
	require.NoError(t, err)

	f := newFixture(t, arena, map[phase.Phase]transformFunc{
		phase.ImplicitTypes: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			body, ok := d.Payload().Body.Value()
			if !ok || len(body.Statements) == 0 || len(body.Statements[0].References) == 0 {
				return inferInt(ctx, tc, d)
			}
			typ, err := tc.ReturnTypes.ReturnTypeOf(ctx, tc, body.Statements[0].References[0])
			if err != nil {
				return err
			}
			d.Payload().ReturnType = typ
			return nil
		},
	})

	unittest.RequireReturnsBefore(t, func() {
		require.NoError(t, f.engine.ResolveTo(context.Background(), f.target(t, "p"), phase.ImplicitTypes))
	}, 5*time.Second, "recursive resolution deadlocked")

	q := f.node(t, "q").Payload().ReturnType
	assert.Equal(t, decl.TypeError, q.Kind)
	assert.Equal(t, lazyresolve.RecursiveTypeReason, q.Reason)
	assert.Equal(t, q, f.node(t, "p").Payload().ReturnType)

	// q is memoized from its published type
	require.NoError(t, f.engine.ResolveTo(context.Background(), f.target(t, "r"), phase.ImplicitTypes))
	assert.Equal(t, q, f.node(t, "r").Payload().ReturnType)
}

// A failure while resolving a referenced callable is reported once.
func TestNestedFailureIsReportedOnce(t *testing.T) {
	b := decl.NewBuilder("app")
	file := b.File("Main.kt")
	b.Function(file, "p", decl.WithBody("q()"))
	b.Function(file, "q", decl.WithBody("1"))
	arena, err := b.Build()
	require.NoError(t, err)

	boom := errors.New("boom")
	f := newFixture(t, arena, map[phase.Phase]transformFunc{
		phase.ImplicitTypes: func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
			if d.Node().Name() == "q" {
				return boom
			}
			body, ok := d.Payload().Body.Value()
			if !ok || len(body.Statements) == 0 || len(body.Statements[0].References) == 0 {
				return inferInt(ctx, tc, d)
			}
			typ, err := tc.ReturnTypes.ReturnTypeOf(ctx, tc, body.Statements[0].References[0])
			if err != nil {
				return err
			}
			d.Payload().ReturnType = typ
			return nil
		},
	})

	err = f.engine.ResolveTo(context.Background(), f.target(t, "p"), phase.ImplicitTypes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, lazyresolve.IsTransformerError(err))
	assert.Equal(t, int32(1), f.metrics.failures.Load())
	assert.Equal(t, phase.AnnotationArguments, f.node(t, "p").Phase())
	assert.Equal(t, phase.AnnotationArguments, f.node(t, "q").Phase())

	// a failure of the requested node itself is counted too
	err = f.engine.ResolveTo(context.Background(), f.target(t, "q"), phase.ImplicitTypes)
	require.Error(t, err)
	assert.Equal(t, int32(2), f.metrics.failures.Load())
}

// No node ever moves to a lower phase, whatever the order of requests.
func TestPhasesAreMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, sampleTree(t), nil)
		var ids []decl.NodeID
		f.arena.Walk(func(n *decl.Node) bool {
			ids = append(ids, n.ID())
			return true
		})
		observed := make([]phase.Phase, f.arena.Len())

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(rt, "node")
			p := rapid.SampledFrom(phase.All()).Draw(rt, "phase")
			members := rapid.Bool().Draw(rt, "members")

			target, err := f.arena.Target(id)
			if members {
				target, err = f.arena.TargetWithMembers(id)
			}
			require.NoError(rt, err)
			require.NoError(rt, f.engine.ResolveTo(context.Background(), target, p))
			require.True(rt, target.Node().IsResolved(p))

			for j := range observed {
				current := f.arena.Node(decl.NodeID(j)).Phase()
				if current < observed[j] {
					rt.Fatalf("node %d regressed from %s to %s", j, observed[j], current)
				}
				observed[j] = current
			}
		}
	})
}

func TestTextBodies(t *testing.T) {
	bodies := lazyresolve.NewTextBodies()
	b := decl.NewBuilder("app")
	file := b.File("Main.kt")
	arena, err := b.Build()
	require.NoError(t, err)
	node := arena.Node(file)

	body, err := bodies.CalculateBody(node, "val a = f(1, \"x;y\")\ng(a); h()")
	require.NoError(t, err)
	texts := make([]string, len(body.Statements))
	for i, s := range body.Statements {
		texts[i] = s.Text
	}
	assert.Equal(t, []string{`val a = f(1, "x;y")`, "g(a)", "h()"}, texts)
	assert.Equal(t, []string{"val", "a", "f"}, body.Statements[0].References)

	_, err = bodies.CalculateBody(node, "f(")
	require.Error(t, err)
	_, err = bodies.CalculateExpression(node, "  ")
	require.Error(t, err)

	args, err := bodies.CalculateArguments(node, decl.Annotation{Name: "A"}, `mapOf("a" to 1, "b" to 2), true`)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, `mapOf("a" to 1, "b" to 2)`, args[0].Text)

	placeholders := bodies.PlaceholderArguments(decl.Annotation{Name: "A"}, "1, 2")
	assert.True(t, cmp.Equal([]decl.Argument{
		{Text: "1", Type: decl.ImplicitType(), Placeholder: true},
		{Text: "2", Type: decl.ImplicitType(), Placeholder: true},
	}, placeholders))

	assert.Equal(t, []string{"listOf", "x"}, lazyresolve.References(`listOf(1, "s", x, true, null)`))
}
