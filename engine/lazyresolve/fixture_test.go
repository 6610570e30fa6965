package lazyresolve_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/module/metrics"
	"github.com/onflow/lazyres/utils/unittest"
)

type transformFunc func(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error

// transformer counts its calls and delegates to fn.
type transformer struct {
	phase phase.Phase
	calls atomic.Int32
	fn    transformFunc
}

func (t *transformer) Phase() phase.Phase { return t.phase }

func (t *transformer) Transform(ctx context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	t.calls.Inc()
	return t.fn(ctx, tc, d)
}

// arenaSymbols looks names up in a single arena and resolves them with its engine.
type arenaSymbols struct {
	arena  *decl.Arena
	engine *lazyresolve.Engine
}

func (s *arenaSymbols) Lookup(name string) (*decl.Node, bool) {
	nodes := s.arena.Lookup(name)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

func (s *arenaSymbols) Resolve(ctx context.Context, name string, p phase.Phase) (*decl.Node, error) {
	n, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, lazyresolve.ErrSymbolNotFound)
	}
	return n, s.ResolveNode(ctx, n, p)
}

func (s *arenaSymbols) ResolveNode(ctx context.Context, n *decl.Node, p phase.Phase) error {
	target, err := s.arena.Target(n.ID())
	if err != nil {
		return err
	}
	return s.engine.ResolveTo(ctx, target, p)
}

func (s *arenaSymbols) Modules() []string {
	return []string{s.arena.Module()}
}

func resolveImports(_ context.Context, _ *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	for i := range p.Imports {
		p.Imports[i].Resolved = true
	}
	return nil
}

func resolveSuperTypes(_ context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	for i, st := range p.SuperTypes {
		p.SuperTypes[i] = decl.ResolvedType(st.Name, st.Name, tc.Module)
	}
	return nil
}

func resolveAnnotations(_ context.Context, tc *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	for i := range p.Annotations {
		resolveAnnotation(tc, &p.Annotations[i])
	}
	return nil
}

func resolveAnnotation(tc *lazyresolve.Context, a *decl.Annotation) {
	a.Type = decl.ResolvedType(a.Name, a.Name, tc.Module)
	a.Arguments = a.Arguments.Map(func(args []decl.Argument) []decl.Argument {
		for j := range args {
			args[j].Resolved = true
			args[j].Placeholder = false
			args[j].Type = decl.ResolvedType("String", "", "")
		}
		return args
	})
}

func inferInt(_ context.Context, _ *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	if p.ReturnType.IsImplicit() {
		p.ReturnType = decl.ResolvedType("Int", "", "")
	}
	for i := range p.ValueParameters {
		if p.ValueParameters[i].Type.IsImplicit() {
			p.ValueParameters[i].Type = decl.ResolvedType("Int", "", "")
		}
	}
	return nil
}

func resolveBodies(_ context.Context, _ *lazyresolve.Context, d *decl.Draft) error {
	p := d.Payload()
	p.Body = p.Body.Map(func(b decl.Body) decl.Body {
		b.Resolved = true
		return b
	})
	return nil
}

// failureCollector counts the reported resolution failures.
type failureCollector struct {
	*metrics.NoopCollector
	failures atomic.Int32
}

func (c *failureCollector) ResolutionFailed(string, string) { c.failures.Inc() }

type fixture struct {
	arena        *decl.Arena
	engine       *lazyresolve.Engine
	symbols      *arenaSymbols
	metrics      *failureCollector
	transformers map[phase.Phase]*transformer
}

// newFixture creates an engine over arena with the default rules. Rules in
// overrides replace the default of their phase.
func newFixture(t testing.TB, arena *decl.Arena, overrides map[phase.Phase]transformFunc) *fixture {
	defaults := map[phase.Phase]transformFunc{
		phase.Imports:             resolveImports,
		phase.SuperTypes:          resolveSuperTypes,
		phase.AnnotationArguments: resolveAnnotations,
		phase.ImplicitTypes:       inferInt,
		phase.Body:                resolveBodies,
	}
	f := &fixture{
		arena:        arena,
		symbols:      &arenaSymbols{arena: arena},
		transformers: make(map[phase.Phase]*transformer),
	}
	for p, fn := range defaults {
		if override, ok := overrides[p]; ok {
			fn = override
		}
		f.transformers[p] = &transformer{phase: p, fn: fn}
	}

	log := unittest.Logger()
	f.metrics = &failureCollector{NoopCollector: metrics.NewNoopCollector()}
	returnTypes, err := lazyresolve.NewReturnTypeCalculator(log, f.metrics, f.symbols, 100)
	require.NoError(t, err)
	engine, err := lazyresolve.NewEngine(
		log,
		f.metrics,
		arena,
		locks.NewProvider(log, f.metrics),
		f.symbols,
		lazyresolve.NewTextBodies(),
		returnTypes,
		lazyresolve.Transformers{
			Imports:             f.transformers[phase.Imports],
			SuperTypes:          f.transformers[phase.SuperTypes],
			AnnotationArguments: f.transformers[phase.AnnotationArguments],
			ImplicitTypes:       f.transformers[phase.ImplicitTypes],
			Body:                f.transformers[phase.Body],
		},
	)
	require.NoError(t, err)
	f.engine = engine
	f.symbols.engine = engine
	return f
}

func (f *fixture) calls(p phase.Phase) int {
	return int(f.transformers[p].calls.Load())
}

func (f *fixture) node(t testing.TB, name string) *decl.Node {
	nodes := f.arena.Lookup(name)
	require.NotEmpty(t, nodes, "no node named %s", name)
	return nodes[0]
}

func (f *fixture) target(t testing.TB, name string) decl.Target {
	target, err := f.arena.Target(f.node(t, name).ID())
	require.NoError(t, err)
	return target
}

func (f *fixture) fileTarget(t testing.TB) decl.Target {
	target, err := f.arena.TargetWithMembers(f.arena.Roots()[0].ID())
	require.NoError(t, err)
	return target
}

// sampleTree is
//
//	Main.kt (import lib.util)
//	  @file:Suppress("unused")
//	  @Deprecated("old") class A : Base
//	    fun f() = g()
//	    var x = 1, with custom accessors and a backing field
//	    val y: Int
//	  fun g(): Int = 1
//	  val z get() = 42
//	build.kts
//	  val version = "1.0"
//	  fun task() = version
func sampleTree(t testing.TB) *decl.Arena {
	b := decl.NewBuilder("app")
	file := b.File("Main.kt", decl.WithImports("lib.util"))
	b.FileAnnotations(file, decl.WithAnnotation("Suppress", `"unused"`))
	a := b.Class(file, "A", decl.WithSuperTypes("Base"), decl.WithAnnotation("Deprecated", `"old"`))
	b.Function(a, "f", decl.WithBody("g()"))
	b.Property(a, "x",
		decl.WithInitializer("1"),
		decl.WithGetter("field"),
		decl.WithSetter("field = value"),
		decl.WithBackingField(),
	)
	b.Field(a, "y", decl.WithReturnType("Int"))
	b.Function(file, "g", decl.WithReturnType("Int"), decl.WithBody("1"))
	b.Property(file, "z", decl.WithGetter("42"))
	script := b.Script("build.kts")
	b.ScriptStatement(script, decl.KindProperty, "version", decl.WithInitializer(`"1.0"`))
	b.ScriptStatement(script, decl.KindFunction, "task", decl.WithBody("version"))

	arena, err := b.Build()
	require.NoError(t, err)
	return arena
}
