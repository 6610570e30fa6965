package decl_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
)

type tree struct {
	arena              *decl.Arena
	file, cls, nested  decl.NodeID
	fn, prop, field    decl.NodeID
	script, statement  decl.NodeID
	fileAnnotations    decl.NodeID
	topLevelFunction   decl.NodeID
	propertyWithGetter decl.NodeID
}

func buildTree(t *testing.T) tree {
	b := decl.NewBuilder("app")
	var tr tree
	tr.file = b.File("Main.kt", decl.WithImports("lib.util"))
	tr.fileAnnotations = b.FileAnnotations(tr.file, decl.WithAnnotation("Suppress", `"unused"`))
	tr.cls = b.Class(tr.file, "A", decl.WithSuperTypes("Base"))
	tr.nested = b.Class(tr.cls, "B")
	tr.fn = b.Function(tr.nested, "f", decl.WithBody("g()"))
	tr.prop = b.Property(tr.cls, "x", decl.WithInitializer("1"), decl.WithGetter("field"), decl.WithSetter("field = value"), decl.WithBackingField())
	tr.field = b.Field(tr.cls, "y", decl.WithReturnType("Int"))
	tr.topLevelFunction = b.Function(tr.file, "g", decl.WithReturnType("Int"))
	tr.propertyWithGetter = b.Property(tr.file, "z", decl.WithGetter("42"))
	tr.script = b.Script("build.kts")
	tr.statement = b.ScriptStatement(tr.script, decl.KindProperty, "version", decl.WithInitializer(`"1.0"`))

	arena, err := b.Build()
	require.NoError(t, err)
	tr.arena = arena
	return tr
}

func TestBuilder(t *testing.T) {
	tr := buildTree(t)
	a := tr.arena

	t.Run("structure", func(t *testing.T) {
		roots := a.Roots()
		require.Len(t, roots, 2)
		assert.Equal(t, decl.KindFile, roots[0].Kind())
		assert.Equal(t, decl.KindScript, roots[1].Kind())

		names := make([]string, 0)
		for _, c := range a.Node(tr.file).Children() {
			names = append(names, c.Name())
		}
		assert.Equal(t, []string{"Main.kt@file", "A", "g", "z"}, names)

		assert.Equal(t, "A.B.f", a.Node(tr.fn).QualifiedName())
		assert.Equal(t, a.Node(tr.nested), a.Node(tr.fn).Parent())
		assert.Nil(t, a.Node(tr.file).Parent())
	})

	t.Run("property parts", func(t *testing.T) {
		p := a.Node(tr.prop)
		require.NotNil(t, p.Getter())
		require.NotNil(t, p.Setter())
		require.NotNil(t, p.BackingField())
		assert.True(t, p.Getter().IsGetter())
		assert.False(t, p.Setter().IsGetter())
		assert.Equal(t, p, p.Getter().Owner())
		assert.True(t, p.BackingField().IsOwned())
		assert.Len(t, p.Parts(), 3)

		// accessor types follow the declared type of the property
		assert.True(t, p.Getter().Payload().ReturnType.IsImplicit())
		assert.True(t, p.Setter().Payload().ValueParameters[0].Type.IsImplicit())

		// parts are not children and not indexed
		for _, c := range a.Node(tr.cls).Children() {
			assert.False(t, c.IsOwned())
		}
		assert.Empty(t, a.Lookup("A.x.<get>"))
	})

	t.Run("script statements", func(t *testing.T) {
		s := a.Node(tr.script)
		require.Len(t, s.Statements(), 1)
		assert.Empty(t, s.Children())
		assert.Equal(t, s, a.Node(tr.statement).Owner())
		assert.Equal(t, s.Statements(), s.Parts())
	})

	t.Run("lookup", func(t *testing.T) {
		found := a.Lookup("A.B")
		require.Len(t, found, 1)
		assert.Equal(t, tr.nested, found[0].ID())
		assert.Len(t, a.Lookup("version"), 1)
		assert.Empty(t, a.Lookup("missing"))
	})

	t.Run("implicit types by default", func(t *testing.T) {
		assert.True(t, a.Node(tr.fn).Payload().ReturnType.IsImplicit())
		assert.Equal(t, decl.NamedType("Int"), a.Node(tr.field).Payload().ReturnType)
		assert.Equal(t, decl.TypeNone, a.Node(tr.cls).Payload().ReturnType.Kind)
	})

	t.Run("everything starts raw", func(t *testing.T) {
		a.Walk(func(n *decl.Node) bool {
			assert.Equal(t, phase.Raw, n.Phase())
			return true
		})
	})
}

func TestBuilderErrors(t *testing.T) {
	t.Run("field outside class", func(t *testing.T) {
		b := decl.NewBuilder("m")
		f := b.File("f")
		assert.Equal(t, decl.NoNode, b.Field(f, "x"))
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("accessors on function", func(t *testing.T) {
		b := decl.NewBuilder("m")
		f := b.File("f")
		b.Function(f, "g", decl.WithGetter("1"))
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("missing parent", func(t *testing.T) {
		b := decl.NewBuilder("m")
		b.Class(decl.NodeID(7), "C")
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("double file annotations", func(t *testing.T) {
		b := decl.NewBuilder("m")
		f := b.File("f")
		b.FileAnnotations(f)
		b.FileAnnotations(f)
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("build twice", func(t *testing.T) {
		b := decl.NewBuilder("m")
		b.File("f")
		_, err := b.Build()
		require.NoError(t, err)
		_, err = b.Build()
		require.Error(t, err)
	})
}

func TestWalkOrder(t *testing.T) {
	tr := buildTree(t)
	var names []string
	tr.arena.Walk(func(n *decl.Node) bool {
		names = append(names, n.QualifiedName())
		return true
	})
	assert.Equal(t, []string{"Main.kt", "Main.kt@file", "A", "A.B", "A.B.f", "A.x", "A.y", "g", "z", "build.kts"}, names)

	var visited int
	tr.arena.Walk(func(n *decl.Node) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited)
}

func TestTarget(t *testing.T) {
	tr := buildTree(t)

	target, err := tr.arena.Target(tr.fn)
	require.NoError(t, err)
	assert.Equal(t, tr.fn, target.Node().ID())
	assert.Equal(t, decl.ScopeDeclaration, target.Scope())
	assert.Equal(t, tr.file, target.File().ID())
	assert.Equal(t, "Main.kt/A/B/f", target.String())

	path := target.Path()
	require.Len(t, path, 3)
	assert.Equal(t, []decl.NodeID{tr.file, tr.cls, tr.nested}, []decl.NodeID{path[0].ID(), path[1].ID(), path[2].ID()})

	// the returned path is a copy
	path[0] = nil
	assert.NotNil(t, target.Path()[0])

	root, err := tr.arena.TargetWithMembers(tr.file)
	require.NoError(t, err)
	assert.Empty(t, root.Path())
	assert.Equal(t, root.Node(), root.File())
	assert.Equal(t, decl.ScopeWithMembers, root.Scope())

	_, err = tr.arena.Target(decl.NodeID(1000))
	require.Error(t, err)
	assert.True(t, decl.Target{}.IsZero())
}

func TestDraftPublish(t *testing.T) {
	tr := buildTree(t)
	p := tr.arena.Node(tr.prop)
	before := p.Payload()

	d := p.NewDraft()
	d.Payload().ReturnType = decl.ResolvedType("Int", "", "")
	getter := d.Related(p.Getter())
	require.NotNil(t, getter)
	assert.Same(t, getter, d.Related(p.Getter()))
	getter.Payload().ReturnType = decl.ResolvedType("Int", "", "")

	// nothing is visible before publishing
	assert.True(t, p.Payload().ReturnType.IsImplicit())
	assert.True(t, p.Getter().Payload().ReturnType.IsImplicit())

	require.NoError(t, d.Publish(phase.ImplicitTypes))
	assert.Equal(t, phase.ImplicitTypes, p.Phase())
	assert.Equal(t, "Int", p.Payload().ReturnType.Name)
	assert.Equal(t, "Int", p.Getter().Payload().ReturnType.Name)
	for _, part := range p.Parts() {
		assert.Equal(t, phase.ImplicitTypes, part.Phase(), part.String())
	}
	// the previously published payload is untouched
	assert.True(t, before.ReturnType.IsImplicit())

	t.Run("regression is refused", func(t *testing.T) {
		err := p.NewDraft().Publish(phase.Imports)
		require.Error(t, err)
		assert.True(t, errors.Is(err, decl.ErrPhaseRegression))
		assert.Equal(t, phase.ImplicitTypes, p.Phase())
	})

	t.Run("foreign parts are refused", func(t *testing.T) {
		assert.Nil(t, d.Related(tr.arena.Node(tr.fn)))
		assert.Nil(t, d.Related(nil))
	})

	t.Run("advance only", func(t *testing.T) {
		cls := tr.arena.Node(tr.cls)
		require.NoError(t, cls.AdvanceOnly(phase.SuperTypes))
		assert.Equal(t, phase.SuperTypes, cls.Phase())
		assert.True(t, cls.IsResolved(phase.Imports))
		assert.False(t, cls.IsResolved(phase.AnnotationArguments))
	})
}

// A reader that sees the owner's phase also sees the payloads of its parts.
func TestDraftPublishOrder(t *testing.T) {
	for i := 0; i < 200; i++ {
		tr := buildTree(t)
		z := tr.arena.Node(tr.propertyWithGetter)
		getter := z.Getter()
		require.NotNil(t, getter)

		observed := make(chan bool)
		go func() {
			for !getter.RootOwner().IsResolved(phase.ImplicitTypes) {
			}
			observed <- getter.Payload().ReturnType.IsImplicit()
		}()

		d := z.NewDraft()
		d.Payload().ReturnType = decl.ResolvedType("Int", "", "")
		d.Related(getter).Payload().ReturnType = decl.ResolvedType("Int", "", "")
		require.NoError(t, d.Publish(phase.ImplicitTypes))

		require.False(t, <-observed, "getter payload published after the owner's phase")
		assert.True(t, getter.IsResolved(phase.ImplicitTypes))
	}
}

func TestDraftScriptStatements(t *testing.T) {
	b := decl.NewBuilder("scripts")
	script := b.Script("build.kts")
	fn := b.ScriptStatement(script, decl.KindFunction, "task")
	prop := b.ScriptStatement(script, decl.KindProperty, "version", decl.WithGetter(`"1.0"`))
	arena, err := b.Build()
	require.NoError(t, err)

	s := arena.Node(script)
	p := arena.Node(prop)
	getter := p.Getter()
	require.NotNil(t, getter)
	assert.Equal(t, s, getter.RootOwner())
	assert.Equal(t, s, arena.Node(fn).RootOwner())
	assert.Equal(t, []*decl.Node{arena.Node(fn), p, getter}, s.AllParts())
	assert.Empty(t, s.Children())

	d := s.NewDraft()
	// a part of a part is drafted by its direct owner
	gd := d.Related(getter)
	require.NotNil(t, gd)
	assert.Same(t, gd, d.Related(p).Related(getter))
	assert.Same(t, gd, d.Find(getter))
	assert.Nil(t, d.Find(arena.Node(fn)))
	assert.Len(t, d.RelateParts(), 3)

	gd.Payload().ReturnType = decl.ResolvedType("String", "", "")
	require.NoError(t, d.Publish(phase.ImplicitTypes))
	for _, n := range append([]*decl.Node{s}, s.AllParts()...) {
		assert.Equal(t, phase.ImplicitTypes, n.Phase(), n.String())
	}
	assert.Equal(t, "String", getter.Payload().ReturnType.Name)
}

func TestInvalidate(t *testing.T) {
	tr := buildTree(t)
	assert.True(t, tr.arena.Valid())
	assert.True(t, tr.arena.Invalidate())
	assert.False(t, tr.arena.Invalidate())
	assert.False(t, tr.arena.Valid())
}

func TestMarkDeserialized(t *testing.T) {
	tr := buildTree(t)
	tr.arena.MarkDeserialized()
	for i := 0; i < tr.arena.Len(); i++ {
		assert.Equal(t, phase.Max, tr.arena.Node(decl.NodeID(i)).Phase())
	}
}

func TestPayloadClone(t *testing.T) {
	original := &decl.Payload{
		Imports:     []decl.Import{{Path: "a"}},
		SuperTypes:  []decl.TypeRef{decl.NamedType("Base")},
		Annotations: []decl.Annotation{{Name: "A", Arguments: decl.NewComputed([]decl.Argument{{Text: "1"}})}},
		ReturnType:  decl.ImplicitType(),
		ValueParameters: []decl.ValueParameter{
			{Name: "p", Type: decl.NamedType("Int"), Default: decl.NewComputed(decl.Expression{Text: "0", References: []string{"zero"}})},
		},
		Initializer: decl.NewDeferred[decl.Expression]("1"),
		Body:        decl.NewComputed(decl.Body{Statements: []decl.Expression{{Text: "g()", References: []string{"g"}}}}),
	}
	clone := original.Clone()
	require.True(t, cmp.Equal(original, clone))

	clone.Imports[0].Resolved = true
	clone.SuperTypes[0] = decl.ResolvedType("Base", "Base", "lib")
	args, _ := clone.Annotations[0].Arguments.Value()
	args[0].Resolved = true
	def, _ := clone.ValueParameters[0].Default.Value()
	def.References[0] = "one"
	body, _ := clone.Body.Value()
	body.Statements[0].References[0] = "h"

	assert.False(t, original.Imports[0].Resolved)
	assert.Equal(t, decl.TypeUnresolved, original.SuperTypes[0].Kind)
	originalArgs, _ := original.Annotations[0].Arguments.Value()
	assert.False(t, originalArgs[0].Resolved)
	originalDefault, _ := original.ValueParameters[0].Default.Value()
	assert.Equal(t, "zero", originalDefault.References[0])
	originalBody, _ := original.Body.Value()
	assert.Equal(t, "g", originalBody.Statements[0].References[0])

	assert.NotNil(t, (*decl.Payload)(nil).Clone())
}

func TestLazy(t *testing.T) {
	var absent decl.Lazy[decl.Body]
	assert.True(t, absent.IsAbsent())
	assert.True(t, absent.Compute(decl.Body{}).IsAbsent())

	deferred := decl.NewDeferred[decl.Body]("a; b")
	assert.True(t, deferred.IsDeferred())
	_, ok := deferred.Value()
	assert.False(t, ok)

	computed := deferred.Compute(decl.Body{Statements: []decl.Expression{{Text: "a"}}})
	assert.True(t, computed.IsComputed())
	assert.Equal(t, "a; b", computed.Source())
	value, ok := computed.Value()
	require.True(t, ok)
	assert.Len(t, value.Statements, 1)

	assert.True(t, computed.Defer().Equal(deferred))
	assert.False(t, computed.Equal(deferred))
	assert.Equal(t, decl.Computed, decl.NewComputed(1).State())
}
