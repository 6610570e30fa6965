package decl

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Option configures the declared payload of a node created by a Builder.
type Option func(*declaration)

type declaration struct {
	payload      Payload
	getter       *accessor
	setter       *accessor
	backingField bool
}

type accessor struct {
	body string
	opts []Option
}

// WithImports adds import directives to a file or script.
func WithImports(paths ...string) Option {
	return func(d *declaration) {
		for _, path := range paths {
			d.payload.Imports = append(d.payload.Imports, Import{Path: path})
		}
	}
}

// WithSuperTypes adds declared supertypes to a class or type alias.
func WithSuperTypes(names ...string) Option {
	return func(d *declaration) {
		for _, name := range names {
			d.payload.SuperTypes = append(d.payload.SuperTypes, NamedType(name))
		}
	}
}

// WithAnnotation adds an annotation call. The arguments are kept as deferred source.
func WithAnnotation(name string, arguments ...string) Option {
	return func(d *declaration) {
		a := Annotation{Name: name, Type: NamedType(name)}
		if len(arguments) > 0 {
			a.Arguments = NewDeferred[[]Argument](strings.Join(arguments, ", "))
		}
		d.payload.Annotations = append(d.payload.Annotations, a)
	}
}

// WithReturnType declares the type of a callable. Without it the type is implicit.
func WithReturnType(name string) Option {
	return func(d *declaration) {
		if name != "" {
			d.payload.ReturnType = NamedType(name)
		}
	}
}

// WithParameter adds a value parameter. An empty type is implicit, an empty
// default value means the parameter has none.
func WithParameter(name, typ, defaultValue string) Option {
	return func(d *declaration) {
		vp := ValueParameter{Name: name, Type: ImplicitType()}
		if typ != "" {
			vp.Type = NamedType(typ)
		}
		if defaultValue != "" {
			vp.Default = NewDeferred[Expression](defaultValue)
		}
		d.payload.ValueParameters = append(d.payload.ValueParameters, vp)
	}
}

// WithInitializer sets the initializer of a property or field.
func WithInitializer(source string) Option {
	return func(d *declaration) {
		d.payload.Initializer = NewDeferred[Expression](source)
	}
}

// WithBody sets the deferred body of a callable or script.
func WithBody(source string) Option {
	return func(d *declaration) {
		d.payload.Body = NewDeferred[Body](source)
	}
}

// WithGetter gives a property a custom getter with the given body.
func WithGetter(body string, opts ...Option) Option {
	return func(d *declaration) {
		d.getter = &accessor{body: body, opts: opts}
	}
}

// WithSetter gives a property a custom setter with the given body.
func WithSetter(body string, opts ...Option) Option {
	return func(d *declaration) {
		d.setter = &accessor{body: body, opts: opts}
	}
}

// WithBackingField gives a property a backing field.
func WithBackingField() Option {
	return func(d *declaration) {
		d.backingField = true
	}
}

// Builder assembles the declaration tree of one module. The first structural
// error is kept and returned by Build; calls after an error return NoNode.
type Builder struct {
	arena *Arena
	err   *multierror.Error
	built bool
}

func NewBuilder(module string) *Builder {
	return &Builder{arena: newArena(module)}
}

// File adds a source file root.
func (b *Builder) File(name string, opts ...Option) NodeID {
	return b.root(KindFile, name, opts)
}

// Script adds a script root.
func (b *Builder) Script(name string, opts ...Option) NodeID {
	return b.root(KindScript, name, opts)
}

// FileAnnotations adds the file-level annotation container of file.
func (b *Builder) FileAnnotations(file NodeID, opts ...Option) NodeID {
	parent := b.parent(file, KindFileAnnotations, KindFile)
	if parent == nil {
		return NoNode
	}
	for _, child := range parent.children {
		if b.arena.all[child].kind == KindFileAnnotations {
			b.fail(fmt.Errorf("%s already has file annotations", parent))
			return NoNode
		}
	}
	return b.child(parent, KindFileAnnotations, parent.name+"@file", opts, false)
}

func (b *Builder) Class(parent NodeID, name string, opts ...Option) NodeID {
	return b.member(parent, KindClass, name, opts)
}

func (b *Builder) TypeAlias(parent NodeID, name string, opts ...Option) NodeID {
	return b.member(parent, KindTypeAlias, name, opts)
}

func (b *Builder) Function(parent NodeID, name string, opts ...Option) NodeID {
	return b.member(parent, KindFunction, name, opts)
}

func (b *Builder) Property(parent NodeID, name string, opts ...Option) NodeID {
	return b.member(parent, KindProperty, name, opts)
}

// Field adds a field, which only exists inside classes.
func (b *Builder) Field(class NodeID, name string, opts ...Option) NodeID {
	p := b.parent(class, KindField, KindClass)
	if p == nil {
		return NoNode
	}
	return b.child(p, KindField, name, opts, true)
}

// ScriptStatement adds a function or property that is resolved as part of the script.
func (b *Builder) ScriptStatement(script NodeID, kind Kind, name string, opts ...Option) NodeID {
	if kind != KindFunction && kind != KindProperty {
		b.fail(fmt.Errorf("script statement %s must be a function or property, got %s", name, kind))
		return NoNode
	}
	p := b.parent(script, kind, KindScript)
	if p == nil {
		return NoNode
	}
	n := b.add(p, kind, name, opts, true)
	if n == nil {
		return NoNode
	}
	n.owner = p.id
	p.statements = append(p.statements, n.id)
	return n.id
}

// Build returns the finished arena. The builder must not be used afterwards.
func (b *Builder) Build() (*Arena, error) {
	if b.built {
		return nil, fmt.Errorf("builder for %s already built", b.arena.module)
	}
	b.built = true
	if err := b.err.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid declaration tree for %s: %w", b.arena.module, err)
	}
	return b.arena, nil
}

func (b *Builder) fail(err error) {
	b.err = multierror.Append(b.err, err)
}

func (b *Builder) root(kind Kind, name string, opts []Option) NodeID {
	n := b.add(nil, kind, name, opts, false)
	if n == nil {
		return NoNode
	}
	b.arena.roots = append(b.arena.roots, n.id)
	return n.id
}

func (b *Builder) member(parent NodeID, kind Kind, name string, opts []Option) NodeID {
	p := b.parent(parent, kind, KindFile, KindScript, KindClass)
	if p == nil {
		return NoNode
	}
	return b.child(p, kind, name, opts, true)
}

func (b *Builder) parent(id NodeID, kind Kind, allowed ...Kind) *Node {
	p := b.arena.node(id)
	if p == nil {
		b.fail(fmt.Errorf("parent %d of new %s does not exist", id, kind))
		return nil
	}
	for _, k := range allowed {
		if p.kind == k {
			return p
		}
	}
	b.fail(fmt.Errorf("%s cannot be declared in %s", kind, p))
	return nil
}

func (b *Builder) child(parent *Node, kind Kind, name string, opts []Option, indexed bool) NodeID {
	n := b.add(parent, kind, name, opts, indexed)
	if n == nil {
		return NoNode
	}
	parent.children = append(parent.children, n.id)
	return n.id
}

func (b *Builder) add(parent *Node, kind Kind, name string, opts []Option, indexed bool) *Node {
	if b.built {
		b.fail(fmt.Errorf("add %s %s after build", kind, name))
		return nil
	}
	if name == "" {
		b.fail(fmt.Errorf("%s without a name", kind))
		return nil
	}
	d := &declaration{}
	if kind.IsCallable() {
		d.payload.ReturnType = ImplicitType()
	}
	for _, opt := range opts {
		opt(d)
	}
	if kind != KindProperty && (d.getter != nil || d.setter != nil || d.backingField) {
		b.fail(fmt.Errorf("%s %s cannot have accessors or a backing field", kind, name))
		return nil
	}

	parentID := NoNode
	qualified := name
	if parent != nil {
		parentID = parent.id
		if parent.kind == KindClass {
			qualified = parent.qualified + "." + name
		}
	}
	n := b.newNode(kind, name, qualified, parentID, &d.payload)
	if indexed {
		b.arena.index[qualified] = append(b.arena.index[qualified], n.id)
	}
	if kind == KindProperty {
		b.addPropertyParts(n, d)
	}
	return n
}

func (b *Builder) newNode(kind Kind, name, qualified string, parent NodeID, payload *Payload) *Node {
	n := newNode(b.arena, NodeID(len(b.arena.all)), kind, name, parent, payload)
	n.qualified = qualified
	b.arena.all = append(b.arena.all, n)
	return n
}

func (b *Builder) addPropertyParts(property *Node, d *declaration) {
	propertyType := d.payload.ReturnType
	part := func(kind Kind, suffix string, payload *Payload) *Node {
		n := b.newNode(kind, suffix, property.qualified+"."+suffix, property.id, payload)
		n.owner = property.id
		return n
	}

	if d.getter != nil {
		getter := &declaration{payload: Payload{ReturnType: propertyType}}
		if d.getter.body != "" {
			getter.payload.Body = NewDeferred[Body](d.getter.body)
		}
		for _, opt := range d.getter.opts {
			opt(getter)
		}
		property.getter = part(KindAccessor, "<get>", &getter.payload).id
	}
	if d.setter != nil {
		setter := &declaration{payload: Payload{
			ValueParameters: []ValueParameter{{Name: "value", Type: propertyType}},
		}}
		if d.setter.body != "" {
			setter.payload.Body = NewDeferred[Body](d.setter.body)
		}
		for _, opt := range d.setter.opts {
			opt(setter)
		}
		property.setter = part(KindAccessor, "<set>", &setter.payload).id
	}
	if d.backingField {
		property.backingField = part(KindBackingField, "<field>", &Payload{ReturnType: propertyType}).id
	}
}
