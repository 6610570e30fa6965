package decl

import (
	"fmt"
	"strings"
)

// TypeKind is the resolution state of a type reference.
type TypeKind uint8

const (
	// TypeNone marks the absence of a type, for example on a class.
	TypeNone TypeKind = iota
	// TypeImplicit is a type that has to be inferred.
	TypeImplicit
	// TypeUnresolved is a type written in source whose name is not bound yet.
	TypeUnresolved
	// TypeResolved is a type bound to a declaration or a builtin.
	TypeResolved
	// TypeError is a type that could not be computed, see Reason.
	TypeError
)

// TypeRef is a reference to a type as seen by a declaration.
type TypeRef struct {
	Kind TypeKind
	Name string
	// Symbol is the qualified name of the declaring node, empty for builtins.
	Symbol string
	// Module is the module the symbol was found in.
	Module string
	Reason string
}

func ImplicitType() TypeRef { return TypeRef{Kind: TypeImplicit} }

func NamedType(name string) TypeRef { return TypeRef{Kind: TypeUnresolved, Name: name} }

func ResolvedType(name, symbol, module string) TypeRef {
	return TypeRef{Kind: TypeResolved, Name: name, Symbol: symbol, Module: module}
}

func ErrorType(name, reason string) TypeRef {
	return TypeRef{Kind: TypeError, Name: name, Reason: reason}
}

func (t TypeRef) IsImplicit() bool { return t.Kind == TypeImplicit }

// IsFinal returns true once the reference needs no further resolution.
func (t TypeRef) IsFinal() bool {
	return t.Kind == TypeNone || t.Kind == TypeResolved || t.Kind == TypeError
}

func (t TypeRef) String() string {
	switch t.Kind {
	case TypeNone:
		return "<none>"
	case TypeImplicit:
		return "<implicit>"
	case TypeUnresolved:
		return "?" + t.Name
	case TypeError:
		return fmt.Sprintf("<error %s: %s>", t.Name, t.Reason)
	default:
		if t.Module != "" {
			return t.Module + ":" + t.Name
		}
		return t.Name
	}
}

// Import is an import directive of a file or script.
type Import struct {
	Path     string
	Resolved bool
	// Module is the module the import was bound to.
	Module string
}

// Argument is one argument of an annotation call.
type Argument struct {
	Text     string
	Resolved bool
	Type     TypeRef
	// Placeholder is set on arguments produced by the cheap pre-computation.
	Placeholder bool
}

// Annotation is an annotation call on a declaration.
type Annotation struct {
	Name      string
	Type      TypeRef
	Arguments Lazy[[]Argument]
}

// Expression is a computed piece of code.
type Expression struct {
	Text string
	Type TypeRef
	// References are the names the expression refers to.
	References []string
	Resolved   bool
}

// Body is the computed body of a callable or script.
type Body struct {
	Statements []Expression
	Resolved   bool
}

// ValueParameter is a parameter of a function or setter.
type ValueParameter struct {
	Name    string
	Type    TypeRef
	Default Lazy[Expression]
}

// Payload holds the phase-specific fields of a node. A published payload is
// immutable; writers change a Draft and publish it as a whole.
type Payload struct {
	Imports         []Import
	SuperTypes      []TypeRef
	Annotations     []Annotation
	ReturnType      TypeRef
	ValueParameters []ValueParameter
	Initializer     Lazy[Expression]
	Body            Lazy[Body]
}

// Clone returns a deep copy of p.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return &Payload{}
	}
	c := &Payload{
		ReturnType:  p.ReturnType,
		Initializer: p.Initializer.Map(Expression.Clone),
		Body:        p.Body.Map(Body.Clone),
	}
	if p.Imports != nil {
		c.Imports = append([]Import(nil), p.Imports...)
	}
	if p.SuperTypes != nil {
		c.SuperTypes = append([]TypeRef(nil), p.SuperTypes...)
	}
	if p.Annotations != nil {
		c.Annotations = make([]Annotation, len(p.Annotations))
		for i, a := range p.Annotations {
			c.Annotations[i] = a.Clone()
		}
	}
	if p.ValueParameters != nil {
		c.ValueParameters = make([]ValueParameter, len(p.ValueParameters))
		for i, vp := range p.ValueParameters {
			vp.Default = vp.Default.Map(Expression.Clone)
			c.ValueParameters[i] = vp
		}
	}
	return c
}

// Clone returns a deep copy of a.
func (a Annotation) Clone() Annotation {
	a.Arguments = a.Arguments.Map(func(args []Argument) []Argument {
		if args == nil {
			return nil
		}
		return append([]Argument(nil), args...)
	})
	return a
}

func (a Annotation) String() string {
	var sb strings.Builder
	sb.WriteString("@")
	sb.WriteString(a.Name)
	if !a.Arguments.IsAbsent() {
		sb.WriteString("(")
		if args, ok := a.Arguments.Value(); ok {
			texts := make([]string, len(args))
			for i, arg := range args {
				texts[i] = arg.Text
			}
			sb.WriteString(strings.Join(texts, ", "))
		} else {
			sb.WriteString(a.Arguments.Source())
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// Clone returns a deep copy of e.
func (e Expression) Clone() Expression {
	if e.References != nil {
		e.References = append([]string(nil), e.References...)
	}
	return e
}

// Clone returns a deep copy of b.
func (b Body) Clone() Body {
	if b.Statements != nil {
		statements := make([]Expression, len(b.Statements))
		for i, s := range b.Statements {
			statements[i] = s.Clone()
		}
		b.Statements = statements
	}
	return b
}
