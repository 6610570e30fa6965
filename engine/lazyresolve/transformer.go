package lazyresolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
)

// Transformer holds the semantic rules of one phase. The engine calls
// Transform with a draft of the node while holding the node's advance lock;
// the transformer writes the fields of its own phase into the draft and
// nothing else. Returning ErrRecompute asks for one more attempt with
// precisely computed inputs.
type Transformer interface {
	// Phase returns the phase the transformer computes.
	Phase() phase.Phase
	// Transform computes the phase for the node of d.
	Transform(ctx context.Context, tc *Context, d *decl.Draft) error
}

// SymbolProvider finds declarations by qualified name in a session and its dependencies.
type SymbolProvider interface {
	// Lookup returns the declaration of name without resolving it.
	Lookup(name string) (*decl.Node, bool)
	// Resolve returns the declaration of name resolved to at least phase p.
	// Expected errors:
	//   - ErrSymbolNotFound if no visible module declares name
	Resolve(ctx context.Context, name string, p phase.Phase) (*decl.Node, error)
	// ResolveNode resolves a node returned by Lookup to phase p in the session owning it.
	ResolveNode(ctx context.Context, node *decl.Node, p phase.Phase) error
	// Modules returns the ids of the modules visible to lookups, own module first.
	Modules() []string
}

// Transformers holds one transformer per resolvable phase.
type Transformers struct {
	Imports             Transformer
	SuperTypes          Transformer
	AnnotationArguments Transformer
	ImplicitTypes       Transformer
	Body                Transformer
}

// For returns the transformer of the slot for phase p.
func (t Transformers) For(p phase.Phase) (Transformer, error) {
	switch p {
	case phase.Imports:
		return t.Imports, nil
	case phase.SuperTypes:
		return t.SuperTypes, nil
	case phase.AnnotationArguments:
		return t.AnnotationArguments, nil
	case phase.ImplicitTypes:
		return t.ImplicitTypes, nil
	case phase.Body:
		return t.Body, nil
	default:
		return nil, fmt.Errorf("no transformer slot for %s", p)
	}
}

// Context is what a transformer sees of the request it serves.
type Context struct {
	// Target is the target of the node being resolved.
	Target      decl.Target
	Phase       phase.Phase
	Module      string
	Symbols     SymbolProvider
	ReturnTypes *ReturnTypeCalculator
	Bodies      BodyCalculator
	// Recompute is set on the attempt following an ErrRecompute.
	Recompute bool
	Log       zerolog.Logger

	root *decl.Draft
}

// Draft returns the in-progress draft of n if n is published together with
// the node being resolved, nil otherwise.
func (c *Context) Draft(n *decl.Node) *decl.Draft {
	if c.root == nil || n == nil {
		return nil
	}
	return c.root.Find(n)
}
