package decl

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/atomic"

	"github.com/onflow/lazyres/model/phase"
)

// NodeID is the handle of a node inside its Arena.
type NodeID uint32

// NoNode is the handle of a missing node.
const NoNode NodeID = math.MaxUint32

// ErrPhaseRegression is returned when a node would move to a lower phase.
var ErrPhaseRegression = errors.New("phase regression")

// Node is one declaration of the semantic tree. Identity, kind and tree
// structure are fixed at build time. The phase marker and the payload change
// over time, always under the node's advance lock and always through Draft.Publish.
type Node struct {
	id        NodeID
	kind      Kind
	name      string
	qualified string
	arena     *Arena

	parent   NodeID
	children []NodeID

	// owner is the property of an accessor or backing field, or the script of a
	// script statement. Owned nodes are resolved by their owner.
	owner        NodeID
	getter       NodeID
	setter       NodeID
	backingField NodeID
	statements   []NodeID

	phase   atomic.Uint32
	payload atomic.Pointer[Payload]
}

func newNode(arena *Arena, id NodeID, kind Kind, name string, parent NodeID, payload *Payload) *Node {
	n := &Node{
		id:           id,
		kind:         kind,
		name:         name,
		arena:        arena,
		parent:       parent,
		owner:        NoNode,
		getter:       NoNode,
		setter:       NoNode,
		backingField: NoNode,
	}
	n.payload.Store(payload)
	return n
}

func (n *Node) ID() NodeID { return n.id }

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) Name() string { return n.name }

// QualifiedName is the name symbol lookups use, for example "Outer.Inner.member".
func (n *Node) QualifiedName() string { return n.qualified }

// Arena returns the arena that owns the node.
func (n *Node) Arena() *Arena { return n.arena }

// Phase returns the phase the node is currently resolved to.
func (n *Node) Phase() phase.Phase {
	return phase.Phase(n.phase.Load())
}

// IsResolved returns true if the node is at phase p or beyond.
func (n *Node) IsResolved(p phase.Phase) bool {
	return n.Phase().AtLeast(p)
}

// Payload returns the last published payload. It must not be modified.
func (n *Node) Payload() *Payload {
	return n.payload.Load()
}

// Parent returns the enclosing node, or nil for roots.
func (n *Node) Parent() *Node {
	return n.arena.node(n.parent)
}

// Children returns the independently resolvable child declarations in declared order.
func (n *Node) Children() []*Node {
	return n.arena.nodes(n.children)
}

// Owner returns the node that resolves n, or nil if n resolves itself.
func (n *Node) Owner() *Node {
	return n.arena.node(n.owner)
}

// IsOwned returns true for accessors, backing fields and script statements.
func (n *Node) IsOwned() bool {
	return n.owner != NoNode
}

func (n *Node) Getter() *Node { return n.arena.node(n.getter) }

func (n *Node) Setter() *Node { return n.arena.node(n.setter) }

func (n *Node) BackingField() *Node { return n.arena.node(n.backingField) }

// IsGetter returns true if n is the getter of its property.
func (n *Node) IsGetter() bool {
	owner := n.Owner()
	return n.kind == KindAccessor && owner != nil && owner.getter == n.id
}

// Statements returns the dependent statements of a script in declared order.
func (n *Node) Statements() []*Node {
	return n.arena.nodes(n.statements)
}

// Parts returns the nodes owned by n that are published together with it:
// the accessors and backing field of a property, the statements of a script.
func (n *Node) Parts() []*Node {
	switch n.kind {
	case KindProperty:
		parts := make([]*Node, 0, 3)
		for _, id := range []NodeID{n.getter, n.setter, n.backingField} {
			if part := n.arena.node(id); part != nil {
				parts = append(parts, part)
			}
		}
		return parts
	case KindScript:
		return n.Statements()
	default:
		return nil
	}
}

// AllParts returns the parts of n and, recursively, the parts of its parts.
func (n *Node) AllParts() []*Node {
	var all []*Node
	for _, part := range n.Parts() {
		all = append(all, part)
		all = append(all, part.AllParts()...)
	}
	return all
}

// RootOwner returns the node that resolves n: n itself unless it is owned,
// otherwise the outermost node of its owner chain.
func (n *Node) RootOwner() *Node {
	root := n
	for owner := n.Owner(); owner != nil; owner = owner.Owner() {
		root = owner
	}
	return root
}

func (n *Node) ownedBy(owner *Node) bool {
	for o := n.Owner(); o != nil; o = o.Owner() {
		if o == owner {
			return true
		}
	}
	return false
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s#%d", n.kind, n.qualified, n.id)
}

// advance moves the phase marker to p. Moving backwards fails.
func (n *Node) advance(p phase.Phase) error {
	for {
		current := n.phase.Load()
		if uint32(p) < current {
			return fmt.Errorf("%s from %s to %s: %w", n, phase.Phase(current), p, ErrPhaseRegression)
		}
		if uint32(p) == current || n.phase.CompareAndSwap(current, uint32(p)) {
			return nil
		}
	}
}

// NewDraft returns a writable copy of the node's payload.
func (n *Node) NewDraft() *Draft {
	return &Draft{
		node:    n,
		payload: n.Payload().Clone(),
	}
}
