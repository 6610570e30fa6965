package decl

import "strings"

// Scope tells how much of the tree below a target is resolved.
type Scope uint8

const (
	// ScopeDeclaration resolves the target node, and the own state of its containers.
	ScopeDeclaration Scope = iota
	// ScopeWithMembers also resolves all nested declarations, in declared order.
	ScopeWithMembers
)

func (s Scope) String() string {
	if s == ScopeWithMembers {
		return "with_members"
	}
	return "declaration"
}

// Target names a node together with the containers needed to resolve it in
// context. Targets are values and never change after construction.
type Target struct {
	node  *Node
	path  []*Node
	file  *Node
	scope Scope
}

// Node returns the node to resolve. It is nil for the zero Target.
func (t Target) Node() *Node { return t.node }

// Path returns the enclosing containers from outermost to innermost.
func (t Target) Path() []*Node {
	return append([]*Node(nil), t.path...)
}

// File returns the file or script the node belongs to.
func (t Target) File() *Node { return t.file }

func (t Target) Scope() Scope { return t.scope }

// IsZero returns true for a target that names no node.
func (t Target) IsZero() bool { return t.node == nil }

// ForNode returns a target for another node of the same arena.
func (t Target) ForNode(n *Node) (Target, error) {
	return n.arena.target(n.id, t.scope)
}

func (t Target) String() string {
	if t.node == nil {
		return "<no target>"
	}
	parts := make([]string, 0, len(t.path)+1)
	for _, p := range t.path {
		parts = append(parts, p.name)
	}
	parts = append(parts, t.node.name)
	return strings.Join(parts, "/")
}
