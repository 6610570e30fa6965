package decl

import (
	"fmt"

	"github.com/ef-ds/deque"
	"go.uber.org/atomic"

	"github.com/onflow/lazyres/model/phase"
)

// Arena owns every node of one module's declaration tree. Nodes refer to each
// other by NodeID, so dropping a session is a single Invalidate call.
type Arena struct {
	module string
	all    []*Node
	roots  []NodeID
	index  map[string][]NodeID
	valid  *atomic.Bool
}

func newArena(module string) *Arena {
	return &Arena{
		module: module,
		index:  make(map[string][]NodeID),
		valid:  atomic.NewBool(true),
	}
}

// Module returns the id of the module the tree belongs to.
func (a *Arena) Module() string { return a.module }

func (a *Arena) Len() int { return len(a.all) }

// Node returns the node with the given handle, or nil if there is none.
func (a *Arena) Node(id NodeID) *Node {
	return a.node(id)
}

func (a *Arena) node(id NodeID) *Node {
	if id == NoNode || int(id) >= len(a.all) {
		return nil
	}
	return a.all[id]
}

func (a *Arena) nodes(ids []NodeID) []*Node {
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = a.all[id]
	}
	return nodes
}

// Roots returns the files and scripts of the tree in declared order.
func (a *Arena) Roots() []*Node {
	return a.nodes(a.roots)
}

// Lookup returns the nodes declaring the qualified name, in declared order.
func (a *Arena) Lookup(name string) []*Node {
	return a.nodes(a.index[name])
}

// Valid returns false once the owning session was dropped.
func (a *Arena) Valid() bool {
	return a.valid.Load()
}

// Invalidate permanently marks every node of the arena as stale.
// It returns false if the arena was already invalid.
func (a *Arena) Invalidate() bool {
	return a.valid.CompareAndSwap(true, false)
}

// MarkDeserialized moves every node to phase.Max. It is used for declarations
// read from compiled artifacts, which carry their resolved state already.
func (a *Arena) MarkDeserialized() {
	for _, n := range a.all {
		n.phase.Store(uint32(phase.Max))
	}
}

// Walk visits the independently resolvable nodes in preorder, children in
// declared order. Owned nodes are skipped. Walk stops when visit returns false.
func (a *Arena) Walk(visit func(*Node) bool) {
	var stack deque.Deque
	for i := len(a.roots) - 1; i >= 0; i-- {
		stack.PushBack(a.roots[i])
	}
	for stack.Len() > 0 {
		v, _ := stack.PopBack()
		n := a.all[v.(NodeID)]
		if !visit(n) {
			return
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack.PushBack(n.children[i])
		}
	}
}

// Target returns a target for resolving the node alone.
func (a *Arena) Target(id NodeID) (Target, error) {
	return a.target(id, ScopeDeclaration)
}

// TargetWithMembers returns a target for resolving the node with all its nested declarations.
func (a *Arena) TargetWithMembers(id NodeID) (Target, error) {
	return a.target(id, ScopeWithMembers)
}

func (a *Arena) target(id NodeID, scope Scope) (Target, error) {
	n := a.node(id)
	if n == nil {
		return Target{}, fmt.Errorf("no node %d in arena of module %s", id, a.module)
	}
	var path []*Node
	for p := n.Parent(); p != nil; p = p.Parent() {
		path = append(path, p)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	file := n
	if len(path) > 0 {
		file = path[0]
	}
	return Target{node: n, path: path, file: file, scope: scope}, nil
}
