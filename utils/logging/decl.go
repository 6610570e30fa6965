package logging

import (
	"github.com/rs/zerolog"

	"github.com/onflow/lazyres/model/decl"
)

type node struct {
	n *decl.Node
}

func (n node) MarshalZerologObject(e *zerolog.Event) {
	e.Uint32("id", uint32(n.n.ID())).
		Str("kind", n.n.Kind().String()).
		Str("name", n.n.QualifiedName()).
		Str("phase", n.n.Phase().String())
}

// Node returns a zerolog object describing n, for use with Event.Object.
func Node(n *decl.Node) zerolog.LogObjectMarshaler {
	return node{n: n}
}

type target struct {
	t decl.Target
}

func (t target) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", t.t.String()).Str("scope", t.t.Scope().String())
	if file := t.t.File(); file != nil {
		e.Str("file", file.Name())
	}
}

// Target returns a zerolog object describing t, for use with Event.Object.
func Target(t decl.Target) zerolog.LogObjectMarshaler {
	return target{t: t}
}

// Names returns the qualified names of the nodes.
func Names(nodes []*decl.Node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.QualifiedName())
	}
	return names
}
