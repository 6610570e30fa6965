// Package treeprovider turns module sources into declaration trees.
package treeprovider

import (
	"context"
	"errors"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/project"
)

// ErrUnknownModule is returned by providers that have no sources for a module.
var ErrUnknownModule = errors.New("unknown module")

// Provider builds the declaration tree of a module. Every call returns a new
// arena; sessions never share nodes.
type Provider interface {
	Tree(ctx context.Context, m *project.Module) (*decl.Arena, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, m *project.Module) (*decl.Arena, error)

func (f ProviderFunc) Tree(ctx context.Context, m *project.Module) (*decl.Arena, error) {
	return f(ctx, m)
}
