package session

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/module"
	"github.com/onflow/lazyres/module/metrics"
)

// SymbolProvider finds declarations by qualified name. It looks in the arena
// of its session first, then in the dependency sessions depth-first, each
// session once. The first declaration found wins.
type SymbolProvider struct {
	session *Session
	metrics module.CacheMetrics
	cache   *lru.Cache
}

var _ lazyresolve.SymbolProvider = (*SymbolProvider)(nil)

func newSymbolProvider(s *Session, collector module.CacheMetrics, size int) (*SymbolProvider, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("could not create symbol cache: %w", err)
	}
	return &SymbolProvider{
		session: s,
		metrics: collector,
		cache:   cache,
	}, nil
}

func (p *SymbolProvider) Lookup(name string) (*decl.Node, bool) {
	if v, ok := p.cache.Get(name); ok {
		p.metrics.CacheHit(metrics.ResourceSymbols)
		return v.(*decl.Node), true
	}
	for _, s := range p.sessions() {
		if nodes := s.arena.Lookup(name); len(nodes) > 0 {
			p.metrics.CacheMiss(metrics.ResourceSymbols)
			p.cache.Add(name, nodes[0])
			return nodes[0], true
		}
	}
	p.metrics.CacheNotFound(metrics.ResourceSymbols)
	return nil, false
}

// Resolve looks name up and resolves the declaration to phase p.
// Expected errors:
//   - lazyresolve.ErrSymbolNotFound if name is not declared
//   - the errors of Session.ResolveTo
func (p *SymbolProvider) Resolve(ctx context.Context, name string, to phase.Phase) (*decl.Node, error) {
	node, ok := p.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, p.session.module, lazyresolve.ErrSymbolNotFound)
	}
	if err := p.ResolveNode(ctx, node, to); err != nil {
		return nil, err
	}
	return node, nil
}

// ResolveNode resolves node with the session owning it.
func (p *SymbolProvider) ResolveNode(ctx context.Context, node *decl.Node, to phase.Phase) error {
	for _, s := range p.sessions() {
		if s.arena != node.Arena() {
			continue
		}
		target, err := s.Target(node.ID())
		if err != nil {
			return err
		}
		return s.ResolveTo(ctx, target, to)
	}
	return fmt.Errorf("%s belongs to module %s, which %s does not depend on", node, node.Arena().Module(), p.session.module)
}

// Modules returns the ids of the visible modules in lookup order.
func (p *SymbolProvider) Modules() []string {
	sessions := p.sessions()
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.module.ID)
	}
	return ids
}

func (p *SymbolProvider) purge() {
	p.cache.Purge()
}

// sessions returns the owning session followed by its transitive
// dependencies in depth-first order.
func (p *SymbolProvider) sessions() []*Session {
	seen := make(map[*Session]struct{})
	var order []*Session
	var visit func(s *Session)
	visit = func(s *Session) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		order = append(order, s)
		for _, dep := range s.dependencies {
			visit(dep)
		}
	}
	visit(p.session)
	return order
}
