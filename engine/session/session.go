package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/phase"
	"github.com/onflow/lazyres/model/project"
	"github.com/onflow/lazyres/module"
	"github.com/onflow/lazyres/module/locks"
	"github.com/onflow/lazyres/module/metrics"
)

// Rules are the semantic rules a session resolves its declarations with.
type Rules struct {
	Transformers lazyresolve.Transformers
	Bodies       lazyresolve.BodyCalculator
}

// Config holds the sizes of the per-session memos.
type Config struct {
	SymbolCacheSize     int
	ReturnTypeCacheSize int
}

func DefaultConfig() Config {
	return Config{
		SymbolCacheSize:     1000,
		ReturnTypeCacheSize: 1000,
	}
}

// Session is the resolution context of one module. It owns the declaration
// tree of the module and sees the declarations of its dependency sessions.
// Once invalidated, a session stays invalid: every later request fails with a
// StaleSessionError and callers have to ask the cache for a new session.
type Session struct {
	id           uuid.UUID
	log          zerolog.Logger
	metrics      module.SessionCacheMetrics
	module       *project.Module
	arena        *decl.Arena
	locks        *locks.Provider
	engine       *lazyresolve.Engine
	returnTypes  *lazyresolve.ReturnTypeCalculator
	symbols      *SymbolProvider
	dependencies []*Session
	valid        *atomic.Bool

	mu          sync.Mutex
	dependents  []*Session
	disposables []func() error
}

// New creates the session of module m over arena. The dependency sessions
// must be valid; New registers the session as their dependent so that it is
// invalidated together with any of them.
// Expected errors:
//   - lazyresolve.StaleSessionError if a dependency session was invalidated
//   - lazyresolve.PhaseConsistencyError if the rules are incomplete
func New(
	log zerolog.Logger,
	resolution module.ResolutionMetrics,
	collector module.SessionCacheMetrics,
	m *project.Module,
	arena *decl.Arena,
	dependencies []*Session,
	rules Rules,
	config Config,
) (*Session, error) {
	if arena.Module() != m.ID {
		return nil, fmt.Errorf("arena of module %s cannot back a session of %s", arena.Module(), m)
	}

	id := uuid.New()
	s := &Session{
		id:           id,
		log:          log.With().Str("component", "session").Str("module", m.ID).Str("session", id.String()).Logger(),
		metrics:      collector,
		module:       m,
		arena:        arena,
		locks:        locks.NewProvider(log, resolution),
		dependencies: dependencies,
		valid:        atomic.NewBool(true),
	}

	symbols, err := newSymbolProvider(s, collector, config.SymbolCacheSize)
	if err != nil {
		return nil, err
	}
	s.symbols = symbols

	s.returnTypes, err = lazyresolve.NewReturnTypeCalculator(s.log, collector, symbols, config.ReturnTypeCacheSize)
	if err != nil {
		return nil, err
	}
	s.engine, err = lazyresolve.NewEngine(s.log, resolution, arena, s.locks, symbols, rules.Bodies, s.returnTypes, rules.Transformers)
	if err != nil {
		return nil, fmt.Errorf("could not create engine of %s: %w", m, err)
	}

	for _, dep := range dependencies {
		if !dep.addDependent(s) {
			s.valid.Store(false)
			arena.Invalidate()
			return nil, lazyresolve.NewStaleSessionError(dep.module.ID, nil)
		}
	}
	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Module() *project.Module { return s.module }

func (s *Session) Arena() *decl.Arena { return s.arena }

func (s *Session) Symbols() *SymbolProvider { return s.symbols }

// Dependencies returns the sessions this session sees declarations of.
func (s *Session) Dependencies() []*Session { return s.dependencies }

func (s *Session) Valid() bool { return s.valid.Load() }

func (s *Session) String() string {
	return fmt.Sprintf("session %s of %s", s.id, s.module)
}

// ResolveTo advances target, a target of this session's arena, to phase p.
// Expected errors: those of lazyresolve.Engine.ResolveTo.
func (s *Session) ResolveTo(ctx context.Context, target decl.Target, p phase.Phase) error {
	if !s.Valid() {
		var node *decl.Node
		if !target.IsZero() {
			node = target.Node()
		}
		return lazyresolve.NewStaleSessionError(s.module.ID, node)
	}
	return s.engine.ResolveTo(ctx, target, p)
}

// IsResolved returns true if node was resolved to at least phase p.
func (s *Session) IsResolved(node *decl.Node, p phase.Phase) bool {
	return s.engine.IsResolved(node, p)
}

// Target returns the target of a single declaration.
func (s *Session) Target(id decl.NodeID) (decl.Target, error) {
	return s.arena.Target(id)
}

// TargetWithMembers returns the target of a declaration together with its nested declarations.
func (s *Session) TargetWithMembers(id decl.NodeID) (decl.Target, error) {
	return s.arena.TargetWithMembers(id)
}

// RegisterDisposable adds a cleanup function that runs when the session is
// invalidated. Disposables run in reverse registration order. A disposable
// registered on an invalid session runs immediately.
func (s *Session) RegisterDisposable(dispose func() error) {
	s.mu.Lock()
	if s.Valid() {
		s.disposables = append(s.disposables, dispose)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := dispose(); err != nil {
		s.log.Warn().Err(err).Msg("could not dispose resource of invalid session")
	}
}

// Invalidate marks the session and every session depending on it as
// invalid, then runs their disposables. It is a no-op on an invalid session.
// The returned error aggregates every disposable failure.
func (s *Session) Invalidate() error {
	return s.InvalidateFor(metrics.InvalidationRemoved)
}

// InvalidateFor is Invalidate with the reason reported to the metrics.
func (s *Session) InvalidateFor(reason string) error {
	s.mu.Lock()
	if !s.valid.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return nil
	}
	s.arena.Invalidate()
	dependents := s.dependents
	disposables := s.disposables
	s.dependents, s.disposables = nil, nil
	s.mu.Unlock()

	s.metrics.SessionInvalidated(reason)
	s.symbols.purge()
	s.returnTypes.Purge()

	var result *multierror.Error
	for _, dependent := range dependents {
		if err := dependent.InvalidateFor(metrics.InvalidationDependency); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := disposables[i](); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not dispose resource of %s: %w", s.module, err))
		}
	}

	err := result.ErrorOrNil()
	if err != nil {
		s.log.Warn().Err(err).Str("reason", reason).Msg("session invalidated with disposal failures")
		return err
	}
	s.log.Debug().Str("reason", reason).Int("dependents", len(dependents)).Msg("session invalidated")
	return nil
}

// addDependent returns false if the session is invalid already.
func (s *Session) addDependent(dependent *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Valid() {
		return false
	}
	s.dependents = append(s.dependents, dependent)
	return true
}

// HasValidDependents returns true if a valid session depends on s.
func (s *Session) HasValidDependents() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dependent := range s.dependents {
		if dependent.Valid() {
			return true
		}
	}
	return false
}
