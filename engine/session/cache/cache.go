// Package cache keeps one session per module and creates sessions on demand.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/onflow/lazyres/engine/lazyresolve"
	"github.com/onflow/lazyres/engine/session"
	"github.com/onflow/lazyres/model/project"
	"github.com/onflow/lazyres/module"
	"github.com/onflow/lazyres/module/metrics"
	"github.com/onflow/lazyres/module/treeprovider"
)

// Metrics is what the cache and the sessions it creates report to.
type Metrics interface {
	module.ResolutionMetrics
	module.SessionCacheMetrics
}

const (
	minCapacity = 16
	maxCapacity = 4096
	// bytesPerSession is the memory budget assumed for one cached session.
	bytesPerSession = 32 << 20

	// createAttempts bounds the retries of a creation that raced with the
	// invalidation of a dependency.
	createAttempts = 3
)

// DefaultCapacity derives the capacity of each store from the total system memory.
func DefaultCapacity() int {
	capacity := int(memory.TotalMemory() / bytesPerSession)
	switch {
	case capacity < minCapacity:
		return minCapacity
	case capacity > maxCapacity:
		return maxCapacity
	default:
		return capacity
	}
}

// PressureLevel is the severity of a memory pressure notification.
type PressureLevel int

const (
	// PressureModerate evicts the least recently used half of each store.
	PressureModerate PressureLevel = iota
	// PressureCritical evicts every session.
	PressureCritical
)

type Option func(*Cache)

func WithSourceCapacity(capacity int) Option {
	return func(c *Cache) { c.sourceCapacity = capacity }
}

func WithBinaryCapacity(capacity int) Option {
	return func(c *Cache) { c.binaryCapacity = capacity }
}

func WithSessionConfig(config session.Config) Option {
	return func(c *Cache) { c.sessionConfig = config }
}

// store is one of the bounded session stores. Evicted sessions that valid
// sessions still depend on are retired: they stay valid and reachable by
// removals until they are invalidated.
type store struct {
	resource string
	sessions *lru.Cache[string, *session.Session]

	mu      sync.Mutex
	retired map[string][]*session.Session
}

func newStore(log zerolog.Logger, resource string, capacity int) (*store, error) {
	st := &store{
		resource: resource,
		retired:  make(map[string][]*session.Session),
	}
	var err error
	st.sessions, err = lru.NewWithEvict(capacity, func(key string, s *session.Session) {
		if !s.Valid() {
			return
		}
		log.Debug().Str("module", key).Str("store", resource).Msg("session evicted")
		st.retire(key, s)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (st *store) retire(key string, s *session.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var kept []*session.Session
	for _, r := range st.retired[key] {
		if r.Valid() {
			kept = append(kept, r)
		}
	}
	if s.HasValidDependents() {
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(st.retired, key)
		return
	}
	st.retired[key] = kept
}

func (st *store) takeRetired(key string) []*session.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	retired := st.retired[key]
	delete(st.retired, key)
	return retired
}

// keys returns the keys of the stored and the retired sessions whose module matches.
func (st *store) keys(match func(*project.Module) bool) []string {
	var keys []string
	for _, key := range st.sessions.Keys() {
		if s, ok := st.sessions.Peek(key); ok && match(s.Module()) {
			keys = append(keys, key)
		}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for key, retired := range st.retired {
		if _, stored := st.sessions.Peek(key); stored || len(retired) == 0 {
			continue
		}
		if match(retired[0].Module()) {
			keys = append(keys, key)
		}
	}
	return keys
}

type moduleLock struct {
	sync.RWMutex
	refs int
}

// Cache owns the sessions of a project. Sessions of compiled modules may be
// kept in a separate binary store, all others live in the source store.
// Creation of the session of one module is deduplicated; removal of a
// module's session excludes concurrent creation of the same module.
// Eviction only drops a session from its store, it stays valid.
type Cache struct {
	log           zerolog.Logger
	metrics       Metrics
	trees         treeprovider.Provider
	factories     map[project.Family]Factory
	sessionConfig session.Config

	sourceCapacity int
	binaryCapacity int
	source         *store
	binary         *store

	group singleflight.Group
	// write serializes removals and memory pressure evictions.
	write sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*moduleLock
}

// New creates a cache building trees with the provider. A factory for
// project.FamilyCommon is required.
func New(log zerolog.Logger, collector Metrics, trees treeprovider.Provider, factories []Factory, opts ...Option) (*Cache, error) {
	c := &Cache{
		log:            log.With().Str("component", "session_cache").Logger(),
		metrics:        collector,
		trees:          trees,
		factories:      make(map[project.Family]Factory),
		sessionConfig:  session.DefaultConfig(),
		sourceCapacity: DefaultCapacity(),
		binaryCapacity: DefaultCapacity(),
		locks:          make(map[string]*moduleLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, f := range factories {
		if f.Transformers == nil {
			return nil, fmt.Errorf("factory for %s has no rules", f.Family)
		}
		c.factories[f.Family] = f
	}
	if _, ok := c.factories[project.FamilyCommon]; !ok {
		return nil, fmt.Errorf("no factory for %s platforms", project.FamilyCommon)
	}

	var err error
	c.source, err = newStore(c.log, metrics.ResourceSourceSessions, c.sourceCapacity)
	if err != nil {
		return nil, fmt.Errorf("could not create source store: %w", err)
	}
	c.binary, err = newStore(c.log, metrics.ResourceBinarySessions, c.binaryCapacity)
	if err != nil {
		return nil, fmt.Errorf("could not create binary store: %w", err)
	}
	return c, nil
}

// GetSession returns a valid session of m, creating it if needed. Compiled
// modules are served from the binary store if preferBinary is set; SDKs
// always are. The dependencies of a new session are taken from the cache.
func (c *Cache) GetSession(ctx context.Context, m *project.Module, preferBinary bool) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, binary := c.storeFor(m, preferBinary)
	key := m.Key()

	if s, ok := st.sessions.Get(key); ok && s.Valid() {
		c.metrics.CacheHit(st.resource)
		return s, nil
	}

	l := c.lock(key)
	l.RLock()
	defer c.unlock(key, l, l.RUnlock)

	for attempt := 1; ; attempt++ {
		v, err, _ := c.group.Do(st.resource+"/"+key, func() (interface{}, error) {
			if s, ok := st.sessions.Get(key); ok && s.Valid() {
				c.metrics.CacheHit(st.resource)
				return s, nil
			}
			c.metrics.CacheMiss(st.resource)
			s, err := c.createSession(ctx, m, binary, preferBinary)
			if err != nil {
				return nil, err
			}
			st.sessions.Add(key, s)
			c.metrics.CacheEntries(st.resource, uint(st.sessions.Len()))
			return s, nil
		})
		if err == nil {
			s := v.(*session.Session)
			if s.Valid() {
				return s, nil
			}
			err = lazyresolve.NewStaleSessionError(m.ID, nil)
		}
		if !lazyresolve.IsStaleSessionError(err) || attempt == createAttempts {
			return nil, err
		}
		c.log.Debug().Str("module", m.ID).Int("attempt", attempt).Msg("dependency invalidated during session creation, retrying")
	}
}

// GetSessionNoCaching creates a fresh session of m that is not stored.
// Its dependencies still come from the cache.
func (c *Cache) GetSessionNoCaching(ctx context.Context, m *project.Module) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, binary := c.storeFor(m, false)
	return c.createSession(ctx, m, binary, false)
}

// RemoveSession invalidates and removes the sessions of m, including evicted
// ones other sessions still depend on. It returns true if a session was
// removed. Sessions depending on the removed ones are invalidated too and get
// replaced on their next request.
func (c *Cache) RemoveSession(m *project.Module) (bool, error) {
	c.write.Lock()
	defer c.write.Unlock()

	stores := []*store{c.source}
	if m.Kind.IsBinary() {
		stores = append(stores, c.binary)
	}

	var removed bool
	var result *multierror.Error
	for _, st := range stores {
		ok, err := c.remove(st, m.Key())
		removed = removed || ok
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return removed, result.ErrorOrNil()
}

// RemoveAllSessions sweeps the cache. Without includeLibraries, sessions of
// compiled modules and library sources survive.
func (c *Cache) RemoveAllSessions(includeLibraries bool) error {
	c.write.Lock()
	defer c.write.Unlock()

	if includeLibraries {
		return multierror.Append(
			c.sweep(c.source, func(*project.Module) bool { return true }),
			c.sweep(c.binary, func(*project.Module) bool { return true }),
		).ErrorOrNil()
	}
	return c.sweep(c.source, func(m *project.Module) bool {
		return !m.Kind.IsLibrary()
	}).ErrorOrNil()
}

// RemoveAllScriptSessions sweeps the sessions of scripts and their dependencies.
func (c *Cache) RemoveAllScriptSessions() error {
	c.write.Lock()
	defer c.write.Unlock()

	isScript := func(m *project.Module) bool { return m.Kind.IsScript() }
	return multierror.Append(c.sweep(c.source, isScript), c.sweep(c.binary, isScript)).ErrorOrNil()
}

// OnMemoryPressure evicts the least recently used sessions from both stores.
// Evicted sessions stay valid for their holders; the next request for their
// module creates a new session.
func (c *Cache) OnMemoryPressure(level PressureLevel) {
	c.write.Lock()
	defer c.write.Unlock()

	evicted := 0
	for _, st := range []*store{c.source, c.binary} {
		n := st.sessions.Len()
		if level < PressureCritical {
			n -= n / 2
		}
		for i := 0; i < n; i++ {
			if _, _, ok := st.sessions.RemoveOldest(); !ok {
				break
			}
			evicted++
		}
		c.metrics.CacheEntries(st.resource, uint(st.sessions.Len()))
	}

	c.log.Warn().Int("level", int(level)).Int("evicted", evicted).Msg("memory pressure, sessions evicted")
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	return c.source.sessions.Len() + c.binary.sessions.Len()
}

func (c *Cache) storeFor(m *project.Module, preferBinary bool) (*store, bool) {
	if m.Kind.IsBinary() && (preferBinary || m.Kind == project.KindSDK) {
		return c.binary, true
	}
	return c.source, false
}

// lock returns the lock of a module key. Every call must be paired with unlock.
func (c *Cache) lock(key string) *moduleLock {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &moduleLock{}
		c.locks[key] = l
	}
	l.refs++
	return l
}

// unlock releases l with release and drops it once no caller holds it.
func (c *Cache) unlock(key string, l *moduleLock, release func()) {
	release()
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
}

// remove invalidates and removes the stored and retired sessions of key under the module lock.
func (c *Cache) remove(st *store, key string) (bool, error) {
	l := c.lock(key)
	l.Lock()
	defer c.unlock(key, l, l.Unlock)

	var result *multierror.Error
	sessions := st.takeRetired(key)
	s, stored := st.sessions.Peek(key)
	if stored {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		if err := s.Invalidate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if stored {
		st.sessions.Remove(key)
	}
	if len(sessions) > 0 {
		// dependents created on an evicted session of key before it was retired
		result = multierror.Append(result, c.invalidateDependents(key))
	}
	return len(sessions) > 0, result.ErrorOrNil()
}

func (c *Cache) invalidateDependents(key string) *multierror.Error {
	var result *multierror.Error
	for _, st := range []*store{c.source, c.binary} {
		for _, k := range st.sessions.Keys() {
			s, ok := st.sessions.Peek(k)
			if !ok || !s.Valid() || !dependsOn(s, key, make(map[*session.Session]struct{})) {
				continue
			}
			if err := s.InvalidateFor(metrics.InvalidationDependency); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result
}

func dependsOn(s *session.Session, key string, visited map[*session.Session]struct{}) bool {
	for _, dep := range s.Dependencies() {
		if _, ok := visited[dep]; ok {
			continue
		}
		visited[dep] = struct{}{}
		if dep.Module().Key() == key || dependsOn(dep, key, visited) {
			return true
		}
	}
	return false
}

func (c *Cache) sweep(st *store, match func(*project.Module) bool) *multierror.Error {
	var result *multierror.Error
	for _, key := range st.keys(match) {
		if _, err := c.remove(st, key); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// createSession builds a new session of m.
// Expected errors:
//   - lazyresolve.StaleSessionError if a dependency was invalidated meanwhile
//   - the errors of the tree provider
func (c *Cache) createSession(ctx context.Context, m *project.Module, binary bool, preferBinary bool) (*session.Session, error) {
	start := time.Now()
	kind, ok := sessionKind(m, binary)
	if !ok {
		return nil, fmt.Errorf("cannot create a session for %s", m)
	}

	var deps []*session.Session
	switch m.Kind {
	case project.KindSDK, project.KindNotUnderContentRoot:
	default:
		// libraries see compiled dependencies wherever they exist
		depPreferBinary := preferBinary || m.Kind.IsLibrary() || m.Kind == project.KindScriptDependency
		for _, dep := range m.Dependencies {
			s, err := c.GetSession(ctx, dep, depPreferBinary)
			if err != nil {
				return nil, fmt.Errorf("could not get dependency %s of %s: %w", dep.ID, m.ID, err)
			}
			deps = append(deps, s)
		}
	}

	arena, err := c.trees.Tree(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("could not build tree of %s: %w", m, err)
	}
	if binary {
		arena.MarkDeserialized()
	}

	factory, ok := c.factories[project.FamilyOf(m.Platforms)]
	if !ok {
		factory = c.factories[project.FamilyCommon]
	}
	s, err := session.New(c.log, c.metrics, c.metrics, m, arena, deps, factory.rules(), c.sessionConfig)
	if err != nil {
		return nil, err
	}

	c.metrics.SessionCreated(kind, time.Since(start))
	c.log.Debug().
		Str("module", m.ID).
		Str("kind", kind).
		Str("family", factory.Family.String()).
		Int("dependencies", len(deps)).
		Msg("session created")
	return s, nil
}
