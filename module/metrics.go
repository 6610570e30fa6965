package module

import (
	"time"
)

// CacheMetrics tracks the cache behaviour of a named resource.
type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheNotFound records the number of times the queried item could not be produced at all.
	CacheNotFound(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache, and had to be created.
	CacheMiss(resource string)
}

// LockMetrics tracks the advance locks of declaration nodes.
type LockMetrics interface {
	// LockContended is called when a lock is requested while another task holds it.
	LockContended()
	// LockCycleDetected is called when granting a lock would have deadlocked.
	LockCycleDetected()
}

// ResolutionMetrics tracks the work of the phase resolvers.
type ResolutionMetrics interface {
	LockMetrics

	// PhaseResolved reports one execution of a phase transformer on a node of the given kind.
	PhaseResolved(phase string, kind string, duration time.Duration)
	// PhaseAlreadyResolved is called when a request found the node at the phase already.
	PhaseAlreadyResolved(phase string)
	// ResolutionFailed reports a failed resolution attempt, reason is the error class.
	ResolutionFailed(phase string, reason string)
	// StateRestored is called whenever a state keeper snapshot is restored.
	StateRestored(phase string)
}

// SessionCacheMetrics tracks the session cache.
type SessionCacheMetrics interface {
	CacheMetrics

	// SessionCreated reports the creation of a session for a module of the given kind.
	SessionCreated(kind string, duration time.Duration)
	// SessionInvalidated reports a session invalidation, reason tells what triggered it.
	SessionInvalidated(reason string)
}
