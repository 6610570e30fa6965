package metrics

import (
	"time"

	"github.com/onflow/lazyres/module"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

var _ module.ResolutionMetrics = (*NoopCollector)(nil)
var _ module.SessionCacheMetrics = (*NoopCollector)(nil)

func (nc *NoopCollector) CacheEntries(resource string, entries uint)                     {}
func (nc *NoopCollector) CacheHit(resource string)                                       {}
func (nc *NoopCollector) CacheNotFound(resource string)                                  {}
func (nc *NoopCollector) CacheMiss(resource string)                                      {}
func (nc *NoopCollector) LockContended()                                                 {}
func (nc *NoopCollector) LockCycleDetected()                                             {}
func (nc *NoopCollector) PhaseResolved(phase string, kind string, duration time.Duration) {}
func (nc *NoopCollector) PhaseAlreadyResolved(phase string)                              {}
func (nc *NoopCollector) ResolutionFailed(phase string, reason string)                   {}
func (nc *NoopCollector) StateRestored(phase string)                                     {}
func (nc *NoopCollector) SessionCreated(kind string, duration time.Duration)             {}
func (nc *NoopCollector) SessionInvalidated(reason string)                               {}
