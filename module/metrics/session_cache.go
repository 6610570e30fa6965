package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/lazyres/module"
)

type SessionCacheCollector struct {
	entries     *prometheus.GaugeVec
	hits        *prometheus.CounterVec
	notFound    *prometheus.CounterVec
	misses      *prometheus.CounterVec
	created     *prometheus.CounterVec
	creation    prometheus.Histogram
	invalidated *prometheus.CounterVec
}

var _ module.SessionCacheMetrics = (*SessionCacheCollector)(nil)

func NewSessionCacheCollector(registrar prometheus.Registerer) *SessionCacheCollector {
	sc := &SessionCacheCollector{
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "entries_total",
			Help:      "the number of entries in the cache",
		}, []string{LabelResource}),

		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "hits_total",
			Help:      "the number of lookups served from the cache",
		}, []string{LabelResource}),

		notFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "notfound_total",
			Help:      "the number of lookups that could not produce an entry",
		}, []string{LabelResource}),

		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "misses_total",
			Help:      "the number of lookups that had to create the entry",
		}, []string{LabelResource}),

		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "sessions_created_total",
			Help:      "the number of sessions created, by module kind",
		}, []string{LabelKind}),

		creation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "session_creation_duration_seconds",
			Help:      "the time spent creating a session",
			Buckets:   prometheus.DefBuckets,
		}),

		invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemSessionCache,
			Name:      "sessions_invalidated_total",
			Help:      "the number of sessions invalidated, by trigger",
		}, []string{LabelReason}),
	}

	registrar.MustRegister(
		sc.entries,
		sc.hits,
		sc.notFound,
		sc.misses,
		sc.created,
		sc.creation,
		sc.invalidated,
	)

	return sc
}

func (sc *SessionCacheCollector) CacheEntries(resource string, entries uint) {
	sc.entries.With(prometheus.Labels{LabelResource: resource}).Set(float64(entries))
}

func (sc *SessionCacheCollector) CacheHit(resource string) {
	sc.hits.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (sc *SessionCacheCollector) CacheNotFound(resource string) {
	sc.notFound.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (sc *SessionCacheCollector) CacheMiss(resource string) {
	sc.misses.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (sc *SessionCacheCollector) SessionCreated(kind string, duration time.Duration) {
	sc.created.With(prometheus.Labels{LabelKind: kind}).Inc()
	sc.creation.Observe(duration.Seconds())
}

func (sc *SessionCacheCollector) SessionInvalidated(reason string) {
	sc.invalidated.With(prometheus.Labels{LabelReason: reason}).Inc()
}
