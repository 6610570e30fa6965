package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/lazyres/module"
)

type ResolutionCollector struct {
	resolved        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	alreadyResolved *prometheus.CounterVec
	failed          *prometheus.CounterVec
	restored        *prometheus.CounterVec
	lockContended   prometheus.Counter
	lockCycles      prometheus.Counter
}

var _ module.ResolutionMetrics = (*ResolutionCollector)(nil)

func NewResolutionCollector(registrar prometheus.Registerer) *ResolutionCollector {
	rc := &ResolutionCollector{
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemResolver,
			Name:      "phase_transformations_total",
			Help:      "the number of phase transformer executions",
		}, []string{LabelPhase, LabelKind}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemResolver,
			Name:      "phase_transformation_duration_seconds",
			Help:      "the time spent resolving one node to a phase under its lock",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{LabelPhase}),

		alreadyResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemResolver,
			Name:      "already_resolved_total",
			Help:      "the number of requests that found the node at the requested phase",
		}, []string{LabelPhase}),

		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemResolver,
			Name:      "resolution_failures_total",
			Help:      "the number of failed resolution attempts",
		}, []string{LabelPhase, LabelReason}),

		restored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemResolver,
			Name:      "state_restorations_total",
			Help:      "the number of state keeper snapshots restored",
		}, []string{LabelPhase}),

		lockContended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemLocks,
			Name:      "contended_total",
			Help:      "the number of lock requests that had to wait for another task",
		}),

		lockCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLazyres,
			Subsystem: subsystemLocks,
			Name:      "cycles_total",
			Help:      "the number of lock requests refused because they would have deadlocked",
		}),
	}

	registrar.MustRegister(
		rc.resolved,
		rc.duration,
		rc.alreadyResolved,
		rc.failed,
		rc.restored,
		rc.lockContended,
		rc.lockCycles,
	)

	return rc
}

func (rc *ResolutionCollector) PhaseResolved(phase string, kind string, duration time.Duration) {
	rc.resolved.With(prometheus.Labels{LabelPhase: phase, LabelKind: kind}).Inc()
	rc.duration.With(prometheus.Labels{LabelPhase: phase}).Observe(duration.Seconds())
}

func (rc *ResolutionCollector) PhaseAlreadyResolved(phase string) {
	rc.alreadyResolved.With(prometheus.Labels{LabelPhase: phase}).Inc()
}

func (rc *ResolutionCollector) ResolutionFailed(phase string, reason string) {
	rc.failed.With(prometheus.Labels{LabelPhase: phase, LabelReason: reason}).Inc()
}

func (rc *ResolutionCollector) StateRestored(phase string) {
	rc.restored.With(prometheus.Labels{LabelPhase: phase}).Inc()
}

func (rc *ResolutionCollector) LockContended() {
	rc.lockContended.Inc()
}

func (rc *ResolutionCollector) LockCycleDetected() {
	rc.lockCycles.Inc()
}
