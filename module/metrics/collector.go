package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/lazyres/module"
)

// Collector reports the resolution metrics and the session cache metrics of one process.
type Collector struct {
	*ResolutionCollector
	*SessionCacheCollector
}

var _ module.ResolutionMetrics = (*Collector)(nil)
var _ module.SessionCacheMetrics = (*Collector)(nil)

func NewCollector(registrar prometheus.Registerer) *Collector {
	return &Collector{
		ResolutionCollector:   NewResolutionCollector(registrar),
		SessionCacheCollector: NewSessionCacheCollector(registrar),
	}
}
