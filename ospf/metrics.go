package ospf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SPFRuns         *prometheus.CounterVec
	SPFDuration     prometheus.Histogram
	RoutesInstalled prometheus.Gauge
	LSDBSize        *prometheus.GaugeVec
	Recomputations  prometheus.Counter
}

// NewMetrics registers the route manager's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SPFRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "globalrouting",
			Subsystem: "spf",
			Name:      "runs_total",
			Help:      "Number of shortest path calculations, by result.",
		}, []string{"result"}),
		SPFDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "globalrouting",
			Subsystem: "spf",
			Name:      "duration_seconds",
			Help:      "Time spent computing a single shortest path tree.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		RoutesInstalled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "globalrouting",
			Subsystem: "rib",
			Name:      "routes_installed",
			Help:      "Routes installed by the most recent population pass.",
		}),
		LSDBSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "globalrouting",
			Subsystem: "lsdb",
			Name:      "lsas",
			Help:      "LSAs in the link state database, by type.",
		}, []string{"type"}),
		Recomputations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "globalrouting",
			Name:      "recomputations_total",
			Help:      "Number of full route recomputations.",
		}),
	}
}
