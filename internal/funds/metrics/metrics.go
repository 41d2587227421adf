package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the fund pool counters. Gauges mirror the pool's
// authoritative state; the conservation invariant makes them safe to
// export directly.
type Metrics struct {
	PoolTotal          prometheus.Gauge
	PoolDisbursed      prometheus.Gauge
	FundsAddedTotal    prometheus.Counter
	DisbursementsTotal prometheus.Counter
}

// New creates and registers all fund pool metrics.
func New() *Metrics {
	return &Metrics{
		PoolTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subsidyledger_pool_total",
			Help: "Total capital in the fund pool, minor units",
		}),
		PoolDisbursed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subsidyledger_pool_disbursed",
			Help: "Total disbursed from the fund pool, minor units",
		}),
		FundsAddedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subsidyledger_funds_added_total",
			Help: "Number of fund additions",
		}),
		DisbursementsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subsidyledger_disbursements_total",
			Help: "Number of successful milestone disbursements",
		}),
	}
}
