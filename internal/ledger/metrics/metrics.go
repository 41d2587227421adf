package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes ledger state-machine counters.
type Metrics struct {
	ProjectsRegistered  prometheus.Counter
	MilestonesAdded     prometheus.Counter
	MilestonesVerified  *prometheus.CounterVec
	PaymentsFailed      *prometheus.CounterVec
	ProjectsCompleted   prometheus.Counter
	ExpiredPendingCount prometheus.Gauge
}

// New creates and registers all ledger metrics.
func New() *Metrics {
	return &Metrics{
		ProjectsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subsidyledger_projects_registered_total",
			Help: "Number of registered projects",
		}),
		MilestonesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subsidyledger_milestones_added_total",
			Help: "Number of milestones added across all projects",
		}),
		MilestonesVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subsidyledger_milestones_verified_total",
			Help: "Milestone verification verdicts by outcome",
		}, []string{"outcome"}),
		PaymentsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subsidyledger_payments_failed_total",
			Help: "Failed disbursement attempts by reason",
		}, []string{"reason"}),
		ProjectsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subsidyledger_projects_completed_total",
			Help: "Projects that reached completed via settlement of all milestones",
		}),
		ExpiredPendingCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subsidyledger_expired_pending_milestones",
			Help: "Pending milestones whose deadline has passed, as of the last sweep",
		}),
	}
}
