package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors live on the default registry; both processes expose it
// alongside their own registry.
var (
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit state per delivery target: 0 closed, 1 open, 2 half-open.",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Circuit state changes per delivery target.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "breaker",
		Name:      "opened_total",
		Help:      "Times a delivery target circuit tripped open.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
