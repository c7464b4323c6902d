package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ProviderAttemptsTotal counts tracking provider attempts by outcome.
	ProviderAttemptsTotal *prometheus.CounterVec
	// ProviderAttemptLatency records provider call latency in milliseconds.
	ProviderAttemptLatency *prometheus.HistogramVec
	// ResolutionsTotal counts chain resolutions (found/not_found).
	ResolutionsTotal *prometheus.CounterVec
	// DeliveriesTotal counts relay delivery outcomes.
	DeliveriesTotal *prometheus.CounterVec
	// SchedulerItemsTotal counts dispatched items per outcome.
	SchedulerItemsTotal *prometheus.CounterVec
	// SchedulerCyclesTotal counts finished cycles (completed/aborted/skipped).
	SchedulerCyclesTotal *prometheus.CounterVec
	// SchedulerCycleLatency records full cycle duration in milliseconds.
	SchedulerCycleLatency prometheus.Histogram
)

// MustRegisterDomainMetrics creates the tracking collectors and registers
// them on reg. Only the first call has any effect.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ProviderAttemptsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Count of tracking provider attempts by outcome.",
		}, []string{"provider", "result"}))
		ProviderAttemptLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_duration_ms",
			Help:      "Latency of tracking provider calls in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"provider"}))
		ResolutionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Count of provider chain resolutions by outcome.",
		}, []string{"result"}))
		DeliveriesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Count of report delivery outcomes.",
		}, []string{"result"}))
		SchedulerItemsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_items_total",
			Help:      "Count of scheduled items processed by outcome.",
		}, []string{"result"}))
		SchedulerCyclesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "Count of scheduler cycles by outcome.",
		}, []string{"result"}))
		SchedulerCycleLatency = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_cycle_duration_ms",
			Help:      "Duration of scheduler cycles in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 8),
		}))
	})
}
