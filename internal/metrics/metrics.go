// Package metrics exposes Prometheus instrumentation for the core
// wallet and task-progression operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one server instance.
type Metrics struct {
	TasksCompleted   *prometheus.CounterVec
	RewardAmount     prometheus.Histogram
	Withdrawals      *prometheus.CounterVec
	VersionConflicts prometheus.Counter
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onetravel",
			Name:      "tasks_completed_total",
			Help:      "Completed booking tasks, partitioned by premium status.",
		}, []string{"premium"}),
		RewardAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "onetravel",
			Name:      "task_reward_amount",
			Help:      "Generated reward amounts per completed task.",
			Buckets:   prometheus.LinearBuckets(30, 5, 8),
		}),
		Withdrawals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onetravel",
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests, partitioned by outcome.",
		}, []string{"outcome"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "onetravel",
			Name:      "wallet_version_conflicts_total",
			Help:      "Optimistic-lock conflicts on wallet saves that triggered a retry.",
		}),
	}
}
