package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Ops                *prometheus.CounterVec
	Conflicts          prometheus.Counter
	Checkpoints        prometheus.Counter
	CheckpointFailures prometheus.Counter
	CheckpointDuration prometheus.Histogram
	GarbageCollected   prometheus.Counter
	TreeKeys           prometheus.Gauge
	TreeHeight         prometheus.Gauge
	ActiveTransactions prometheus.Gauge
}

// New builds the collectors and registers them with reg. A nil reg keeps
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mvbtree_ops_total",
			Help: "Commands executed, by command and reply",
		}, []string{"op", "reply"}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "mvbtree_conflicts_total",
			Help: "Writes refused because another transaction holds the key",
		}),
		Checkpoints: f.NewCounter(prometheus.CounterOpts{
			Name: "mvbtree_checkpoints_total",
		}),
		CheckpointFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mvbtree_checkpoint_failures_total",
		}),
		CheckpointDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mvbtree_checkpoint_duration_seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		GarbageCollected: f.NewCounter(prometheus.CounterOpts{
			Name: "mvbtree_gc_versions_total",
			Help: "Versions removed by garbage collection",
		}),
		TreeKeys: f.NewGauge(prometheus.GaugeOpts{
			Name: "mvbtree_tree_keys",
		}),
		TreeHeight: f.NewGauge(prometheus.GaugeOpts{
			Name: "mvbtree_tree_height",
		}),
		ActiveTransactions: f.NewGauge(prometheus.GaugeOpts{
			Name: "mvbtree_active_transactions",
		}),
	}
}
