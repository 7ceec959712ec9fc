// Package metrics provides performance tracking for the pooling runtime
// using Prometheus metrics. It exposes counters and gauges for acquisition,
// return, and instance lifecycle events.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("bullet")
//	collector.RecordAcquire("reserve")
//	collector.RecordReturn("recycled")
//	collector.SetCounts(active, reserve)
//
// Counters are labeled by pool so that one process running many pools can be
// broken down per prototype.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acquisitions tracks instance acquisitions per pool.
	// Labels: pool, source (reserve/new)
	Acquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_acquisitions_total",
			Help: "Total number of instance acquisitions",
		},
		[]string{"pool", "source"},
	)

	// Returns tracks instance returns per pool.
	// Labels: pool, outcome (recycled/double_return/destroyed/rejected)
	Returns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_returns_total",
			Help: "Total number of instance returns",
		},
		[]string{"pool", "outcome"},
	)

	// InstancesCreated tracks instances instantiated from prototypes.
	InstancesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_instances_created_total",
			Help: "Total number of instances cloned from prototypes",
		},
		[]string{"pool"},
	)

	// InstancesDestroyed tracks instances handed back to the host for teardown.
	InstancesDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_instances_destroyed_total",
			Help: "Total number of instances destroyed",
		},
		[]string{"pool"},
	)

	// Instances tracks the current active/reserve partition per pool.
	Instances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prefabpool_instances",
			Help: "Current number of instances by state",
		},
		[]string{"pool", "state"},
	)

	// StructuralDrift tracks detected component-set mutations on pooled clones.
	StructuralDrift = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_structural_drift_total",
			Help: "Detected component count mismatches on pooled instances",
		},
		[]string{"pool"},
	)
)

// Collector provides a per-pool recording interface over the shared metric
// vectors. Each pool creates its own collector labeled with the pool name.
type Collector struct {
	pool      string
	startTime time.Time
}

// NewCollector creates a metrics collector for one pool.
func NewCollector(pool string) *Collector {
	return &Collector{
		pool:      pool,
		startTime: time.Now(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordAcquire records an acquisition. Source is "reserve" when an instance
// was recycled and "new" when one had to be created.
func (c *Collector) RecordAcquire(source string) {
	Acquisitions.WithLabelValues(c.pool, source).Inc()
}

// RecordReturn records a return with its outcome.
func (c *Collector) RecordReturn(outcome string) {
	Returns.WithLabelValues(c.pool, outcome).Inc()
}

// RecordCreated records an instance cloned from the prototype.
func (c *Collector) RecordCreated() {
	InstancesCreated.WithLabelValues(c.pool).Inc()
}

// RecordDestroyed records an instance destroyed by the host.
func (c *Collector) RecordDestroyed() {
	InstancesDestroyed.WithLabelValues(c.pool).Inc()
}

// RecordDrift records a structural drift detection.
func (c *Collector) RecordDrift() {
	StructuralDrift.WithLabelValues(c.pool).Inc()
}

// SetCounts updates the active/reserve gauges.
func (c *Collector) SetCounts(active, reserve int) {
	Instances.WithLabelValues(c.pool, "active").Set(float64(active))
	Instances.WithLabelValues(c.pool, "reserve").Set(float64(reserve))
}
