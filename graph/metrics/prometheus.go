package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible instrumentation of
// workflow execution.
//
// Metrics exposed (namespaced "workflow_"):
//
//  1. active_executors (gauge): executors currently handling a message.
//     Labels: workflow_id.
//  2. superstep_latency_ms (histogram): time to deliver every message
//     buffered at the start of one superstep. Labels: workflow_id.
//     Buckets: [1, 5, 10, 50, 100, 500, 1000, 5000, 10000].
//  3. checkpoint_ops_total (counter): checkpoint save attempts. Labels:
//     workflow_id, outcome (success/error).
//  4. convergence_failures_total (counter): runs that hit their
//     iteration cap with messages still outstanding. Labels: workflow_id.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	m := metrics.NewPrometheusMetrics(registry)
//	wf, _, _ := graph.NewWorkflowBuilder("id").
//	    ...
//	    Build(graph.WithMetrics(m))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	activeExecutors *prometheus.GaugeVec
	superstepLatency *prometheus.HistogramVec
	checkpointOps    *prometheus.CounterVec
	convergenceFails *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers every workflow metric against
// registry. Pass prometheus.DefaultRegisterer for the global registry, or a
// fresh prometheus.NewRegistry() for test isolation.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		activeExecutors: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "workflow",
			Name:      "active_executors",
			Help:      "Executors currently handling a message within a superstep",
		}, []string{"workflow_id"}),
		superstepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "superstep_latency_ms",
			Help:      "Duration of one superstep's message delivery in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"workflow_id"}),
		checkpointOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "checkpoint_ops_total",
			Help:      "Checkpoint save attempts, labeled by outcome",
		}, []string{"workflow_id", "outcome"}),
		convergenceFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "convergence_failures_total",
			Help:      "Runs that hit their iteration cap with messages still outstanding",
		}, []string{"workflow_id"}),
	}
}

func (pm *PrometheusMetrics) ExecutorStarted(workflowID, executorID string) {
	if !pm.isEnabled() {
		return
	}
	pm.activeExecutors.WithLabelValues(workflowID).Inc()
}

func (pm *PrometheusMetrics) ExecutorFinished(workflowID, executorID string) {
	if !pm.isEnabled() {
		return
	}
	pm.activeExecutors.WithLabelValues(workflowID).Dec()
}

func (pm *PrometheusMetrics) ObserveSuperstepLatency(workflowID string, iteration int, d time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.superstepLatency.WithLabelValues(workflowID).Observe(float64(d.Milliseconds()))
}

func (pm *PrometheusMetrics) IncrementCheckpointOps(workflowID, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.checkpointOps.WithLabelValues(workflowID, outcome).Inc()
}

func (pm *PrometheusMetrics) IncrementConvergenceFailures(workflowID string) {
	if !pm.isEnabled() {
		return
	}
	pm.convergenceFails.WithLabelValues(workflowID).Inc()
}

// Disable stops recording without unregistering the collectors, useful in
// tests that want to exercise the disabled path.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}
