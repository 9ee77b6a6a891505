package metrics

import "time"

// NullMetrics implements Metrics by discarding every observation. It is
// the runner's default collector so instrumentation is opt-in.
type NullMetrics struct{}

// NewNullMetrics returns a Metrics that does nothing, at zero cost.
func NewNullMetrics() *NullMetrics { return &NullMetrics{} }

func (NullMetrics) ExecutorStarted(workflowID, executorID string)  {}
func (NullMetrics) ExecutorFinished(workflowID, executorID string) {}
func (NullMetrics) ObserveSuperstepLatency(workflowID string, iteration int, d time.Duration) {
}
func (NullMetrics) IncrementCheckpointOps(workflowID, outcome string) {}
func (NullMetrics) IncrementConvergenceFailures(workflowID string)    {}
