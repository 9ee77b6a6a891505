// Package metrics instruments the workflow runner: how many executors are
// concurrently active, how long each superstep takes, how checkpoint saves
// are going, and how often a run fails to converge.
package metrics

import "time"

// Metrics is the collector interface the runner drives. Implementations
// must be safe for concurrent use: executor start/finish calls happen
// from multiple goroutines within a single superstep.
type Metrics interface {
	// ExecutorStarted records that executorID began handling a message
	// for workflowID.
	ExecutorStarted(workflowID, executorID string)

	// ExecutorFinished records that executorID stopped handling a
	// message (success or failure) for workflowID.
	ExecutorFinished(workflowID, executorID string)

	// ObserveSuperstepLatency records how long one superstep took to
	// deliver every currently-buffered message.
	ObserveSuperstepLatency(workflowID string, iteration int, d time.Duration)

	// IncrementCheckpointOps records one checkpoint save attempt,
	// labeled by outcome ("success" or "error").
	IncrementCheckpointOps(workflowID, outcome string)

	// IncrementConvergenceFailures records a run that hit its
	// iteration cap with messages still outstanding.
	IncrementConvergenceFailures(workflowID string)
}
