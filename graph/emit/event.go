package emit

// Event represents an internal diagnostic event emitted during workflow
// execution. It is distinct from the caller-facing WorkflowEvent stream:
// this is ambient logging/tracing plumbing, not part of the workflow's
// public result.
//
// Events provide detailed insight into runner behavior:
//   - Executor invocation start/complete
//   - Superstep boundaries
//   - Errors and warnings
//   - Performance metrics
//   - Checkpoint operations
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr
//   - Send to OpenTelemetry
//   - Store in time-series databases
//   - Trigger alerts
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential superstep number (1-indexed).
	// Zero for workflow-level events (start, complete, error).
	Step int

	// ExecutorID identifies which executor emitted this event.
	// Empty string for workflow-level events.
	ExecutorID string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	//   - "tokens": Token count for LLM calls
	//   - "checkpoint_id": Checkpoint identifier
	//   - "retryable": Whether an error can be retried
	Meta map[string]interface{}
}
