package graph

// WorkflowRunState is the observable run-state surfaced via WorkflowStatus
// events, grounded on the original `WorkflowRunState` enum's documented
// per-state semantics.
type WorkflowRunState int

const (
	// StateStarted: the run has begun but no superstep has executed yet.
	StateStarted WorkflowRunState = iota
	// StateInProgress: at least one superstep is executing or pending.
	StateInProgress
	// StateInProgressPendingRequests: in progress, and one or more
	// RequestInfo events are outstanding.
	StateInProgressPendingRequests
	// StateIdle: quiescent, no pending messages or requests.
	StateIdle
	// StateIdleWithPendingRequests: quiescent except for outstanding
	// RequestInfo events awaiting a response.
	StateIdleWithPendingRequests
	// StateCompleted: WorkflowCompleted has been emitted.
	StateCompleted
	// StateFailed: WorkflowFailed has been emitted.
	StateFailed
	// StateCancelled: the caller abandoned the run.
	StateCancelled
)

func (s WorkflowRunState) String() string {
	switch s {
	case StateStarted:
		return "STARTED"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateInProgressPendingRequests:
		return "IN_PROGRESS_PENDING_REQUESTS"
	case StateIdle:
		return "IDLE"
	case StateIdleWithPendingRequests:
		return "IDLE_WITH_PENDING_REQUESTS"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// WorkflowErrorDetails is the structured error record carried by
// ExecutorFailed/WorkflowFailed events (spec.md §7).
type WorkflowErrorDetails struct {
	Type       string
	Message    string
	Trace      string
	ExecutorID string
}

// NewWorkflowErrorDetails builds a WorkflowErrorDetails from a Go error.
func NewWorkflowErrorDetails(executorID string, err error) WorkflowErrorDetails {
	return WorkflowErrorDetails{
		Type:       errorTypeName(err),
		Message:    err.Error(),
		ExecutorID: executorID,
	}
}

func errorTypeName(err error) string {
	switch err.(type) {
	case *DispatchError:
		return "DISPATCH"
	case *ConvergenceError:
		return "NO_CONVERGENCE"
	default:
		return "HANDLER"
	}
}

// EventKind discriminates the tagged WorkflowEvent variants of spec.md §6.
type EventKind int

const (
	EventWorkflowStarted EventKind = iota
	EventWorkflowStatus
	EventExecutorInvoke
	EventExecutorCompleted
	EventExecutorFailed
	EventAgentRun
	EventAgentRunUpdate
	EventRequestInfo
	EventWorkflowCompleted
	EventWorkflowFailed
	EventWorkflowWarning
)

// WorkflowEvent is the single tagged-union type for every event the runner
// yields to the caller; unused fields for a given Kind are zero.
type WorkflowEvent struct {
	Kind EventKind

	ExecutorID string
	State      WorkflowRunState
	Error      *WorkflowErrorDetails

	RequestID        string
	SourceExecutorID string
	PayloadTypeTag   string
	Payload          any

	Output any

	AgentResponse any
	AgentUpdate   any

	Message string
}

func WorkflowStarted() WorkflowEvent { return WorkflowEvent{Kind: EventWorkflowStarted} }

func WorkflowStatus(state WorkflowRunState) WorkflowEvent {
	return WorkflowEvent{Kind: EventWorkflowStatus, State: state}
}

func ExecutorInvoke(id string) WorkflowEvent {
	return WorkflowEvent{Kind: EventExecutorInvoke, ExecutorID: id}
}

func ExecutorCompleted(id string) WorkflowEvent {
	return WorkflowEvent{Kind: EventExecutorCompleted, ExecutorID: id}
}

func ExecutorFailed(id string, details WorkflowErrorDetails) WorkflowEvent {
	return WorkflowEvent{Kind: EventExecutorFailed, ExecutorID: id, Error: &details}
}

func AgentRun(id string, response any) WorkflowEvent {
	return WorkflowEvent{Kind: EventAgentRun, ExecutorID: id, AgentResponse: response}
}

func AgentRunUpdate(id string, update any) WorkflowEvent {
	return WorkflowEvent{Kind: EventAgentRunUpdate, ExecutorID: id, AgentUpdate: update}
}

func RequestInfo(requestID, sourceID, typeTag string, payload any) WorkflowEvent {
	return WorkflowEvent{
		Kind:             EventRequestInfo,
		RequestID:        requestID,
		SourceExecutorID: sourceID,
		PayloadTypeTag:   typeTag,
		Payload:          payload,
	}
}

func WorkflowCompleted(output any) WorkflowEvent {
	return WorkflowEvent{Kind: EventWorkflowCompleted, Output: output}
}

func WorkflowFailed(details WorkflowErrorDetails) WorkflowEvent {
	return WorkflowEvent{Kind: EventWorkflowFailed, Error: &details}
}

func WorkflowWarning(msg string) WorkflowEvent {
	return WorkflowEvent{Kind: EventWorkflowWarning, Message: msg}
}
