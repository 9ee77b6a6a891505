package graph

import "errors"

// Sentinel errors for the runtime. Validation errors are returned as
// *ValidationError/*ValidationWarning values instead of sentinels, since
// the builder needs to report many of them at once (see validator.go).
var (
	// ErrDispatchNoHandler indicates an executor has no handler matching a
	// delivered payload's runtime type. Fatal; surfaces via DispatchError.
	ErrDispatchNoHandler = errors.New("workflow: no matching handler for payload")

	// ErrNoConvergence indicates the superstep runner exceeded its
	// iteration cap while messages remained pending (spec.md §7).
	ErrNoConvergence = errors.New("workflow: exceeded max iterations without convergence")

	// ErrSelectionOutOfRange indicates a FanOut selector returned a target
	// id outside the edge group's declared targets (spec.md §4.3, §7).
	ErrSelectionOutOfRange = errors.New("workflow: selector returned target outside declared set")

	// ErrUnknownRequest indicates RequestInfoExecutor.HandleResponse was
	// called with a request id that was never recorded, or was already
	// consumed (spec.md §4.2).
	ErrUnknownRequest = errors.New("workflow: response for unknown request id")

	// ErrNestedHold indicates a caller invoked SharedState.Hold while
	// already inside a Hold call on the same context — disallowed per
	// spec.md §9's re-architecture note to prevent deadlock.
	ErrNestedHold = errors.New("workflow: nested SharedState.Hold from the same context")

	// ErrAlreadyRunning indicates a Workflow.Run/RunStreaming call was made
	// while a prior run on the same instance is still in flight (spec.md
	// §5: "re-runnable but not concurrently runnable").
	ErrAlreadyRunning = errors.New("workflow: run already in progress")

	// ErrCheckpointRestore indicates a checkpoint failed to load during an
	// explicit resume request. Unlike ordinary checkpoint save/load
	// failures (logged as warnings), a restore failure is terminal.
	ErrCheckpointRestore = errors.New("workflow: checkpoint restore failed")

	// ErrCheckpointNotFound indicates the requested checkpoint id does not
	// exist in the given storage backend.
	ErrCheckpointNotFound = errors.New("workflow: checkpoint not found")

	// ErrDuplicateCompletion indicates a second attempt to emit
	// WorkflowCompleted within a single run (spec.md §9 Open Question #3:
	// single-emission is enforced by RunnerContext.AddEvent, which replaces
	// a second WorkflowCompleted with WorkflowFailed).
	ErrDuplicateCompletion = errors.New("workflow: WorkflowCompleted already emitted for this run")
)

// ValidationErrorKind classifies a fatal build-time validation failure.
type ValidationErrorKind int

const (
	EdgeDuplication ValidationErrorKind = iota
	TypeIncompatible
	Unreachable
	Isolated
	MissingStart
)

func (k ValidationErrorKind) String() string {
	switch k {
	case EdgeDuplication:
		return "EDGE_DUPLICATION"
	case TypeIncompatible:
		return "TYPE_INCOMPATIBLE"
	case Unreachable:
		return "UNREACHABLE"
	case Isolated:
		return "ISOLATED"
	case MissingStart:
		return "MISSING_START"
	default:
		return "UNKNOWN"
	}
}

// ValidationError is a fatal diagnostic produced by WorkflowBuilder.Build.
type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func (e *ValidationError) Error() string { return e.Kind.String() + ": " + e.Message }

// ValidationWarning is a non-fatal diagnostic produced by
// WorkflowBuilder.Build (self-loops, handler ambiguity, dead-ends, cycles —
// spec.md §4.7 explicitly keeps these as warnings, never errors).
type ValidationWarning struct {
	Message string
}

func (w *ValidationWarning) Error() string { return w.Message }

// BuildError aggregates every fatal ValidationError found during Build; the
// accompanying Warnings are informational only and do not prevent the
// workflow from being constructed successfully when Errors is empty.
type BuildError struct {
	Errors   []*ValidationError
	Warnings []*ValidationWarning
}

func (e *BuildError) Error() string {
	if len(e.Errors) == 0 {
		return "workflow: build failed"
	}
	msg := e.Errors[0].Error()
	if len(e.Errors) > 1 {
		msg += " (+additional validation errors)"
	}
	return msg
}

// DispatchError wraps a dispatch failure with the executor id it occurred
// on, matching spec.md §7's DISPATCH error kind.
type DispatchError struct {
	ExecutorID string
	Err        error
}

func (e *DispatchError) Error() string {
	return "dispatch error at " + e.ExecutorID + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ConvergenceError wraps ErrNoConvergence with the iteration count reached.
type ConvergenceError struct {
	Iterations int
}

func (e *ConvergenceError) Error() string { return ErrNoConvergence.Error() }

func (e *ConvergenceError) Unwrap() error { return ErrNoConvergence }
