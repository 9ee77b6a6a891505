package graph

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/agentflow-dev/workflow/graph/emit"
)

// Workflow is the built, immutable graph together with everything a run
// needs: its executor set, superstep Runner, checkpoint storage, and
// ambient diagnostics (spec.md §4.5). A Workflow is re-runnable but not
// concurrently runnable on the same instance (spec.md §5).
type Workflow struct {
	id              string
	executors       map[string]Executor
	edgeGroups      []EdgeGroup
	startExecutorID string
	runner          *Runner
	maxIterations   int
	storage         CheckpointStorage
	requestInfo     *RequestInfoExecutor
	config          *workflowConfig

	running atomic.Bool

	mu              sync.Mutex
	lastSharedState map[string]any
}

// ID returns the workflow's identifier, used to label checkpoints.
func (w *Workflow) ID() string { return w.id }

// StartExecutorID returns the id of the executor that receives a run's
// initial message, used by graph/viz to render the graph's entry point.
func (w *Workflow) StartExecutorID() string { return w.startExecutorID }

// ExecutorIDs returns every executor id in the workflow, in no particular
// order.
func (w *Workflow) ExecutorIDs() []string {
	ids := make([]string, 0, len(w.executors))
	for id := range w.executors {
		ids = append(ids, id)
	}
	return ids
}

// EdgeGroups returns the workflow's immutable edge-group set, used by
// graph/viz to render routing structure.
func (w *Workflow) EdgeGroups() []EdgeGroup {
	return append([]EdgeGroup{}, w.edgeGroups...)
}

// LastSharedState returns a snapshot of SharedState as it stood at the end
// of the most recently completed Run/RunStreaming/RunFromCheckpoint call.
// It is primarily a testing and diagnostic seam; ordinary executors should
// read shared state through HandlerContext instead.
func (w *Workflow) LastSharedState() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSharedState
}

func (w *Workflow) captureSharedState(rc RunnerContext) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSharedState = rc.SharedState().Snapshot()
}

func (w *Workflow) newRunnerContext() RunnerContext {
	rc := NewRunnerContext(w.maxIterations, w.storage)
	rc.SetWorkflowID(w.id)
	if w.config != nil && w.config.metrics != nil {
		rc.SetMetrics(w.config.metrics)
	}
	return rc
}

func (w *Workflow) enter() error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	return nil
}

func (w *Workflow) exit() { w.running.Store(false) }

// Run starts a fresh execution with initialPayload delivered to the start
// executor, and returns the accumulated event stream once the run reaches
// quiescence, a suspension point, or a terminal failure.
func (w *Workflow) Run(ctx context.Context, initialPayload any) ([]WorkflowEvent, error) {
	events := make(chan WorkflowEvent, 256)
	var collected []WorkflowEvent
	done := make(chan struct{})
	go func() {
		for ev := range events {
			collected = append(collected, ev)
		}
		close(done)
	}()

	err := w.runStreaming(ctx, initialPayload, false, events)
	<-done
	return collected, err
}

// RunStreaming behaves like Run but delivers events as they are produced on
// the returned channel, which is closed when the run stops advancing.
func (w *Workflow) RunStreaming(ctx context.Context, initialPayload any) (<-chan WorkflowEvent, <-chan error) {
	events := make(chan WorkflowEvent, 256)
	errc := make(chan error, 1)
	go func() {
		errc <- w.runStreaming(ctx, initialPayload, true, events)
	}()
	return events, errc
}

func (w *Workflow) runStreaming(ctx context.Context, initialPayload any, streaming bool, events chan<- WorkflowEvent) error {
	if err := w.enter(); err != nil {
		close(events)
		return err
	}
	defer w.exit()

	rc := w.newRunnerContext()
	rc.SetStreaming(streaming)
	return w.execute(ctx, rc, func() { w.runner.Seed(rc, initialPayload) }, events)
}

// execute is the shared tail of every entry point: reset, optional seed,
// drive the runner to quiescence, and drain the event buffer onto events.
func (w *Workflow) execute(ctx context.Context, rc RunnerContext, seed func(), events chan<- WorkflowEvent) error {
	defer close(events)

	rc.Reset()
	rc.AddEvent(WorkflowStarted())
	if seed != nil {
		seed()
	}
	w.flush(rc, events)

	result, err := w.runner.RunToQuiescence(ctx, rc, w.id, false)
	w.flush(rc, events)
	w.captureSharedState(rc)

	state := w.runner.RunState(result.converged)
	terminal := WorkflowEvent{Kind: EventWorkflowStatus, State: state}

	if err != nil {
		details := NewWorkflowErrorDetails("", err)
		terminal = WorkflowFailed(details)
		rc.AddEvent(terminal)
		w.flush(rc, events)
		return err
	}

	if state == StateIdle {
		rc.AddEvent(WorkflowCompleted(nil))
	} else {
		rc.AddEvent(terminal)
	}
	w.flush(rc, events)
	return nil
}

func (w *Workflow) flush(rc RunnerContext, events chan<- WorkflowEvent) {
	for _, ev := range rc.DrainEvents() {
		w.emit(ev)
		events <- ev
	}
}

func (w *Workflow) emit(ev WorkflowEvent) {
	if w.config == nil || w.config.emitter == nil {
		return
	}
	w.config.emitter.Emit(emit.Event{
		RunID:      w.id,
		ExecutorID: ev.ExecutorID,
		Msg:        eventKindName(ev.Kind),
	})
}

func eventKindName(k EventKind) string {
	switch k {
	case EventWorkflowStarted:
		return "workflow_started"
	case EventWorkflowStatus:
		return "workflow_status"
	case EventExecutorInvoke:
		return "executor_invoke"
	case EventExecutorCompleted:
		return "executor_completed"
	case EventExecutorFailed:
		return "executor_failed"
	case EventAgentRun:
		return "agent_run"
	case EventAgentRunUpdate:
		return "agent_run_update"
	case EventRequestInfo:
		return "request_info"
	case EventWorkflowCompleted:
		return "workflow_completed"
	case EventWorkflowFailed:
		return "workflow_failed"
	case EventWorkflowWarning:
		return "workflow_warning"
	default:
		return "unknown"
	}
}

// SendResponses resumes a suspended run by injecting one or more
// RequestInfo responses, keyed by request id, and re-driving the runner to
// quiescence (spec.md §4.2). Each call runs on a fresh RunnerContext; only
// the RequestInfoExecutor's pending-request registry carries over from the
// suspended run. SendResponses is only meaningful after a prior
// Run/RunStreaming call left the workflow idle with pending requests, which
// this package models as resuming with a fresh initial seed of the
// responses instead of the original payload.
func (w *Workflow) SendResponses(ctx context.Context, responses map[string]any) ([]WorkflowEvent, error) {
	if w.requestInfo == nil {
		return nil, ErrUnknownRequest
	}
	events := make(chan WorkflowEvent, 256)
	var collected []WorkflowEvent
	done := make(chan struct{})
	go func() {
		for ev := range events {
			collected = append(collected, ev)
		}
		close(done)
	}()

	err := func() error {
		if err := w.enter(); err != nil {
			close(events)
			return err
		}
		defer w.exit()

		rc := w.newRunnerContext()
		rc.Reset()
		hc := newExecHandlerContext(RequestInfoExecutorID, nil, rc)
		for requestID, response := range responses {
			if err := w.requestInfo.HandleResponse(requestID, response, hc); err != nil {
				close(events)
				return err
			}
		}
		return w.execute(ctx, rc, func() { hc.flush(rc) }, events)
	}()
	<-done
	return collected, err
}

// RunFromCheckpoint restores checkpointID and resumes the run to
// quiescence. foreignStorage may be nil, in which case the checkpoint is
// loaded from the workflow's own bound storage (native restore); when
// non-nil, the snapshot is loaded from foreignStorage instead and merged
// into a fresh RunnerContext (foreign restore, spec.md §4.6). responses,
// if non-nil, are injected as RequestInfo resolutions before the runner
// resumes.
func (w *Workflow) RunFromCheckpoint(ctx context.Context, checkpointID string, foreignStorage CheckpointStorage, responses map[string]any) ([]WorkflowEvent, error) {
	events := make(chan WorkflowEvent, 256)
	var collected []WorkflowEvent
	done := make(chan struct{})
	go func() {
		for ev := range events {
			collected = append(collected, ev)
		}
		close(done)
	}()

	err := func() error {
		if err := w.enter(); err != nil {
			close(events)
			return err
		}
		defer w.exit()

		rc, err := w.restoreCheckpoint(ctx, checkpointID, foreignStorage)
		if err != nil {
			close(events)
			return err
		}

		if len(responses) > 0 && w.requestInfo != nil {
			hc := newExecHandlerContext(RequestInfoExecutorID, nil, rc)
			for requestID, response := range responses {
				if err := w.requestInfo.HandleResponse(requestID, response, hc); err != nil {
					close(events)
					return err
				}
			}
			hc.flush(rc)
		}

		return w.executeResumed(ctx, rc, events)
	}()
	<-done
	return collected, err
}

// RunStreamingFromCheckpoint behaves like RunFromCheckpoint but streams
// events as they are produced.
func (w *Workflow) RunStreamingFromCheckpoint(ctx context.Context, checkpointID string, foreignStorage CheckpointStorage, responses map[string]any) (<-chan WorkflowEvent, <-chan error) {
	events := make(chan WorkflowEvent, 256)
	errc := make(chan error, 1)
	go func() {
		if err := w.enter(); err != nil {
			close(events)
			errc <- err
			return
		}
		defer w.exit()

		rc, err := w.restoreCheckpoint(ctx, checkpointID, foreignStorage)
		if err != nil {
			close(events)
			errc <- err
			return
		}
		rc.SetStreaming(true)

		if len(responses) > 0 && w.requestInfo != nil {
			hc := newExecHandlerContext(RequestInfoExecutorID, nil, rc)
			for requestID, response := range responses {
				if err := w.requestInfo.HandleResponse(requestID, response, hc); err != nil {
					close(events)
					errc <- err
					return
				}
			}
			hc.flush(rc)
		}

		errc <- w.executeResumed(ctx, rc, events)
	}()
	return events, errc
}

// restoreCheckpoint loads checkpointID and populates a fresh RunnerContext
// per spec.md §4.6's native/foreign distinction. Native restore (no
// foreignStorage) and foreign restore (an alternate storage handle) follow
// the same transfer path here: load the snapshot, then replace shared
// state under a hold, replace executor states, and requeue pending
// messages into the outbound buffer.
func (w *Workflow) restoreCheckpoint(ctx context.Context, checkpointID string, foreignStorage CheckpointStorage) (RunnerContext, error) {
	storage := w.storage
	if foreignStorage != nil {
		storage = foreignStorage
	}
	if storage == nil {
		return nil, ErrCheckpointRestore
	}

	cp, err := storage.LoadCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, ErrCheckpointRestore
	}
	if cp == nil {
		return nil, ErrCheckpointNotFound
	}

	rc := w.newRunnerContext()
	rc.Reset()
	rc.SharedState().Replace(cp.SharedState)
	rc.ReplaceExecutorStates(cp.ExecutorStates)
	rc.SetIteration(cp.IterationCount)
	if cp.MaxIterations > 0 {
		rc.SetMaxIterations(cp.MaxIterations)
	}
	for _, ex := range w.executors {
		if restorer, ok := ex.(Restorer); ok {
			if state, ok := cp.ExecutorStates[ex.ID()]; ok {
				if err := restorer.RestoreState(state); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, msgs := range fromPendingMessages(cp.Messages) {
		for _, m := range msgs {
			rc.SendMessage(m)
		}
	}
	return rc, nil
}

// executeResumed drives an already-restored RunnerContext to quiescence
// without resetting it or seeding a fresh initial payload.
func (w *Workflow) executeResumed(ctx context.Context, rc RunnerContext, events chan<- WorkflowEvent) error {
	defer close(events)

	w.flush(rc, events)
	result, err := w.runner.RunToQuiescence(ctx, rc, w.id, true)
	w.flush(rc, events)
	w.captureSharedState(rc)

	state := w.runner.RunState(result.converged)
	if err != nil {
		details := NewWorkflowErrorDetails("", err)
		rc.AddEvent(WorkflowFailed(details))
		w.flush(rc, events)
		return err
	}
	if state == StateIdle {
		rc.AddEvent(WorkflowCompleted(nil))
	} else {
		rc.AddEvent(WorkflowStatus(state))
	}
	w.flush(rc, events)
	return nil
}
