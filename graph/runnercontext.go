package graph

import (
	"sync"

	"github.com/agentflow-dev/workflow/graph/metrics"
)

// RunnerContext is the per-run façade owning the outbound-message buffer,
// the event buffer, per-executor state snapshots, the iteration counter,
// and the checkpoint-storage handle (spec.md §3).
type RunnerContext interface {
	SendMessage(msg Message)
	DrainMessages() map[string][]Message
	PeekMessages() map[string][]Message

	AddEvent(ev WorkflowEvent)
	DrainEvents() []WorkflowEvent
	PeekEvents() []WorkflowEvent

	ExecutorState(id string) map[string]any
	SetExecutorState(id string, state map[string]any)
	ExecutorStates() map[string]map[string]any
	ReplaceExecutorStates(states map[string]map[string]any)

	Iteration() int
	SetIteration(n int)
	MaxIterations() int
	SetMaxIterations(n int)

	CheckpointStorage() CheckpointStorage
	SetCheckpointStorage(s CheckpointStorage)

	SharedState() *SharedState

	IsStreaming() bool
	SetStreaming(bool)

	// Metrics returns the collector the runner reports superstep,
	// executor, checkpoint, and convergence observations to. Defaults to
	// a no-op collector when never set.
	Metrics() metrics.Metrics
	SetMetrics(m metrics.Metrics)

	// WorkflowID labels every metric this context's run reports.
	WorkflowID() string
	SetWorkflowID(id string)

	// Reset clears the outbound buffer, events, executor states, and
	// iteration counter, and replaces shared state with a fresh instance —
	// invoked at the start of every Workflow.Run/RunStreaming call to
	// eliminate cross-run contamination (spec.md §3, §4.5).
	Reset()
}

// inProcRunnerContext is the default, single-process RunnerContext
// implementation, grounded on `_runner_context.py`'s InProcRunnerContext.
type inProcRunnerContext struct {
	mu             sync.Mutex
	outbound       map[string][]Message
	events         []WorkflowEvent
	executorStates map[string]map[string]any
	iteration      int
	maxIterations  int
	storage        CheckpointStorage
	shared         *SharedState
	streaming      bool
	metrics        metrics.Metrics
	workflowID     string
	completed      bool
}

// NewRunnerContext constructs the default in-process RunnerContext.
func NewRunnerContext(maxIterations int, storage CheckpointStorage) RunnerContext {
	return &inProcRunnerContext{
		outbound:       map[string][]Message{},
		executorStates: map[string]map[string]any{},
		maxIterations:  maxIterations,
		storage:        storage,
		shared:         NewSharedState(),
		metrics:        metrics.NewNullMetrics(),
	}
}

func (c *inProcRunnerContext) SendMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbound[msg.SourceID] = append(c.outbound[msg.SourceID], msg)
}

func (c *inProcRunnerContext) DrainMessages() map[string][]Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outbound
	c.outbound = map[string][]Message{}
	return out
}

func (c *inProcRunnerContext) PeekMessages() map[string][]Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]Message, len(c.outbound))
	for src, msgs := range c.outbound {
		out[src] = append([]Message{}, msgs...)
	}
	return out
}

// AddEvent enforces spec.md §9's single-emission invariant for
// WorkflowCompleted (SPEC_FULL.md §11 item 3): a second attempt to add one
// within the same run is a programming error, recovered into a
// WorkflowFailed event carrying ErrDuplicateCompletion rather than silently
// accepted or panicking the caller.
func (c *inProcRunnerContext) AddEvent(ev WorkflowEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Kind == EventWorkflowCompleted {
		if c.completed {
			ev = WorkflowFailed(NewWorkflowErrorDetails("", ErrDuplicateCompletion))
		} else {
			c.completed = true
		}
	}
	c.events = append(c.events, ev)
}

func (c *inProcRunnerContext) DrainEvents() []WorkflowEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func (c *inProcRunnerContext) PeekEvents() []WorkflowEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WorkflowEvent{}, c.events...)
}

func (c *inProcRunnerContext) ExecutorState(id string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executorStates[id]
}

func (c *inProcRunnerContext) SetExecutorState(id string, state map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executorStates[id] = state
}

func (c *inProcRunnerContext) ExecutorStates() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.executorStates))
	for k, v := range c.executorStates {
		out[k] = v
	}
	return out
}

func (c *inProcRunnerContext) ReplaceExecutorStates(states map[string]map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if states == nil {
		states = map[string]map[string]any{}
	}
	c.executorStates = states
}

func (c *inProcRunnerContext) Iteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iteration
}

func (c *inProcRunnerContext) SetIteration(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iteration = n
}

func (c *inProcRunnerContext) MaxIterations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxIterations
}

func (c *inProcRunnerContext) SetMaxIterations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxIterations = n
}

func (c *inProcRunnerContext) CheckpointStorage() CheckpointStorage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage
}

func (c *inProcRunnerContext) SetCheckpointStorage(s CheckpointStorage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage = s
}

func (c *inProcRunnerContext) SharedState() *SharedState { return c.shared }

func (c *inProcRunnerContext) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func (c *inProcRunnerContext) SetStreaming(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = v
}

func (c *inProcRunnerContext) Metrics() metrics.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *inProcRunnerContext) SetMetrics(m metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m == nil {
		m = metrics.NewNullMetrics()
	}
	c.metrics = m
}

func (c *inProcRunnerContext) WorkflowID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workflowID
}

func (c *inProcRunnerContext) SetWorkflowID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflowID = id
}

func (c *inProcRunnerContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbound = map[string][]Message{}
	c.events = nil
	c.executorStates = map[string]map[string]any{}
	c.iteration = 0
	c.shared = NewSharedState()
	c.completed = false
}
