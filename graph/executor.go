package graph

import (
	"context"
	"fmt"
	"sync"
)

// HandlerContext is the façade passed to every handler invocation. It is
// the only way a handler touches runtime state: outbound messages, the
// event buffer, shared state, and its own executor-scoped state.
type HandlerContext interface {
	// SendMessage enqueues payload for delivery on the next superstep.
	// An empty targetID means "broadcast to any edge group that will take
	// it"; a non-empty targetID restricts delivery to that executor.
	SendMessage(payload any, targetID string)

	// AddEvent appends an event to the run's event buffer.
	AddEvent(ev WorkflowEvent)

	// GetSharedState and SetSharedState read/write the single process-wide
	// key/value area. Both acquire SharedState's mutual-exclusion region
	// for the duration of the single operation; for a read-modify-write
	// spanning multiple keys use SharedState.Hold directly.
	GetSharedState(key string) (any, bool)
	SetSharedState(key string, value any)

	// GetState and SetState manage the calling executor's own snapshot
	// state. SetState replaces the state wholesale, mirroring the
	// checkpoint restore invariant that state replacement is never merged.
	GetState() map[string]any
	SetState(state map[string]any)

	// SourceExecutorIDs lists the executor(s) whose emitted message this
	// invocation is handling. Most handlers see exactly one; a fan-in
	// delivery's handler sees every contributing source in declared order.
	SourceExecutorIDs() []string

	// IsStreaming reports whether the enclosing run was started via a
	// streaming entry point. Read-only: user executors may branch on it
	// but cannot set it (spec.md §9 Open Question #1).
	IsStreaming() bool
}

// Executor is a uniquely identified computation node with typed message
// handlers and optional snapshot state.
type Executor interface {
	ID() string
	CanHandle(msg Message) bool
	Execute(ctx context.Context, msg Message, hc HandlerContext) error
}

// Snapshotter is implemented by executors that need their state captured
// at checkpoint boundaries. Absent this interface, an executor's state is
// treated as empty.
type Snapshotter interface {
	SnapshotState() (map[string]any, error)
}

// Restorer is implemented by executors that need their state restored from
// a checkpoint. Absent this interface, restore is a no-op for that executor.
type Restorer interface {
	RestoreState(state map[string]any) error
}

// TypedExecutor is an optional interface an executor can implement to
// declare its output payload types, used by the builder's validator to
// check edge type compatibility (spec.md §4.7). Input types are always
// discoverable from a BaseExecutor's handler registrations; output types
// have no equivalent structural source and must be declared explicitly.
type TypedExecutor interface {
	InputTypes() []Type
	OutputTypes() []Type
}

// HandlerFunc is the signature every registered handler implements.
type HandlerFunc func(ctx context.Context, payload any, hc HandlerContext) error

type handlerBinding struct {
	typ     Type
	matcher func(any) bool
	fn      HandlerFunc
}

// BaseExecutor is an embeddable implementation of the handler-registry
// half of Executor: dispatch by type-tag with an optional structural
// fallback matcher, ambiguity left to the builder's validator rather than
// enforced here (spec.md §3: "ambiguity is a validator warning, not an
// error").
type BaseExecutor struct {
	id       string
	mu       sync.RWMutex
	handlers []handlerBinding
	outputs  []Type
	state    map[string]any
}

// NewBaseExecutor constructs a BaseExecutor with the given unique id.
func NewBaseExecutor(id string) *BaseExecutor {
	return &BaseExecutor{id: id, state: map[string]any{}}
}

// ID returns the executor's unique identifier within its workflow.
func (b *BaseExecutor) ID() string { return b.id }

// RegisterHandler binds a concrete or container Type to fn. Handlers are
// tried in registration order; the first whose Type is assignable from the
// payload's runtime type wins.
func (b *BaseExecutor) RegisterHandler(typ Type, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handlerBinding{typ: typ, fn: fn})
}

// RegisterStructuralHandler binds a custom matcher predicate to fn, for
// shapes the Type algebra cannot express directly (e.g. "any
// RequestInfoMessage implementation").
func (b *BaseExecutor) RegisterStructuralHandler(matcher func(any) bool, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handlerBinding{matcher: matcher, fn: fn})
}

// RegisterListHandler binds a handler that accepts a fan-in assembled
// []any payload — the container shape EdgeRunner.fanInRunner delivers.
func (b *BaseExecutor) RegisterListHandler(fn HandlerFunc) {
	b.RegisterStructuralHandler(func(p any) bool {
		_, ok := p.([]any)
		return ok
	}, fn)
}

// DeclareOutputs records the payload types this executor's handlers may
// emit, consulted by the builder's type-compatibility check.
func (b *BaseExecutor) DeclareOutputs(types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append(b.outputs, types...)
}

// InputTypes returns the declared-type handlers' Types (structural-matcher
// handlers contribute no static Type and are skipped — the validator warns
// rather than errors on unannotated executors per spec.md §4.7).
func (b *BaseExecutor) InputTypes() []Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Type
	for _, h := range b.handlers {
		if h.typ != nil {
			out = append(out, h.typ)
		}
	}
	return out
}

// OutputTypes returns the types declared via DeclareOutputs.
func (b *BaseExecutor) OutputTypes() []Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Type{}, b.outputs...)
}

func (b *BaseExecutor) findHandler(payload any) *handlerBinding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pt := Type(ConcreteOf(payload))
	for i := range b.handlers {
		h := &b.handlers[i]
		if h.matcher != nil {
			if h.matcher(payload) {
				return h
			}
			continue
		}
		if Assignable(pt, h.typ) {
			return h
		}
	}
	return nil
}

// CanHandle reports whether any registered handler matches msg.Payload.
func (b *BaseExecutor) CanHandle(msg Message) bool {
	return b.findHandler(msg.Payload) != nil
}

// Execute dispatches msg.Payload to its matching handler. A dispatch
// failure (no matching handler) is a fatal runtime error per spec.md
// §4.1 — callers should only invoke Execute after confirming CanHandle.
func (b *BaseExecutor) Execute(ctx context.Context, msg Message, hc HandlerContext) error {
	h := b.findHandler(msg.Payload)
	if h == nil {
		return &DispatchError{ExecutorID: b.id, Err: fmt.Errorf("%w: %T", ErrDispatchNoHandler, msg.Payload)}
	}
	return h.fn(ctx, msg.Payload, hc)
}

// SnapshotState returns a shallow copy of the executor's scoped state.
func (b *BaseExecutor) SnapshotState() (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.state))
	for k, v := range b.state {
		out[k] = v
	}
	return out, nil
}

// RestoreState replaces the executor's scoped state wholesale.
func (b *BaseExecutor) RestoreState(state map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	return nil
}

// State returns the executor's current scoped state for handlers that
// manage it directly rather than through HandlerContext.GetState/SetState.
func (b *BaseExecutor) State() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetState replaces the executor's scoped state.
func (b *BaseExecutor) SetState(state map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}
