package graph

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EdgeRunner is the runtime delivery engine for one EdgeGroup: it evaluates
// gates/selectors, buffers fan-ins, and invokes target executors
// (spec.md §4.3).
type EdgeRunner interface {
	// SourceIDs returns every source id this runner listens on, so the
	// superstep Runner can index runners by source.
	SourceIDs() []string

	// Deliver attempts to route msg to its target(s). handled reports
	// whether at least one target accepted the message (including the
	// case where a gate silently rejected it); err is non-nil only for
	// fatal conditions (e.g. a FanOut selector choosing an undeclared
	// target).
	Deliver(ctx context.Context, msg Message, executors map[string]Executor, rc RunnerContext, hcFactory func(executorID string, sourceIDs []string) *execHandlerContext) (handled bool, err error)
}

// NewEdgeRunner builds the EdgeRunner matching group's variant.
func NewEdgeRunner(group EdgeGroup) EdgeRunner {
	switch group.kind {
	case kindSingle:
		return &singleRunner{source: group.sourceIDs[0], target: group.targetIDs[0], gate: group.gate}
	case kindFanOut:
		return &fanOutRunner{source: group.sourceIDs[0], targets: group.targetIDs, selector: group.selector}
	case kindSwitchCase:
		return &fanOutRunner{
			source:  group.sourceIDs[0],
			targets: group.TargetIDSet(),
			selector: func(payload any, _ []string) ([]string, error) {
				return []string{evaluateSwitchCase(group.cases, group.defaultTargetID, payload)}, nil
			},
		}
	case kindFanIn:
		return &fanInRunner{sourceIDs: group.sourceIDs, target: group.fanInTarget, buffers: map[string][]Message{}}
	default:
		panic("graph: unknown edge group kind")
	}
}

func evaluateSwitchCase(cases []SwitchCase, defaultTargetID string, payload any) string {
	for _, c := range cases {
		if matchesCase(c, payload) {
			return c.TargetID
		}
	}
	return defaultTargetID
}

func matchesCase(c SwitchCase, payload any) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return c.Predicate(payload)
}

func runHandler(ctx context.Context, executor Executor, msg Message, rc RunnerContext, hc *execHandlerContext) error {
	m := rc.Metrics()
	m.ExecutorStarted(rc.WorkflowID(), executor.ID())
	defer m.ExecutorFinished(rc.WorkflowID(), executor.ID())

	rc.AddEvent(ExecutorInvoke(executor.ID()))
	err := executor.Execute(ctx, msg, hc)
	if err != nil {
		rc.AddEvent(ExecutorFailed(executor.ID(), NewWorkflowErrorDetails(executor.ID(), err)))
		return err
	}
	hc.flush(rc)
	rc.AddEvent(ExecutorCompleted(executor.ID()))
	return nil
}

// execHandlerContext is the concrete HandlerContext bound to one handler
// invocation. Outbound messages are buffered and only flushed into
// RunnerContext if the handler returns successfully (spec.md §9 Open
// Question #2: a failing handler's emitted messages are discarded).
type execHandlerContext struct {
	executorID string
	sourceIDs  []string
	rc         RunnerContext
	mu         sync.Mutex
	pending    []Message
}

func newExecHandlerContext(executorID string, sourceIDs []string, rc RunnerContext) *execHandlerContext {
	return &execHandlerContext{executorID: executorID, sourceIDs: sourceIDs, rc: rc}
}

func (h *execHandlerContext) SendMessage(payload any, targetID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, NewMessage(payload, h.executorID, targetID))
}

func (h *execHandlerContext) flush(rc RunnerContext) {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, m := range pending {
		rc.SendMessage(m)
	}
}

func (h *execHandlerContext) AddEvent(ev WorkflowEvent) { h.rc.AddEvent(ev) }

func (h *execHandlerContext) GetSharedState(key string) (any, bool) { return h.rc.SharedState().Get(key) }

func (h *execHandlerContext) SetSharedState(key string, value any) { h.rc.SharedState().Set(key, value) }

func (h *execHandlerContext) GetState() map[string]any { return h.rc.ExecutorState(h.executorID) }

func (h *execHandlerContext) SetState(state map[string]any) { h.rc.SetExecutorState(h.executorID, state) }

func (h *execHandlerContext) SourceExecutorIDs() []string { return h.sourceIDs }

func (h *execHandlerContext) IsStreaming() bool { return h.rc.IsStreaming() }

// singleRunner delivers to exactly one target, honoring an optional gate.
type singleRunner struct {
	source string
	target string
	gate   Predicate
}

func (r *singleRunner) SourceIDs() []string { return []string{r.source} }

func (r *singleRunner) Deliver(ctx context.Context, msg Message, executors map[string]Executor, rc RunnerContext, hcFactory func(string, []string) *execHandlerContext) (bool, error) {
	if msg.TargetID != "" && msg.TargetID != r.target {
		return false, nil
	}
	executor, ok := executors[r.target]
	if !ok || !executor.CanHandle(msg) {
		return false, nil
	}
	if r.gate != nil && !r.gate(msg.Payload) {
		return true, nil
	}
	hc := hcFactory(r.target, []string{msg.SourceID})
	return true, runHandler(ctx, executor, msg, rc, hc)
}

// fanOutRunner delivers to a selector-chosen subset of targets
// concurrently; SwitchCase is realized as a FanOut whose selector always
// returns exactly one id.
type fanOutRunner struct {
	source   string
	targets  []string
	selector func(payload any, targetIDs []string) ([]string, error)
}

func (r *fanOutRunner) SourceIDs() []string { return []string{r.source} }

func (r *fanOutRunner) Deliver(ctx context.Context, msg Message, executors map[string]Executor, rc RunnerContext, hcFactory func(string, []string) *execHandlerContext) (bool, error) {
	selected := r.targets
	if r.selector != nil {
		var err error
		selected, err = r.selector(msg.Payload, r.targets)
		if err != nil {
			return false, err
		}
	}
	declared := make(map[string]bool, len(r.targets))
	for _, t := range r.targets {
		declared[t] = true
	}
	for _, s := range selected {
		if !declared[s] {
			return false, ErrSelectionOutOfRange
		}
	}

	if msg.TargetID != "" {
		narrowed := selected[:0:0]
		for _, s := range selected {
			if s == msg.TargetID {
				narrowed = append(narrowed, s)
			}
		}
		selected = narrowed
	}

	var mu sync.Mutex
	handled := false
	g, gctx := errgroup.WithContext(ctx)
	for _, targetID := range selected {
		targetID := targetID
		executor, ok := executors[targetID]
		if !ok || !executor.CanHandle(msg) {
			continue
		}
		g.Go(func() error {
			hc := hcFactory(targetID, []string{msg.SourceID})
			if err := runHandler(gctx, executor, msg, rc, hc); err != nil {
				return err
			}
			mu.Lock()
			handled = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return handled, err
	}
	return handled, nil
}

// fanInRunner buffers one pending message per declared source and, once
// every source has contributed, assembles and delivers an ordered list
// (spec.md §4.3, §8 property 2).
type fanInRunner struct {
	source    string // unused placeholder to satisfy EdgeRunner symmetry; fan-in has many sources
	sourceIDs []string
	target    string

	mu      sync.Mutex
	buffers map[string][]Message
}

func (r *fanInRunner) SourceIDs() []string { return append([]string{}, r.sourceIDs...) }

func (r *fanInRunner) Deliver(ctx context.Context, msg Message, executors map[string]Executor, rc RunnerContext, hcFactory func(string, []string) *execHandlerContext) (bool, error) {
	if msg.TargetID != "" && msg.TargetID != r.target {
		return false, nil
	}
	executor, ok := executors[r.target]
	if !ok {
		return false, nil
	}
	probe := Message{Payload: []any{}, SourceID: "probe", TargetID: r.target}
	if !executor.CanHandle(probe) {
		return false, nil
	}

	r.mu.Lock()
	r.buffers[msg.SourceID] = append(r.buffers[msg.SourceID], msg)
	ready := true
	for _, s := range r.sourceIDs {
		if len(r.buffers[s]) == 0 {
			ready = false
			break
		}
	}
	if !ready {
		r.mu.Unlock()
		return true, nil
	}

	payloads := make([]any, 0, len(r.sourceIDs))
	var traces []string
	contributors := make([]string, 0, len(r.sourceIDs))
	for _, s := range r.sourceIDs {
		m := r.buffers[s][0]
		r.buffers[s] = r.buffers[s][1:]
		payloads = append(payloads, m.Payload)
		traces = append(traces, m.TraceContexts...)
		contributors = append(contributors, s)
	}
	r.mu.Unlock()

	synthetic := Message{
		Payload:       payloads,
		SourceID:      "fanin:" + r.target,
		TargetID:      r.target,
		TraceContexts: traces,
	}
	hc := hcFactory(r.target, contributors)
	return true, runHandler(ctx, executor, synthetic, rc, hc)
}
