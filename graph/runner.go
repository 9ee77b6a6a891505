package graph

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner is the superstep engine: drain the outbound buffer, deliver every
// pending message concurrently through its edge group(s), collect results,
// and repeat until no message was delivered (quiescence) or a suspension
// point is reached (spec.md §4.4).
type Runner struct {
	executors       map[string]Executor
	runnersBySource map[string][]EdgeRunner
	startExecutorID string
	requestInfo     *RequestInfoExecutor
}

// NewRunner builds a Runner from a fixed executor set and edge group list.
// startExecutorID names the executor that receives the run's initial
// message; requestInfo may be nil if the workflow never suspends.
func NewRunner(executors map[string]Executor, groups []EdgeGroup, startExecutorID string, requestInfo *RequestInfoExecutor) *Runner {
	bySource := map[string][]EdgeRunner{}
	for _, g := range groups {
		er := NewEdgeRunner(g)
		for _, s := range er.SourceIDs() {
			bySource[s] = append(bySource[s], er)
		}
	}
	return &Runner{
		executors:       executors,
		runnersBySource: bySource,
		startExecutorID: startExecutorID,
		requestInfo:     requestInfo,
	}
}

func (r *Runner) hcFactory(rc RunnerContext) func(executorID string, sourceIDs []string) *execHandlerContext {
	return func(executorID string, sourceIDs []string) *execHandlerContext {
		return newExecHandlerContext(executorID, sourceIDs, rc)
	}
}

// Seed enqueues the run's initial payload addressed to the start executor.
func (r *Runner) Seed(rc RunnerContext, payload any) {
	rc.SendMessage(NewMessage(payload, "", r.startExecutorID))
}

// step runs exactly one superstep: every currently-buffered message is
// drained and delivered concurrently, grouped by the edge runner(s)
// registered against its source. It returns whether at least one message
// was delivered anywhere, which is this engine's quiescence signal.
func (r *Runner) step(ctx context.Context, rc RunnerContext) (delivered bool, err error) {
	buckets := rc.DrainMessages()
	if len(buckets) == 0 {
		return false, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	factory := r.hcFactory(rc)

	for sourceID, msgs := range buckets {
		runners := r.runnersBySource[sourceID]
		for _, msg := range msgs {
			msg := msg
			if len(runners) == 0 {
				// No edge group claims this source. A targeted message with
				// no edge is how RequestInfoExecutor responses flow: they
				// are injected straight back to the requesting executor,
				// never routed through a graph edge (spec.md §4.2, §9).
				// Any other sourceless/edgeless targeted message is
				// delivered the same way; an edgeless message with no
				// target is simply dropped.
				if msg.TargetID != "" {
					target := msg.TargetID
					g.Go(func() error {
						executor, ok := r.executors[target]
						if !ok || !executor.CanHandle(msg) {
							return nil
						}
						sources := []string{msg.SourceID}
						hc := factory(target, sources)
						if err := runHandler(gctx, executor, msg, rc, hc); err != nil {
							return err
						}
						mu.Lock()
						delivered = true
						mu.Unlock()
						return nil
					})
				}
				continue
			}
			for _, er := range runners {
				er := er
				g.Go(func() error {
					handled, derr := er.Deliver(gctx, msg, r.executors, rc, factory)
					if derr != nil {
						return derr
					}
					if handled {
						mu.Lock()
						delivered = true
						mu.Unlock()
					}
					return nil
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return delivered, err
	}
	return delivered, nil
}

// runResult summarizes a completed sequence of supersteps.
type runResult struct {
	converged     bool
	hitMaxIters   bool
	iterationsRun int
}

// RunToQuiescence executes supersteps until no message is delivered in one
// step, or until rc's iteration cap is reached with messages still
// outstanding (spec.md §4.4, §7: ConvergenceError). When rc carries
// CheckpointStorage and resumed is false, an "initial"
// checkpoint is saved before the first superstep runs, provided the initial
// seed actually produced pending messages; resumed callers (restored from a
// prior checkpoint) skip this, matching `_runner.py`'s
// resumed_from_checkpoint guard. A checkpoint is then saved after every
// superstep, each carrying Metadata{"superstep": n, "checkpoint_type": ...}.
func (r *Runner) RunToQuiescence(ctx context.Context, rc RunnerContext, workflowID string, resumed bool) (runResult, error) {
	max := rc.MaxIterations()

	if !resumed && hasPendingMessages(rc) {
		if err := r.checkpoint(ctx, rc, workflowID, "initial"); err != nil {
			rc.Metrics().IncrementCheckpointOps(workflowID, "error")
			rc.AddEvent(WorkflowWarning("checkpoint save failed: " + err.Error()))
		} else if rc.CheckpointStorage() != nil {
			rc.Metrics().IncrementCheckpointOps(workflowID, "success")
		}
	}

	for {
		start := time.Now()
		delivered, err := r.step(ctx, rc)
		rc.Metrics().ObserveSuperstepLatency(workflowID, rc.Iteration(), time.Since(start))
		if err != nil {
			return runResult{iterationsRun: rc.Iteration()}, err
		}
		if !delivered {
			return runResult{converged: true, iterationsRun: rc.Iteration()}, nil
		}

		rc.SetIteration(rc.Iteration() + 1)
		if err := r.checkpoint(ctx, rc, workflowID, "superstep"); err != nil {
			rc.Metrics().IncrementCheckpointOps(workflowID, "error")
			rc.AddEvent(WorkflowWarning("checkpoint save failed: " + err.Error()))
		} else if rc.CheckpointStorage() != nil {
			rc.Metrics().IncrementCheckpointOps(workflowID, "success")
		}

		if max > 0 && rc.Iteration() >= max && hasPendingMessages(rc) {
			rc.Metrics().IncrementConvergenceFailures(workflowID)
			return runResult{hitMaxIters: true, iterationsRun: rc.Iteration()}, &ConvergenceError{Iterations: rc.Iteration()}
		}
	}
}

func hasPendingMessages(rc RunnerContext) bool {
	for _, msgs := range rc.PeekMessages() {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// checkpoint saves a snapshot labeled with checkpointType ("initial" or
// "superstep"), matching `_create_checkpoint_if_enabled`'s metadata shape.
func (r *Runner) checkpoint(ctx context.Context, rc RunnerContext, workflowID, checkpointType string) error {
	storage := rc.CheckpointStorage()
	if storage == nil {
		return nil
	}
	executorStates := rc.ExecutorStates()
	for id, ex := range r.executors {
		if snap, ok := ex.(Snapshotter); ok {
			state, err := snap.SnapshotState()
			if err != nil {
				return err
			}
			executorStates[id] = state
		}
	}
	cp := WorkflowCheckpoint{
		WorkflowID:     workflowID,
		Messages:       toPendingMessages(rc.PeekMessages()),
		SharedState:    rc.SharedState().Snapshot(),
		ExecutorStates: executorStates,
		IterationCount: rc.Iteration(),
		MaxIterations:  rc.MaxIterations(),
		Metadata: map[string]any{
			"superstep":       rc.Iteration(),
			"checkpoint_type": checkpointType,
		},
	}
	_, err := storage.SaveCheckpoint(ctx, cp)
	return err
}

// RunState reports the run's current observable state, consulting the
// RequestInfoExecutor (if any) to distinguish the two idle variants
// (spec.md §6).
func (r *Runner) RunState(converged bool) WorkflowRunState {
	pending := r.requestInfo != nil && r.requestInfo.HasPending()
	switch {
	case converged && pending:
		return StateIdleWithPendingRequests
	case converged:
		return StateIdle
	case pending:
		return StateInProgressPendingRequests
	default:
		return StateInProgress
	}
}
