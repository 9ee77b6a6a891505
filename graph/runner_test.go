package graph

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentflow-dev/workflow/graph/metrics"
)

// fakeMetrics records every call for assertions, without depending on the
// Prometheus implementation.
type fakeMetrics struct {
	mu                  sync.Mutex
	started             []string
	finished            []string
	superstepLatencies  int
	checkpointOutcomes  []string
	convergenceFailures int
}

func (f *fakeMetrics) ExecutorStarted(workflowID, executorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, executorID)
}

func (f *fakeMetrics) ExecutorFinished(workflowID, executorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, executorID)
}

func (f *fakeMetrics) ObserveSuperstepLatency(workflowID string, iteration int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.superstepLatencies++
}

func (f *fakeMetrics) IncrementCheckpointOps(workflowID, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpointOutcomes = append(f.checkpointOutcomes, outcome)
}

func (f *fakeMetrics) IncrementConvergenceFailures(workflowID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convergenceFailures++
}

var _ metrics.Metrics = (*fakeMetrics)(nil)

func TestRunnerRecordsExecutorAndSuperstepMetrics(t *testing.T) {
	a := newRelay("a", "b")
	b := newRelay("b", "")
	groups := []EdgeGroup{NewSingleEdgeGroup("a", "b", nil)}
	r := NewRunner(map[string]Executor{"a": a, "b": b}, groups, "a", nil)
	rc := NewRunnerContext(10, nil)
	fm := &fakeMetrics{}
	rc.SetMetrics(fm)
	rc.SetWorkflowID("wf-test")

	r.Seed(rc, 1)
	result, err := r.RunToQuiescence(context.Background(), rc, "wf-test", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.converged {
		t.Fatal("expected the run to converge")
	}

	if len(fm.started) == 0 || len(fm.started) != len(fm.finished) {
		t.Fatalf("expected matched executor start/finish calls, got started=%v finished=%v", fm.started, fm.finished)
	}
	if fm.superstepLatencies == 0 {
		t.Fatal("expected at least one superstep latency observation")
	}
}

func TestRunnerRecordsConvergenceFailure(t *testing.T) {
	a := NewBaseExecutor("a")
	a.RegisterHandler(Type(ConcreteOf(0)), func(ctx context.Context, payload any, hc HandlerContext) error {
		hc.SendMessage(payload.(int)+1, "")
		return nil
	})
	groups := []EdgeGroup{NewSingleEdgeGroup("a", "a", nil)}
	r := NewRunner(map[string]Executor{"a": a}, groups, "a", nil)
	rc := NewRunnerContext(2, nil)
	fm := &fakeMetrics{}
	rc.SetMetrics(fm)

	r.Seed(rc, 0)
	_, err := r.RunToQuiescence(context.Background(), rc, "wf-test", false)
	if err == nil {
		t.Fatal("expected a convergence error")
	}
	if fm.convergenceFailures != 1 {
		t.Fatalf("expected 1 recorded convergence failure, got %d", fm.convergenceFailures)
	}
}

func TestRunnerStepQuiescenceOnEmptyBuffer(t *testing.T) {
	a := NewBaseExecutor("a")
	r := NewRunner(map[string]Executor{"a": a}, nil, "a", nil)
	rc := NewRunnerContext(10, nil)

	delivered, err := r.step(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered {
		t.Fatal("expected no delivery on an empty buffer")
	}
}

func TestRunnerDeliversAlongSingleEdge(t *testing.T) {
	a := newRelay("a", "b")
	b := newRelay("b", "")
	groups := []EdgeGroup{NewSingleEdgeGroup("a", "b", nil)}
	r := NewRunner(map[string]Executor{"a": a, "b": b}, groups, "a", nil)
	rc := NewRunnerContext(10, nil)

	r.Seed(rc, 1)
	for {
		delivered, err := r.step(context.Background(), rc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !delivered {
			break
		}
		rc.SetIteration(rc.Iteration() + 1)
	}

	if got, _ := rc.SharedState().Get("result"); got != 2 {
		t.Fatalf("expected relay chain to land on 2, got %v", got)
	}
}

func TestRunnerDirectDeliveryFallbackForEdgelessTarget(t *testing.T) {
	asker := NewBaseExecutor("asker")
	var got string
	asker.RegisterHandler(Type(ConcreteOf("")), func(ctx context.Context, payload any, hc HandlerContext) error {
		got = payload.(string)
		return nil
	})

	r := NewRunner(map[string]Executor{"asker": asker}, nil, "asker", nil)
	rc := NewRunnerContext(10, nil)

	rc.SendMessage(NewMessage("direct", RequestInfoExecutorID, "asker"))
	delivered, err := r.step(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !delivered {
		t.Fatal("expected the edgeless targeted message to be delivered directly")
	}
	if got != "direct" {
		t.Fatalf("expected asker to receive the direct-delivered payload, got %q", got)
	}
}

func TestRunnerDropsEdgelessUntargetedMessage(t *testing.T) {
	asker := NewBaseExecutor("asker")
	r := NewRunner(map[string]Executor{"asker": asker}, nil, "asker", nil)
	rc := NewRunnerContext(10, nil)

	rc.SendMessage(NewMessage("nowhere", "ghost-source", ""))
	delivered, err := r.step(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered {
		t.Fatal("expected an edgeless, targetless message to be dropped, not delivered")
	}
}

func TestRunnerRunStateReflectsPendingRequests(t *testing.T) {
	ri := NewRequestInfoExecutor()
	r := NewRunner(map[string]Executor{RequestInfoExecutorID: ri}, nil, RequestInfoExecutorID, ri)

	if got := r.RunState(true); got != StateIdle {
		t.Fatalf("expected StateIdle with no pending requests, got %v", got)
	}

	hc := newFakeHandlerContext()
	hc.sources = []string{"asker"}
	msg := Message{Payload: pingRequest{BaseRequestInfo{Tag: "ping"}}, SourceID: "asker", TargetID: RequestInfoExecutorID}
	if err := ri.Execute(context.Background(), msg, hc); err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}

	if got := r.RunState(true); got != StateIdleWithPendingRequests {
		t.Fatalf("expected StateIdleWithPendingRequests, got %v", got)
	}
	if got := r.RunState(false); got != StateInProgressPendingRequests {
		t.Fatalf("expected StateInProgressPendingRequests, got %v", got)
	}
}
