package graph

import (
	"context"
	"testing"
)

func TestValidatorMissingStart(t *testing.T) {
	a := NewBaseExecutor("a")
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a}, nil, "")
	errs, _ := v.Validate()
	if len(errs) == 0 {
		t.Fatal("expected a MissingStart error")
	}
	if errs[0].Kind != MissingStart {
		t.Fatalf("expected MissingStart, got %v", errs[0].Kind)
	}
}

func TestValidatorUnknownTarget(t *testing.T) {
	a := NewBaseExecutor("a")
	groups := []EdgeGroup{NewSingleEdgeGroup("a", "ghost", nil)}
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a}, groups, "a")
	errs, _ := v.Validate()
	found := false
	for _, e := range errs {
		if e.Kind == Unreachable {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an Unreachable error for the unknown target, got %v", errs)
	}
}

func TestValidatorDuplicateEdge(t *testing.T) {
	a := NewBaseExecutor("a")
	b := NewBaseExecutor("b")
	groups := []EdgeGroup{
		NewSingleEdgeGroup("a", "b", nil),
		NewSingleEdgeGroup("a", "b", nil),
	}
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a, "b": b}, groups, "a")
	errs, _ := v.Validate()
	found := false
	for _, e := range errs {
		if e.Kind == EdgeDuplication {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an EdgeDuplication error, got %v", errs)
	}
}

func TestValidatorTypeIncompatible(t *testing.T) {
	a := NewBaseExecutor("a")
	a.RegisterHandler(Type(ConcreteOf(0)), func(ctx context.Context, payload any, hc HandlerContext) error { return nil })
	a.DeclareOutputs(Type(ConcreteOf(0)))

	b := NewBaseExecutor("b")
	b.RegisterHandler(Type(ConcreteOf("")), func(ctx context.Context, payload any, hc HandlerContext) error { return nil })

	groups := []EdgeGroup{NewSingleEdgeGroup("a", "b", nil)}
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a, "b": b}, groups, "a")
	errs, _ := v.Validate()
	found := false
	for _, e := range errs {
		if e.Kind == TypeIncompatible {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a TypeIncompatible error, got %v", errs)
	}
}

func TestValidatorSelfLoopAndCycleWarnOnly(t *testing.T) {
	a := NewBaseExecutor("a")
	groups := []EdgeGroup{NewSingleEdgeGroup("a", "a", nil)}
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a}, groups, "a")
	errs, warnings := v.Validate()
	if len(errs) != 0 {
		t.Fatalf("self-loops must not be fatal, got errors %v", errs)
	}
	selfLoopSeen, cycleSeen := false, false
	for _, w := range warnings {
		if w.Message == "self-loop on executor a" {
			selfLoopSeen = true
		}
		if w.Message == "workflow graph contains a cycle" {
			cycleSeen = true
		}
	}
	if !selfLoopSeen || !cycleSeen {
		t.Fatalf("expected both a self-loop and a cycle warning, got %v", warnings)
	}
}

func TestValidatorDeadEndWarningOnly(t *testing.T) {
	a := NewBaseExecutor("a")
	b := NewBaseExecutor("b")
	groups := []EdgeGroup{NewSingleEdgeGroup("a", "b", nil)}
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a, "b": b}, groups, "a")
	errs, warnings := v.Validate()
	if len(errs) != 0 {
		t.Fatalf("a reachable terminal node must not be fatal, got errors %v", errs)
	}

	found := false
	for _, w := range warnings {
		if containsStr(w.Message, "b") && containsStr(w.Message, "dead end") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a dead-end warning for b, got %v", warnings)
	}
}

func TestValidatorIsolatedNodeIsFatal(t *testing.T) {
	a := NewBaseExecutor("a")
	isolated := NewBaseExecutor("isolated")
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a, "isolated": isolated}, nil, "a")
	errs, _ := v.Validate()

	found := false
	for _, e := range errs {
		if e.Kind == Isolated && containsStr(e.Message, "isolated") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a fatal Isolated error for the isolated executor, got %v", errs)
	}
}

func TestValidatorUnreachableComponentIsFatal(t *testing.T) {
	a := NewBaseExecutor("a")
	c := NewBaseExecutor("c")
	d := NewBaseExecutor("d")
	// c->d forms its own connected component, never reached from start "a".
	groups := []EdgeGroup{NewSingleEdgeGroup("c", "d", nil)}
	v := NewWorkflowGraphValidator(map[string]Executor{"a": a, "c": c, "d": d}, groups, "a")
	errs, _ := v.Validate()

	got := map[string]ValidationErrorKind{}
	for _, e := range errs {
		if containsStr(e.Message, "executor c ") {
			got["c"] = e.Kind
		}
		if containsStr(e.Message, "executor d ") {
			got["d"] = e.Kind
		}
	}
	if got["c"] != Unreachable || got["d"] != Unreachable {
		t.Fatalf("expected fatal Unreachable errors for both c and d, got %v (errs=%v)", got, errs)
	}
}

func containsStr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
