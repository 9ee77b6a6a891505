package graph

import "testing"

func TestNewFanOutEdgeGroupRequiresTwoTargets(t *testing.T) {
	if _, err := NewFanOutEdgeGroup("src", []string{"only"}, nil); err == nil {
		t.Fatal("expected an error for a FanOut group with fewer than 2 targets")
	}
	if _, err := NewFanOutEdgeGroup("src", []string{"a", "b"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSwitchCaseEdgeGroupRequiresDefault(t *testing.T) {
	cases := []SwitchCase{{Name: "one", Predicate: func(any) bool { return true }, TargetID: "a"}}
	if _, err := NewSwitchCaseEdgeGroup("src", cases, ""); err == nil {
		t.Fatal("expected an error when defaultTargetID is empty")
	}
	if _, err := NewSwitchCaseEdgeGroup("src", cases, "default"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFanInEdgeGroupRequiresTwoSources(t *testing.T) {
	if _, err := NewFanInEdgeGroup([]string{"only"}, "tgt"); err == nil {
		t.Fatal("expected an error for a FanIn group with fewer than 2 sources")
	}
	if _, err := NewFanInEdgeGroup([]string{"a", "b"}, "tgt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEdgeGroupTargetIDSetAndEdgeIDs(t *testing.T) {
	g := NewSingleEdgeGroup("a", "b", nil)
	if got := g.TargetIDSet(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected TargetIDSet {b}, got %v", got)
	}
	if got := g.EdgeIDs(); len(got) != 1 || got[0] != "a->b" {
		t.Fatalf("expected EdgeIDs {a->b}, got %v", got)
	}

	fanIn, err := NewFanInEdgeGroup([]string{"a", "b"}, "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := fanIn.EdgeIDs()
	want := map[string]bool{"a->c": true, "b->c": true}
	if len(ids) != 2 || !want[ids[0]] || !want[ids[1]] {
		t.Fatalf("expected fan-in edge ids {a->c, b->c}, got %v", ids)
	}
}
