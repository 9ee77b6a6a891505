package graph

import "fmt"

// WorkflowGraphValidator checks a builder's accumulated executors and edge
// groups for the fatal and advisory conditions of spec.md §4.7: edge
// identity uniqueness, type compatibility, and reachability from the start
// executor are fatal; self-loops, handler ambiguity, dead-ends, and cycles
// are warnings only.
type WorkflowGraphValidator struct {
	executors       map[string]Executor
	groups          []EdgeGroup
	startExecutorID string
}

// NewWorkflowGraphValidator constructs a validator over a builder's
// accumulated state.
func NewWorkflowGraphValidator(executors map[string]Executor, groups []EdgeGroup, startExecutorID string) *WorkflowGraphValidator {
	return &WorkflowGraphValidator{executors: executors, groups: groups, startExecutorID: startExecutorID}
}

// Validate runs every check and returns the fatal errors and the
// non-fatal warnings separately.
func (v *WorkflowGraphValidator) Validate() (errs []*ValidationError, warnings []*ValidationWarning) {
	if v.startExecutorID == "" {
		errs = append(errs, &ValidationError{Kind: MissingStart, Message: "no start executor set"})
	} else if _, ok := v.executors[v.startExecutorID]; !ok {
		errs = append(errs, &ValidationError{Kind: MissingStart, Message: "start executor " + v.startExecutorID + " is not registered"})
	}

	errs = append(errs, v.checkEdgeUniqueness()...)
	errs = append(errs, v.checkUnknownTargets()...)
	errs = append(errs, v.checkTypeCompatibility()...)
	errs = append(errs, v.checkReachability()...)

	warnings = append(warnings, v.checkSelfLoops()...)
	warnings = append(warnings, v.checkAmbiguity()...)
	warnings = append(warnings, v.checkDeadEnds()...)
	warnings = append(warnings, v.checkCycles()...)

	return errs, warnings
}

func (v *WorkflowGraphValidator) checkEdgeUniqueness() []*ValidationError {
	seen := map[string]bool{}
	var errs []*ValidationError
	for _, g := range v.groups {
		for _, id := range g.EdgeIDs() {
			if seen[id] {
				errs = append(errs, &ValidationError{Kind: EdgeDuplication, Message: "duplicate edge " + id})
				continue
			}
			seen[id] = true
		}
	}
	return errs
}

func (v *WorkflowGraphValidator) checkUnknownTargets() []*ValidationError {
	var errs []*ValidationError
	for _, g := range v.groups {
		for _, src := range g.sourceIDs {
			if _, ok := v.executors[src]; !ok {
				errs = append(errs, &ValidationError{Kind: Unreachable, Message: "edge source " + src + " is not a registered executor"})
			}
		}
		for _, tgt := range g.TargetIDSet() {
			if _, ok := v.executors[tgt]; !ok {
				errs = append(errs, &ValidationError{Kind: Unreachable, Message: "edge target " + tgt + " is not a registered executor"})
			}
		}
	}
	return errs
}

// checkTypeCompatibility compares a source's declared output types (via
// TypedExecutor) against a target's declared input types, when both sides
// opt in. Executors that do not implement TypedExecutor are skipped
// silently: spec.md §4.7 treats unannotated executors as a warning, not a
// build failure, and that warning is folded into checkAmbiguity instead of
// duplicated here.
func (v *WorkflowGraphValidator) checkTypeCompatibility() []*ValidationError {
	var errs []*ValidationError
	for _, g := range v.groups {
		for _, src := range g.sourceIDs {
			srcEx, ok := v.executors[src].(TypedExecutor)
			if !ok {
				continue
			}
			outputs := srcEx.OutputTypes()
			if len(outputs) == 0 {
				continue
			}
			for _, tgt := range g.TargetIDSet() {
				tgtEx, ok := v.executors[tgt].(TypedExecutor)
				if !ok {
					continue
				}
				inputs := tgtEx.InputTypes()
				if len(inputs) == 0 {
					continue
				}
				if !anyAssignable(outputs, inputs) {
					errs = append(errs, &ValidationError{
						Kind:    TypeIncompatible,
						Message: fmt.Sprintf("no declared output of %s is assignable to any declared input of %s", src, tgt),
					})
				}
			}
		}
	}
	return errs
}

func anyAssignable(outputs, inputs []Type) bool {
	for _, o := range outputs {
		for _, i := range inputs {
			if Assignable(o, i) {
				return true
			}
		}
	}
	return false
}

func (v *WorkflowGraphValidator) checkSelfLoops() []*ValidationWarning {
	var warnings []*ValidationWarning
	for _, g := range v.groups {
		for _, src := range g.sourceIDs {
			for _, tgt := range g.TargetIDSet() {
				if src == tgt {
					warnings = append(warnings, &ValidationWarning{Message: "self-loop on executor " + src})
				}
			}
		}
	}
	return warnings
}

// checkAmbiguity warns when an executor is not a TypedExecutor or declares
// no static input types, matching spec.md §4.7's unannotated-executor
// policy. An executor that mixes structural-matcher handlers with
// declared-Type handlers is not warned about.
func (v *WorkflowGraphValidator) checkAmbiguity() []*ValidationWarning {
	var warnings []*ValidationWarning
	for id, ex := range v.executors {
		typed, ok := ex.(TypedExecutor)
		if !ok {
			warnings = append(warnings, &ValidationWarning{Message: "executor " + id + " declares no static input/output types"})
			continue
		}
		if len(typed.InputTypes()) == 0 {
			warnings = append(warnings, &ValidationWarning{Message: "executor " + id + " has only structural-matcher handlers"})
		}
	}
	return warnings
}

// checkReachability performs a BFS from the start executor over the
// edge-group graph and fails the build for every executor it never
// reaches, per spec.md §4.7 ("isolated nodes … are rejected") and §8
// testable property 5 ("any executor not reachable from the start
// executor causes validation failure"). A node with neither an inbound
// nor an outbound edge is reported as Isolated; anything else the BFS
// never reaches (e.g. a separate connected component with its own
// internal edges) is reported as Unreachable.
func (v *WorkflowGraphValidator) checkReachability() []*ValidationError {
	if _, ok := v.executors[v.startExecutorID]; !ok {
		// MissingStart already covers this case.
		return nil
	}

	adj := map[string][]string{}
	hasInbound := map[string]bool{}
	hasOutbound := map[string]bool{}
	for _, g := range v.groups {
		for _, src := range g.sourceIDs {
			hasOutbound[src] = true
			adj[src] = append(adj[src], g.TargetIDSet()...)
		}
		for _, tgt := range g.TargetIDSet() {
			hasInbound[tgt] = true
		}
	}

	reached := map[string]bool{v.startExecutorID: true}
	queue := []string{v.startExecutorID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var errs []*ValidationError
	for id := range v.executors {
		if reached[id] {
			continue
		}
		if !hasInbound[id] && !hasOutbound[id] {
			errs = append(errs, &ValidationError{Kind: Isolated, Message: "executor " + id + " has no incoming or outgoing edges"})
			continue
		}
		errs = append(errs, &ValidationError{Kind: Unreachable, Message: "executor " + id + " is not reachable from the start executor"})
	}
	return errs
}

// checkDeadEnds warns about executors with no outbound edge, rather than
// failing the build, since a RequestInfoExecutor target or a deliberate
// terminal node legitimately has no outbound edges.
func (v *WorkflowGraphValidator) checkDeadEnds() []*ValidationWarning {
	hasOutbound := map[string]bool{}
	for _, g := range v.groups {
		for _, src := range g.sourceIDs {
			hasOutbound[src] = true
		}
	}

	var warnings []*ValidationWarning
	for id := range v.executors {
		if id == v.startExecutorID {
			continue
		}
		if !hasOutbound[id] {
			warnings = append(warnings, &ValidationWarning{Message: "executor " + id + " has no outbound edge (dead end)"})
		}
	}
	return warnings
}

// checkCycles reports a warning (never a fatal error) when the edge graph
// contains a cycle: cycles are expected in iterative workflows and are
// bounded at runtime by the superstep cap, not rejected at build time
// (spec.md §4.7, §7).
func (v *WorkflowGraphValidator) checkCycles() []*ValidationWarning {
	adj := map[string][]string{}
	for _, g := range v.groups {
		for _, src := range g.sourceIDs {
			adj[src] = append(adj[src], g.TargetIDSet()...)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var cyclic bool

	var visit func(id string)
	visit = func(id string) {
		if cyclic {
			return
		}
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				cyclic = true
				return
			case white:
				visit(next)
			}
		}
		color[id] = black
	}

	for id := range v.executors {
		if color[id] == white {
			visit(id)
		}
	}

	if cyclic {
		return []*ValidationWarning{{Message: "workflow graph contains a cycle"}}
	}
	return nil
}
