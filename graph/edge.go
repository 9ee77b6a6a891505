package graph

import "strings"

// Predicate gates or selects on a payload value.
type Predicate func(payload any) bool

// Edge is a directed pair (source, target) plus an optional gate
// predicate. Identity is "{source}->{target}"; identities must be unique
// across a whole graph (spec.md §3).
type Edge struct {
	SourceID string
	TargetID string
	Gate     Predicate
}

// ID returns the edge's unique identity string.
func (e Edge) ID() string { return edgeIDString(e.SourceID, e.TargetID) }

// SwitchCase is one ordered case of a SwitchCase edge group.
type SwitchCase struct {
	Name      string
	Predicate Predicate
	TargetID  string
}

// groupKind tags which EdgeGroup variant a value represents.
type groupKind int

const (
	kindSingle groupKind = iota
	kindFanOut
	kindSwitchCase
	kindFanIn
)

// EdgeGroup is the tagged union of the four routing primitives described in
// spec.md §3: Single, FanOut, SwitchCase, FanIn.
type EdgeGroup struct {
	kind groupKind

	// sourceIDs holds one entry for Single/FanOut/SwitchCase, and every
	// declared source (in join order) for FanIn.
	sourceIDs []string

	// targetIDs holds one entry for Single, the declared target set for
	// FanOut, and is empty for SwitchCase (targets come from cases) and
	// FanIn (single target, stored in fanInTarget).
	targetIDs []string

	gate     Predicate
	selector func(payload any, targetIDs []string) ([]string, error)

	cases           []SwitchCase
	defaultTargetID string

	fanInTarget string
}

// NewSingleEdgeGroup builds a Single edge group with an optional gate.
func NewSingleEdgeGroup(sourceID, targetID string, gate Predicate) EdgeGroup {
	return EdgeGroup{kind: kindSingle, sourceIDs: []string{sourceID}, targetIDs: []string{targetID}, gate: gate}
}

// NewFanOutEdgeGroup builds a FanOut edge group broadcasting from sourceID
// to every id in targetIDs, optionally narrowed per-message by selector. A
// nil selector broadcasts to all declared targets. len(targetIDs) must be
// >= 2 (spec.md §3).
func NewFanOutEdgeGroup(sourceID string, targetIDs []string, selector func(payload any, targetIDs []string) ([]string, error)) (EdgeGroup, error) {
	if len(targetIDs) < 2 {
		return EdgeGroup{}, &ValidationError{Kind: TypeIncompatible, Message: "FanOut requires at least 2 targets"}
	}
	return EdgeGroup{kind: kindFanOut, sourceIDs: []string{sourceID}, targetIDs: append([]string{}, targetIDs...), selector: selector}, nil
}

// NewSwitchCaseEdgeGroup builds a SwitchCase edge group: cases are
// evaluated in order, the first matching predicate wins, and
// defaultTargetID is used when none match. Total arms (len(cases)+1) must
// be >= 2 and defaultTargetID must be non-empty (spec.md §3, §8 property 3).
func NewSwitchCaseEdgeGroup(sourceID string, cases []SwitchCase, defaultTargetID string) (EdgeGroup, error) {
	if defaultTargetID == "" {
		return EdgeGroup{}, &ValidationError{Kind: TypeIncompatible, Message: "SwitchCase requires exactly one default target"}
	}
	if len(cases)+1 < 2 {
		return EdgeGroup{}, &ValidationError{Kind: TypeIncompatible, Message: "SwitchCase requires at least 2 total cases including default"}
	}
	g := EdgeGroup{
		kind:            kindSwitchCase,
		sourceIDs:       []string{sourceID},
		cases:           append([]SwitchCase{}, cases...),
		defaultTargetID: defaultTargetID,
	}
	return g, nil
}

// NewFanInEdgeGroup builds a FanIn edge group joining every id in
// sourceIDs (in declared order) into targetID. len(sourceIDs) must be >= 2
// (spec.md §3).
func NewFanInEdgeGroup(sourceIDs []string, targetID string) (EdgeGroup, error) {
	if len(sourceIDs) < 2 {
		return EdgeGroup{}, &ValidationError{Kind: TypeIncompatible, Message: "FanIn requires at least 2 sources"}
	}
	return EdgeGroup{kind: kindFanIn, sourceIDs: append([]string{}, sourceIDs...), fanInTarget: targetID}, nil
}

// TargetIDSet returns every target id this group may route to, used by the
// validator for reachability analysis.
func (g EdgeGroup) TargetIDSet() []string {
	switch g.kind {
	case kindSingle:
		return append([]string{}, g.targetIDs...)
	case kindFanOut:
		return append([]string{}, g.targetIDs...)
	case kindSwitchCase:
		out := make([]string, 0, len(g.cases)+1)
		for _, c := range g.cases {
			out = append(out, c.TargetID)
		}
		return append(out, g.defaultTargetID)
	case kindFanIn:
		return []string{g.fanInTarget}
	default:
		return nil
	}
}

// EdgeIDs returns the "{source}->{target}" identities this group
// contributes, used by the validator's edge-uniqueness check.
func (g EdgeGroup) EdgeIDs() []string {
	switch g.kind {
	case kindFanIn:
		ids := make([]string, 0, len(g.sourceIDs))
		for _, s := range g.sourceIDs {
			ids = append(ids, s+"->"+g.fanInTarget)
		}
		return ids
	default:
		src := g.sourceIDs[0]
		var ids []string
		for _, t := range g.TargetIDSet() {
			ids = append(ids, src+"->"+t)
		}
		return ids
	}
}

// Kind reports which of the four routing primitives this group is, as a
// string tag safe to switch on outside the package (e.g. workflow/viz).
func (g EdgeGroup) Kind() string {
	switch g.kind {
	case kindSingle:
		return "single"
	case kindFanOut:
		return "fan_out"
	case kindSwitchCase:
		return "switch_case"
	case kindFanIn:
		return "fan_in"
	default:
		return "unknown"
	}
}

// Sources returns every source id this group reads from, in declared order.
func (g EdgeGroup) Sources() []string { return append([]string{}, g.sourceIDs...) }

// HasGate reports whether a Single group carries a gate predicate.
func (g EdgeGroup) HasGate() bool { return g.gate != nil }

// HasSelector reports whether a FanOut group carries a narrowing selector.
func (g EdgeGroup) HasSelector() bool { return g.selector != nil }

// Cases returns a SwitchCase group's ordered cases.
func (g EdgeGroup) Cases() []SwitchCase { return append([]SwitchCase{}, g.cases...) }

// DefaultTargetID returns a SwitchCase group's fallback target.
func (g EdgeGroup) DefaultTargetID() string { return g.defaultTargetID }

// FanInTarget returns a FanIn group's single join target.
func (g EdgeGroup) FanInTarget() string { return g.fanInTarget }

func edgeIDString(sourceID, targetID string) string {
	var b strings.Builder
	b.WriteString(sourceID)
	b.WriteString("->")
	b.WriteString(targetID)
	return b.String()
}
