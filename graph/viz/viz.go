// Package viz renders a built Workflow's routing structure as DOT or
// Mermaid source, for pasting into graphviz or a Mermaid-aware renderer.
// Nothing here touches a live run; it only reads the immutable
// executor/edge-group set the validator already checked at Build time.
package viz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentflow-dev/workflow/graph"
)

// grapher is the slice of *graph.Workflow this package depends on, kept
// narrow so a test double doesn't need a full Workflow.
type grapher interface {
	StartExecutorID() string
	ExecutorIDs() []string
	EdgeGroups() []graph.EdgeGroup
}

// Renderer exports one workflow's graph structure in DOT or Mermaid form.
type Renderer struct {
	wf grapher
}

// New builds a Renderer over wf.
func New(wf *graph.Workflow) *Renderer { return &Renderer{wf: wf} }

// newRenderer builds a Renderer over any grapher, used by this package's
// own tests to exercise rendering rules without a full built Workflow.
func newRenderer(g grapher) *Renderer { return &Renderer{wf: g} }

type fanInNode struct {
	id      string
	sources []string
	target  string
}

type renderEdge struct {
	source      string
	target      string
	conditional bool
}

func (r *Renderer) fanIns() []fanInNode {
	var out []fanInNode
	for _, g := range r.wf.EdgeGroups() {
		if g.Kind() != "fan_in" {
			continue
		}
		sources := append([]string{}, g.Sources()...)
		sort.Strings(sources)
		target := g.FanInTarget()
		out = append(out, fanInNode{id: fanInDigestID(target, sources), sources: sources, target: target})
	}
	return out
}

func (r *Renderer) normalEdges() []renderEdge {
	var out []renderEdge
	for _, g := range r.wf.EdgeGroups() {
		switch g.Kind() {
		case "fan_in":
			continue
		case "single":
			src := g.Sources()[0]
			out = append(out, renderEdge{source: src, target: g.TargetIDSet()[0], conditional: g.HasGate()})
		case "fan_out":
			src := g.Sources()[0]
			for _, t := range g.TargetIDSet() {
				out = append(out, renderEdge{source: src, target: t, conditional: g.HasSelector()})
			}
		case "switch_case":
			src := g.Sources()[0]
			for _, c := range g.Cases() {
				out = append(out, renderEdge{source: src, target: c.TargetID, conditional: true})
			}
			out = append(out, renderEdge{source: src, target: g.DefaultTargetID(), conditional: false})
		}
	}
	return out
}

// fanInDigestID names a fan-in's synthetic aggregator node deterministically
// from its (sorted) sources and target, so re-rendering the same graph
// yields the same node id.
func fanInDigestID(target string, sortedSources []string) string {
	sum := sha256.Sum256([]byte(target + "|" + strings.Join(sortedSources, "|")))
	return "fan_in::" + target + "::" + hex.EncodeToString(sum[:])[:8]
}

// ToDigraph renders the workflow as a DOT format digraph: the start
// executor is highlighted, fan-in groups render as an intermediate
// ellipse node joining their sources to their target, and gated/selected
// edges render dashed and labeled "conditional".
func (r *Renderer) ToDigraph() string {
	var b strings.Builder
	b.WriteString("digraph Workflow {\n")
	b.WriteString("  rankdir=TD;\n")
	b.WriteString("  node [shape=box, style=filled, fillcolor=lightblue];\n")
	b.WriteString("  edge [color=black, arrowhead=vee];\n\n")

	start := r.wf.StartExecutorID()
	fmt.Fprintf(&b, "  %q [fillcolor=lightgreen, label=%q];\n", start, start+`\n(Start)`)

	ids := r.wf.ExecutorIDs()
	sort.Strings(ids)
	for _, id := range ids {
		if id == start {
			continue
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", id, id)
	}

	fanIns := r.fanIns()
	if len(fanIns) > 0 {
		b.WriteString("\n")
		for _, fi := range fanIns {
			fmt.Fprintf(&b, "  %q [shape=ellipse, fillcolor=lightgoldenrod, label=\"fan-in\"];\n", fi.id)
		}
	}
	for _, fi := range fanIns {
		for _, src := range fi.sources {
			fmt.Fprintf(&b, "  %q -> %q;\n", src, fi.id)
		}
		fmt.Fprintf(&b, "  %q -> %q;\n", fi.id, fi.target)
	}

	for _, e := range r.normalEdges() {
		if e.conditional {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=\"conditional\"];\n", e.source, e.target)
		} else {
			fmt.Fprintf(&b, "  %q -> %q;\n", e.source, e.target)
		}
	}

	b.WriteString("}")
	return b.String()
}

var mermaidUnsafe = regexp.MustCompile(`[^0-9A-Za-z_]`)

// sanitizeMermaidID maps an executor id to a Mermaid-safe node id:
// non-alphanumerics become underscores, and an id that would not start
// with a letter is prefixed "n_".
func sanitizeMermaidID(s string) string {
	out := mermaidUnsafe.ReplaceAllString(s, "_")
	if out == "" || !isASCIILetter(out[0]) {
		out = "n_" + out
	}
	return out
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ToMermaid renders the workflow as a Mermaid flowchart, using the same
// fan-in/conditional rendering rules as ToDigraph.
func (r *Renderer) ToMermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	start := r.wf.StartExecutorID()
	fmt.Fprintf(&b, "  %s[\"%s (Start)\"];\n", sanitizeMermaidID(start), start)

	ids := r.wf.ExecutorIDs()
	sort.Strings(ids)
	for _, id := range ids {
		if id == start {
			continue
		}
		fmt.Fprintf(&b, "  %s[\"%s\"];\n", sanitizeMermaidID(id), id)
	}

	fanIns := r.fanIns()
	for _, fi := range fanIns {
		fmt.Fprintf(&b, "  %s((fan-in))\n", mermaidFanInID(fi))
	}
	for _, fi := range fanIns {
		fanID := mermaidFanInID(fi)
		for _, src := range fi.sources {
			fmt.Fprintf(&b, "  %s --> %s;\n", sanitizeMermaidID(src), fanID)
		}
		fmt.Fprintf(&b, "  %s --> %s;\n", fanID, sanitizeMermaidID(fi.target))
	}

	for _, e := range r.normalEdges() {
		s, t := sanitizeMermaidID(e.source), sanitizeMermaidID(e.target)
		if e.conditional {
			fmt.Fprintf(&b, "  %s -. conditional .-> %s;\n", s, t)
		} else {
			fmt.Fprintf(&b, "  %s --> %s;\n", s, t)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func mermaidFanInID(fi fanInNode) string {
	digest := fi.id[strings.LastIndex(fi.id, "::")+2:]
	return "fan_in__" + sanitizeMermaidID(fi.target) + "__" + digest
}
