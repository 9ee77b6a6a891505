// Package graph implements a Pregel-style, message-passing workflow engine.
//
// A workflow is a static graph of executors connected by edge groups. At
// runtime the superstep runner drains pending messages, routes them through
// the edge groups associated with their source, invokes target executors
// concurrently, and repeats until no messages remain or the run is parked
// waiting on external input.
package graph

import "github.com/google/uuid"

// Message is an immutable envelope carrying a payload between executors.
//
// SourceID identifies the executor (or synthetic source, for fan-in
// deliveries) that produced the message and must never be empty. TargetID
// restricts delivery to a single target executor; an empty TargetID means
// the message is eligible for delivery through any edge group registered
// for SourceID.
type Message struct {
	Payload  any
	SourceID string
	TargetID string

	// TraceContexts carries causal-linking identifiers from every message
	// that contributed to this one. A fan-in delivery aggregates the trace
	// contexts of all of its constituent messages onto the synthetic
	// message it produces.
	TraceContexts []string

	// SourceSpanID uniquely identifies the emission of this message for
	// tracing purposes. Generated automatically if not supplied.
	SourceSpanID string
}

// NewMessage constructs a Message from sourceID, with an optional targetID
// (pass "" for broadcast delivery). sourceID must be non-empty; this is an
// invariant of the data model, not separately re-validated at delivery time.
func NewMessage(payload any, sourceID, targetID string) Message {
	return Message{
		Payload:      payload,
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceSpanID: uuid.NewString(),
	}
}

// WithTrace returns a copy of m with the given trace contexts appended.
func (m Message) WithTrace(traceContexts ...string) Message {
	m.TraceContexts = append(append([]string{}, m.TraceContexts...), traceContexts...)
	return m
}
