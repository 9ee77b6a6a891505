// Package mockagent provides a deterministic, canned-response agent.Agent
// for tests and examples that never calls an external API.
package mockagent

import (
	"context"
	"sync"

	"github.com/agentflow-dev/workflow/graph/agent"
)

// Call records one Run/RunStream invocation for later assertion.
type Call struct {
	Messages []agent.Message
	Options  agent.RunOptions
}

// Agent cycles through Responses in order, repeating the last one once
// exhausted. Setting Err makes every subsequent call fail with Err instead.
type Agent struct {
	Responses []agent.Response
	Err       error

	mu        sync.Mutex
	calls     []Call
	callIndex int
}

// New constructs an Agent that returns responses in order.
func New(responses ...agent.Response) *Agent {
	return &Agent{Responses: responses}
}

// NewThread starts a fresh thread with a random id.
func (a *Agent) NewThread() *agent.Thread { return agent.NewThread() }

// Run records the call and returns the next configured Response.
func (a *Agent) Run(ctx context.Context, messages []agent.Message, thread *agent.Thread, opts agent.RunOptions) (*agent.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Messages: messages, Options: opts})

	if a.Err != nil {
		return nil, a.Err
	}
	if len(a.Responses) == 0 {
		return &agent.Response{}, nil
	}
	idx := a.callIndex
	if idx >= len(a.Responses) {
		idx = len(a.Responses) - 1
	}
	a.callIndex++
	resp := a.Responses[idx]
	return &resp, nil
}

// RunStream adapts Run into a single-update channel: the mock has no
// notion of incremental generation, so it delivers the whole response as
// one Done update.
func (a *Agent) RunStream(ctx context.Context, messages []agent.Message, thread *agent.Thread, opts agent.RunOptions) (<-chan agent.ResponseUpdate, error) {
	resp, err := a.Run(ctx, messages, thread, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan agent.ResponseUpdate, 1)
	ch <- agent.ResponseUpdate{TextDelta: resp.Text, Done: true}
	close(ch)
	return ch, nil
}

// Reset clears the call history and rewinds to the first configured
// response.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
	a.callIndex = 0
}

// Calls returns a copy of the recorded call history.
func (a *Agent) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call{}, a.calls...)
}

// CallCount reports how many times Run/RunStream has been called.
func (a *Agent) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}
