package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentflow-dev/workflow/graph"
	"github.com/agentflow-dev/workflow/graph/tool"
)

// maxToolRounds bounds how many back-and-forth tool-call/tool-result turns
// a single handleRun invocation will drive, so a misbehaving agent that
// keeps requesting tools can't spin the handler forever.
const maxToolRounds = 4

// RunRequest is the payload an upstream executor sends to ask an
// AgentExecutor to complete a turn.
type RunRequest struct {
	Messages []Message
	Options  RunOptions
}

// AgentExecutor wraps an Agent as a workflow Executor: it handles
// RunRequest, drives the wrapped Agent, and emits AgentRun/AgentRunUpdate
// events as it goes — the one concrete place those event kinds are
// exercised end to end. The call is routed to Run or RunStream based on
// HandlerContext.IsStreaming, so one executor definition serves both a
// plain Workflow.Run and a Workflow.RunStreaming entry point.
type AgentExecutor struct {
	*graph.BaseExecutor

	agent     Agent
	thread    *Thread
	forwardTo string
	tools     map[string]tool.Tool
}

// Option configures an AgentExecutor at construction time.
type Option func(*AgentExecutor)

// WithForwardTo sends the agent's Response on to targetID once a run
// completes, in addition to the AgentRun event. Leave unset if the caller
// only wants the event and will read the response off it directly.
func WithForwardTo(targetID string) Option {
	return func(e *AgentExecutor) { e.forwardTo = targetID }
}

// WithThread seeds the executor with an existing Thread (e.g. restored via
// DeserializeThread) instead of starting a fresh one from agent.NewThread().
func WithThread(thread *Thread) Option {
	return func(e *AgentExecutor) { e.thread = thread }
}

// WithTools registers tools the executor will invoke on the agent's behalf
// whenever a Response carries ToolCalls naming one of them. Results are fed
// back to the agent as follow-up messages, up to maxToolRounds turns.
func WithTools(tools ...tool.Tool) Option {
	return func(e *AgentExecutor) {
		if e.tools == nil {
			e.tools = make(map[string]tool.Tool, len(tools))
		}
		for _, t := range tools {
			e.tools[t.Name()] = t
		}
	}
}

// NewAgentExecutor constructs an AgentExecutor with the given id, wrapping
// ag. Without options the resulting executor's Response is only observable
// via the AgentRun event it emits.
func NewAgentExecutor(id string, ag Agent, opts ...Option) *AgentExecutor {
	e := &AgentExecutor{
		BaseExecutor: graph.NewBaseExecutor(id),
		agent:        ag,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.thread == nil {
		e.thread = ag.NewThread()
	}
	e.RegisterHandler(graph.ConcreteOf(RunRequest{}), e.handleRun)
	e.DeclareOutputs(graph.ConcreteOf(Response{}))
	return e
}

// Thread exposes the executor's running conversation thread, for callers
// that want to Serialize it alongside their own checkpointing.
func (e *AgentExecutor) Thread() *Thread { return e.thread }

func (e *AgentExecutor) handleRun(ctx context.Context, payload any, hc graph.HandlerContext) error {
	req := payload.(RunRequest)
	e.thread.Append(req.Messages...)

	var resp *Response
	if hc.IsStreaming() {
		r, err := e.runStreaming(ctx, req, hc)
		if err != nil {
			return err
		}
		resp = r
	} else {
		r, err := e.agent.Run(ctx, req.Messages, e.thread, req.Options)
		if err != nil {
			return err
		}
		resp = r
	}

	resp, err := e.resolveToolCalls(ctx, resp, req.Options)
	if err != nil {
		return err
	}

	e.thread.Append(Message{Role: RoleAssistant, Content: resp.Text})
	hc.AddEvent(graph.AgentRun(e.ID(), *resp))
	if e.forwardTo != "" {
		hc.SendMessage(*resp, e.forwardTo)
	}
	return nil
}

// resolveToolCalls drives any tool calls a Response asks for against the
// executor's registered tools, feeding results back to the agent as
// follow-up messages until the agent stops requesting tools or
// maxToolRounds is reached. With no tools registered it is a no-op.
func (e *AgentExecutor) resolveToolCalls(ctx context.Context, resp *Response, opts RunOptions) (*Response, error) {
	if len(e.tools) == 0 {
		return resp, nil
	}

	for round := 0; round < maxToolRounds && len(resp.ToolCalls) > 0; round++ {
		results := make([]Message, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, Message{Role: RoleUser, Content: e.runTool(ctx, call)})
		}

		e.thread.Append(results...)
		next, err := e.agent.Run(ctx, results, e.thread, opts)
		if err != nil {
			return nil, fmt.Errorf("agent run after tool call: %w", err)
		}
		resp = next
	}
	return resp, nil
}

// runTool executes a single ToolCall and renders its outcome as a message
// the agent can read on the next turn.
func (e *AgentExecutor) runTool(ctx context.Context, call ToolCall) string {
	t, ok := e.tools[call.Name]
	if !ok {
		return fmt.Sprintf("[tool %s] error: no such tool registered", call.Name)
	}

	out, err := t.Call(ctx, call.Input)
	if err != nil {
		return fmt.Sprintf("[tool %s] error: %v", call.Name, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("[tool %s] error: %v", call.Name, err)
	}
	return fmt.Sprintf("[tool %s] %s", call.Name, data)
}

func (e *AgentExecutor) runStreaming(ctx context.Context, req RunRequest, hc graph.HandlerContext) (*Response, error) {
	updates, err := e.agent.RunStream(ctx, req.Messages, e.thread, req.Options)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	var toolCalls []ToolCall
	for u := range updates {
		hc.AddEvent(graph.AgentRunUpdate(e.ID(), u))
		text.WriteString(u.TextDelta)
	}
	return &Response{Text: text.String(), ToolCalls: toolCalls}, nil
}
