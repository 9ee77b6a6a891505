package graph

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// RequestInfoExecutorID is the fixed, well-known id every workflow's
// RequestInfoExecutor instance must register under. Responses are routed
// back by request id, never by graph edge, so callers can always find the
// suspension point by this constant alone (spec.md §4.2).
const RequestInfoExecutorID = "request_info"

// RequestInfoMessage is implemented by any payload type an executor emits
// to request external input. TypeTag identifies the payload's expected
// shape to the caller handling the RequestInfo event.
type RequestInfoMessage interface {
	TypeTag() string
}

// BaseRequestInfo is an embeddable helper satisfying RequestInfoMessage for
// request payload types that only need a fixed tag string.
type BaseRequestInfo struct {
	Tag string
}

func (b BaseRequestInfo) TypeTag() string { return b.Tag }

type pendingRequest struct {
	SourceExecutorID string `json:"source_executor_id"`
	TypeTag          string `json:"type_tag"`
}

// RequestInfoExecutor is the single well-known suspension point: any
// executor may send it a RequestInfoMessage payload, which it turns into a
// RequestInfo event and parks pending a HandleResponse call keyed by
// request id (spec.md §3, §4.2).
type RequestInfoExecutor struct {
	*BaseExecutor

	mu      sync.Mutex
	pending map[string]pendingRequest
}

// NewRequestInfoExecutor constructs the fixed-id RequestInfoExecutor.
func NewRequestInfoExecutor() *RequestInfoExecutor {
	r := &RequestInfoExecutor{
		BaseExecutor: NewBaseExecutor(RequestInfoExecutorID),
		pending:      map[string]pendingRequest{},
	}
	r.RegisterStructuralHandler(func(p any) bool {
		_, ok := p.(RequestInfoMessage)
		return ok
	}, r.handleRequest)
	return r
}

func (r *RequestInfoExecutor) handleRequest(ctx context.Context, payload any, hc HandlerContext) error {
	msg := payload.(RequestInfoMessage)
	sources := hc.SourceExecutorIDs()
	source := ""
	if len(sources) > 0 {
		source = sources[0]
	}
	requestID := uuid.NewString()

	r.mu.Lock()
	r.pending[requestID] = pendingRequest{SourceExecutorID: source, TypeTag: msg.TypeTag()}
	r.mu.Unlock()

	hc.AddEvent(RequestInfo(requestID, source, msg.TypeTag(), msg))
	return nil
}

// HandleResponse resolves a previously issued request: the response is
// delivered as a targeted message back to the original requesting
// executor, bypassing the graph's edge groups entirely (spec.md §4.2,
// §9: "responses are injected, not routed"). Returns ErrUnknownRequest if
// requestID was never recorded or was already consumed.
func (r *RequestInfoExecutor) HandleResponse(requestID string, response any, hc HandlerContext) error {
	r.mu.Lock()
	pr, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	hc.SendMessage(response, pr.SourceExecutorID)
	return nil
}

// SnapshotState captures the outstanding-request registry so it survives a
// checkpoint/restore cycle.
func (r *RequestInfoExecutor) SnapshotState() (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make(map[string]any, len(r.pending))
	for id, pr := range r.pending {
		pending[id] = map[string]any{
			"source_executor_id": pr.SourceExecutorID,
			"type_tag":           pr.TypeTag,
		}
	}
	return map[string]any{"pending": pending}, nil
}

// RestoreState rebuilds the outstanding-request registry from a checkpoint.
func (r *RequestInfoExecutor) RestoreState(state map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = map[string]pendingRequest{}
	raw, ok := state["pending"].(map[string]any)
	if !ok {
		return nil
	}
	for id, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		source, _ := m["source_executor_id"].(string)
		tag, _ := m["type_tag"].(string)
		r.pending[id] = pendingRequest{SourceExecutorID: source, TypeTag: tag}
	}
	return nil
}

// HasPending reports whether any request issued by this executor is still
// awaiting a response, used by the runner to decide between the
// IdleWithPendingRequests and Idle run states.
func (r *RequestInfoExecutor) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}
