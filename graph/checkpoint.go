package graph

import "context"

// PendingMessage is the persisted shape of a single buffered Message.
type PendingMessage struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id,omitempty"`
	Payload  any    `json:"payload"`
}

// WorkflowCheckpoint is the full state needed to resume a run, matching the
// payload layout of spec.md §6.
type WorkflowCheckpoint struct {
	WorkflowID     string                      `json:"workflow_id"`
	Messages       map[string][]PendingMessage `json:"messages"`
	SharedState    map[string]any              `json:"shared_state"`
	ExecutorStates map[string]map[string]any   `json:"executor_states"`
	IterationCount int                         `json:"iteration_count"`
	MaxIterations  int                         `json:"max_iterations"`
	Metadata       map[string]any              `json:"metadata"`
}

// CheckpointStorage is the pluggable persistence collaborator consumed by
// the runner (spec.md §6). It is an interface, not a durability guarantee —
// spec.md's Non-goals explicitly exclude durable queue semantics.
type CheckpointStorage interface {
	SaveCheckpoint(ctx context.Context, checkpoint WorkflowCheckpoint) (checkpointID string, err error)
	LoadCheckpoint(ctx context.Context, checkpointID string) (*WorkflowCheckpoint, error)
}

// CheckpointLister is an optional capability a CheckpointStorage
// implementation may offer for listing/filtering checkpoints by workflow id
// (spec.md §6: "Optional listing/filtering by workflow id").
type CheckpointLister interface {
	ListCheckpoints(ctx context.Context, workflowID string) ([]string, error)
}

func toPendingMessages(byBucket map[string][]Message) map[string][]PendingMessage {
	out := make(map[string][]PendingMessage, len(byBucket))
	for src, msgs := range byBucket {
		list := make([]PendingMessage, 0, len(msgs))
		for _, m := range msgs {
			list = append(list, PendingMessage{SourceID: m.SourceID, TargetID: m.TargetID, Payload: m.Payload})
		}
		out[src] = list
	}
	return out
}

func fromPendingMessages(saved map[string][]PendingMessage) map[string][]Message {
	out := make(map[string][]Message, len(saved))
	for src, list := range saved {
		msgs := make([]Message, 0, len(list))
		for _, pm := range list {
			msgs = append(msgs, Message{SourceID: pm.SourceID, TargetID: pm.TargetID, Payload: pm.Payload})
		}
		out[src] = msgs
	}
	return out
}
