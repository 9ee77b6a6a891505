package agent

import (
	"github.com/agentflow-dev/workflow/graph"
	"github.com/google/uuid"
)

// Thread is a service thread id plus its ordered message history, the
// minimum state a conversation needs to round-trip across a process
// restart or a checkpoint/restore cycle.
type Thread struct {
	ID       string
	Messages []Message
}

// NewThread constructs a Thread with a fresh random id.
func NewThread() *Thread {
	return &Thread{ID: uuid.NewString()}
}

// Append records messages onto the thread's history in order.
func (t *Thread) Append(messages ...Message) {
	t.Messages = append(t.Messages, messages...)
}

// threadWire is the JSON shape a Thread serializes to; kept distinct from
// Thread itself so field renames on the live type don't silently change
// the wire format.
type threadWire struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// Serialize encodes the thread via codec. A nil codec defaults to
// graph.JSONCodec{}, the runtime's own default.
func (t *Thread) Serialize(codec graph.Codec) ([]byte, error) {
	if codec == nil {
		codec = graph.JSONCodec{}
	}
	return codec.Encode(threadWire{ID: t.ID, Messages: t.Messages})
}

// DeserializeThread rebuilds a Thread from bytes produced by Serialize.
func DeserializeThread(data []byte, codec graph.Codec) (*Thread, error) {
	if codec == nil {
		codec = graph.JSONCodec{}
	}
	var w threadWire
	if err := codec.Decode(data, &w); err != nil {
		return nil, err
	}
	return &Thread{ID: w.ID, Messages: w.Messages}, nil
}
