package graph

import "encoding/json"

// Codec encodes and decodes opaque payload values at the two boundaries
// that must see bytes rather than live Go values: checkpoint persistence
// and diagnostic logging (spec.md §9: "the runtime must not depend on
// payload shape beyond type tags"). The runner and edge layer never call
// Codec directly for routing decisions — only CheckpointStorage writers and
// the ambient emit.Emitter touch it.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte, out any) error
}

// JSONCodec is the default Codec, grounded on the teacher's exclusive use
// of encoding/json for all persisted state (graph/store/*.go).
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) { return json.Marshal(value) }

func (JSONCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }
