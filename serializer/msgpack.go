package serializer

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is an optional Serializer producing a compact, cross-language
// wire format. The teacher's own encoding utilities left MessagePack as a
// documented-but-unimplemented codec path; this wires a real library in
// that slot for callers who install it explicitly with
// gcache.WithSerializer.
type Msgpack struct{}

// NewMsgpack returns a MessagePack-backed serializer.
func NewMsgpack() Msgpack { return Msgpack{} }

func (Msgpack) Serialize(value any) ([]byte, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("msgpack serialize: %w", err)
	}
	return data, nil
}

func (Msgpack) Deserialize(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("msgpack deserialize: %w", err)
	}
	return nil
}
