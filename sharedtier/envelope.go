package sharedtier

import (
	"encoding/binary"
	"fmt"
)

// envelope wraps a serialized value with the monotonic creation timestamp
// (milliseconds) a watermark comparison is checked against. It is framed
// independently of the user-selectable value Serializer: the first 8
// bytes are a fixed big-endian timestamp header, followed by the
// serializer's output verbatim.
type envelope struct {
	createdAtMs int64
	payload     []byte
}

func encodeEnvelope(e envelope) []byte {
	out := make([]byte, 8+len(e.payload))
	binary.BigEndian.PutUint64(out[:8], uint64(e.createdAtMs))
	copy(out[8:], e.payload)
	return out
}

func decodeEnvelope(data []byte) (envelope, error) {
	if len(data) < 8 {
		return envelope{}, fmt.Errorf("sharedtier: envelope too short (%d bytes)", len(data))
	}
	createdAt := int64(binary.BigEndian.Uint64(data[:8]))
	payload := make([]byte, len(data)-8)
	copy(payload, data[8:])
	return envelope{createdAtMs: createdAt, payload: payload}, nil
}
