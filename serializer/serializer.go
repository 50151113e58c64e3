// Package serializer provides the pluggable value codec used by the shared
// tier. The default is a general-purpose binary object serializer backed by
// encoding/gob; an optional MessagePack codec is available for callers that
// want a compact, cross-language wire format.
package serializer

// Serializer converts arbitrary cached values to and from bytes for
// storage on the shared tier. One implementation is selected per facade
// via gcache.WithSerializer; a Descriptor carries no serializer, so every
// use case of one facade shares the same codec.
type Serializer interface {
	Serialize(value any) ([]byte, error)
	Deserialize(data []byte, out any) error
}
