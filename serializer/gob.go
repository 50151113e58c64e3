package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
)

// Gob is the default Serializer: a general-purpose binary object
// serializer requiring no schema, matching the "binary object serializer"
// default the shared tier is specified to use.
//
// Concrete types cached through Gob must be registered with gob.Register
// by the caller before first use, same as any other value flowing through
// an encoding/gob interface field.
type Gob struct{}

// NewGob returns the default gob-backed serializer.
func NewGob() Gob { return Gob{} }

// RegisterGobType registers a concrete type that will flow through Gob's
// interface-typed encode/decode path. Call once per process per cached
// value type, mirroring encoding/gob's own registration requirement.
func RegisterGobType(v any) {
	gob.Register(v)
}

func (Gob) Serialize(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, fmt.Errorf("gob serialize: %w", err)
	}
	return buf.Bytes(), nil
}

func (Gob) Deserialize(data []byte, out any) error {
	var decoded any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&decoded); err != nil {
		return fmt.Errorf("gob deserialize: %w", err)
	}
	return assign(decoded, out)
}

// assign copies a decoded interface value into the caller-supplied
// destination pointer.
func assign(decoded, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("gob deserialize: out must be a non-nil pointer, got %T", out)
	}

	dv := reflect.ValueOf(decoded)
	if !dv.IsValid() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		return nil
	}
	if !dv.Type().AssignableTo(rv.Elem().Type()) {
		return fmt.Errorf("gob deserialize: decoded type %s not assignable to %s", dv.Type(), rv.Elem().Type())
	}
	rv.Elem().Set(dv)
	return nil
}
