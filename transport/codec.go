package transport

import (
	"encoding/json"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec defines the wire encoding for eviction events.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements Codec using the standard JSON library.
type JSONCodec struct{}

// Marshal serializes a value to JSON.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes a value from JSON.
func (c *JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// MsgpackCodec implements Codec using MessagePack.
type MsgpackCodec struct{}

// Marshal serializes a value to MessagePack.
func (c *MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal deserializes a value from MessagePack.
func (c *MsgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// NewMsgpackCodec creates a new MessagePack codec.
func NewMsgpackCodec() *MsgpackCodec {
	return &MsgpackCodec{}
}

// NewCodec returns a codec for the given format ("json" or "msgpack").
func NewCodec(format string) (Codec, error) {
	switch format {
	case "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, errors.New("unsupported wire format: " + format)
	}
}
