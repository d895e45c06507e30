package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a payload can't be decoded into a message.
var ErrMalformed = errors.New("protocol: malformed message")

// Encode serializes the message with its type field.
func Encode(msg Message) ([]byte, error) {
	var wire any
	switch m := msg.(type) {
	case Identify:
		wire = struct {
			Type Type `json:"type"`
			Identify
		}{m.Type(), m}
	case Update:
		wire = struct {
			Type Type `json:"type"`
			Update
		}{m.Type(), m}
	case Extra:
		wire = struct {
			Type Type `json:"type"`
			Extra
		}{m.Type(), m}
	case Unknown:
		if len(m.Raw) == 0 {
			return nil, fmt.Errorf("encode %q: empty raw message", m.Kind)
		}
		return m.Raw, nil
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", msg)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", msg.Type(), err)
	}

	return data, nil
}

// Decode parses a message from its wire form.
// Payload of known types is validated, unknown types are kept verbatim.
func Decode(data []byte) (Message, error) {
	var header struct {
		Type *Type `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if header.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch *header.Type {
	case TypeIdentify:
		return decodeTyped[Identify](data)
	case TypeUpdate:
		return decodeTyped[Update](data)
	case TypeExtra:
		return decodeTyped[Extra](data)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Kind: *header.Type, Raw: raw}, nil
	}
}

func decodeTyped[T Message](data []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return msg, nil
}
