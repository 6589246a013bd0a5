// Package codec converts checkpoint and history payloads to and from the
// textual form stored in Redis. Raw byte payloads become hex text; everything
// else is JSON. Which of the two applies is carried by the caller alongside
// the encoded value, the payload does not self-describe it.
package codec

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEncode reports a value with no storable representation.
	ErrEncode = errors.New("codec: value is not encodable")
	// ErrDecode reports malformed hex or malformed JSON text.
	ErrDecode = errors.New("codec: payload is not decodable")
)

// Dumps encodes v into its storable text form. A []byte payload is hex
// encoded and reported as binary; any other value is JSON encoded.
func Dumps(v any) (payload string, binary bool, err error) {
	if raw, ok := v.([]byte); ok {
		return hex.EncodeToString(raw), true, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return string(encoded), false, nil
}

// Loads reverses Dumps. With binary=true the payload is hex-decoded back to
// the original byte sequence; otherwise it is parsed as JSON into a generic
// value.
func Loads(payload string, binary bool) (any, error) {
	if binary {
		raw, err := hex.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return raw, nil
	}
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// Unmarshal parses a structured payload into out. Used by the store to
// rehydrate typed records; failures carry the same ErrDecode taxonomy as
// Loads.
func Unmarshal(payload string, out any) error {
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
