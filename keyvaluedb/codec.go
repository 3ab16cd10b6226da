package keyvaluedb

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts stored values to bytes and back.
type Codec struct {
	Name      string
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error
}

var (
	// JSON is human readable, used by the memory backend so that test failures are easy to inspect.
	JSON = Codec{Name: "json", Marshal: json.Marshal, Unmarshal: json.Unmarshal}
	// CBOR is compact, the default of the persistent backend.
	CBOR = Codec{Name: "cbor", Marshal: cbor.Marshal, Unmarshal: cbor.Unmarshal}
)

// IsValid returns error when either of the conversion funcs is missing.
func (c Codec) IsValid() error {
	if c.Marshal == nil || c.Unmarshal == nil {
		return errInvalidCodec
	}
	return nil
}

// Encode validates key and value and encodes the value.
func (c Codec) Encode(key []byte, value any) ([]byte, error) {
	if err := CheckKeyAndValue(key, value); err != nil {
		return nil, err
	}
	b, err := c.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding value of %x (%s): %w", key, c.Name, err)
	}
	return b, nil
}

// Decode decodes data stored under key into value.
func (c Codec) Decode(key, data []byte, value any) error {
	if err := c.Unmarshal(data, value); err != nil {
		return fmt.Errorf("decoding value of %x (%s): %w", key, c.Name, err)
	}
	return nil
}
