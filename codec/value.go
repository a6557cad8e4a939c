package codec

import (
	"encoding/json"
	"fmt"
)

// ValueStrategy transmits the full next value. The baseline: always
// applicable, never optimal.
type ValueStrategy struct{}

// Encode implements Strategy interface.
func (ValueStrategy) Encode(_, next interface{}) (Payload, error) {
	raw, err := json.Marshal(next)
	if err != nil {
		return Payload{}, fmt.Errorf("encode (%s mode): marshal next: %w", ValueMode, err)
	}

	return Payload{Mode: ValueMode, Data: raw}, nil
}

// Decode implements Strategy interface. The current value is ignored.
func (ValueStrategy) Decode(_ interface{}, payload Payload) (interface{}, error) {
	if payload.Mode != ValueMode {
		return nil, newDecodeError(payload.Mode, "payload mode mismatch, want value")
	}

	var out interface{}
	if err := json.Unmarshal(payload.Data, &out); err != nil {
		return nil, wrapDecodeError(ValueMode, "unmarshal data", err)
	}

	return out, nil
}
