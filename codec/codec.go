// Package codec chooses and executes the cheapest wire representation for a
// state transition: the full value, an appended string suffix, or a
// structural patch. Strategies are pure and usable standalone, independent
// of sessions and transports.
package codec

import (
	"encoding/json"
	"fmt"
)

// Mode tags the wire representation of a Payload.
type Mode string

const (
	ValueMode Mode = "value"
	DeltaMode Mode = "delta"
	PatchMode Mode = "patch"
)

type (
	// Payload is the wire artifact of one state transition. Data depends on
	// Mode: the full next value (value), the appended string suffix (delta)
	// or an ordered RFC 6902 operation list (patch).
	Payload struct {
		Mode Mode            `json:"mode"`
		Data json.RawMessage `json:"data"`
	}

	// Strategy encodes a (current, next) transition into a Payload and
	// decodes a Payload against the current value, with the round-trip law
	// Decode(current, Encode(current, next)) == next for all inputs the
	// strategy is applicable to. Values are JSON-shaped: strings, numbers
	// (float64), bools, nil, map[string]interface{} and []interface{}.
	Strategy interface {
		Encode(current, next interface{}) (Payload, error)
		Decode(current interface{}, payload Payload) (interface{}, error)
	}
)

// DecodeError is a fatal decode inconsistency: the payload cannot be legally
// applied to the given current value. It signals an out-of-order application
// or an upstream protocol bug and must never be absorbed.
type DecodeError struct {
	Mode   Mode
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode (%s mode): %s: %v", e.Mode, e.Reason, e.Err)
	}

	return fmt.Sprintf("decode (%s mode): %s", e.Mode, e.Reason)
}

// Unwrap returns the underlying cause (if any).
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// newDecodeError creates a DecodeError without a cause.
func newDecodeError(mode Mode, reason string) *DecodeError {
	return &DecodeError{Mode: mode, Reason: reason}
}

// wrapDecodeError creates a DecodeError with a cause.
func wrapDecodeError(mode Mode, reason string, err error) *DecodeError {
	return &DecodeError{Mode: mode, Reason: reason, Err: err}
}

// Normalize rebuilds an arbitrary JSON-representable value in the canonical
// in-memory shape strategies operate on (maps, slices, float64, string).
func Normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return out, nil
}
