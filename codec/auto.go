package codec

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// AutoStrategy selects the cheapest applicable representation: delta for
// append-growing strings, the smaller of patch and value for structured
// values, value for everything else. It has no decode logic of its own
// beyond dispatching on the payload mode tag.
type AutoStrategy struct{}

// Encode implements Strategy interface.
func (AutoStrategy) Encode(current, next interface{}) (Payload, error) {
	_, curIsStr := current.(string)
	_, nextIsStr := next.(string)
	if curIsStr && nextIsStr {
		// Delta when the append precondition holds, value otherwise
		return DeltaStrategy{}.Encode(current, next)
	}

	cur, err := Normalize(current)
	if err != nil {
		return Payload{}, fmt.Errorf("encode (auto): current: %w", err)
	}
	nxt, err := Normalize(next)
	if err != nil {
		return Payload{}, fmt.Errorf("encode (auto): next: %w", err)
	}

	valuePayload, err := ValueStrategy{}.Encode(cur, nxt)
	if err != nil {
		return Payload{}, err
	}

	if !sameStructuredKind(cur, nxt) {
		return valuePayload, nil
	}

	patchPayload, err := PatchStrategy{}.Encode(cur, nxt)
	if err != nil {
		return Payload{}, err
	}
	if patchPayload.Mode != PatchMode {
		return valuePayload, nil
	}

	patchSize, err := payloadSize(patchPayload)
	if err != nil {
		return Payload{}, err
	}
	valueSize, err := payloadSize(valuePayload)
	if err != nil {
		return Payload{}, err
	}

	if patchSize < valueSize {
		return patchPayload, nil
	}

	return valuePayload, nil
}

// Decode implements Strategy interface: dispatch on the payload mode tag.
func (AutoStrategy) Decode(current interface{}, payload Payload) (interface{}, error) {
	switch payload.Mode {
	case ValueMode:
		return ValueStrategy{}.Decode(current, payload)
	case DeltaMode:
		return DeltaStrategy{}.Decode(current, payload)
	case PatchMode:
		return PatchStrategy{}.Decode(current, payload)
	}

	return nil, newDecodeError(payload.Mode, "unknown payload mode")
}

// payloadSize returns the canonical serialized byte size of a payload
// (RFC 8785 canonical JSON, so size comparison is stable across encoders).
func payloadSize(p Payload) (int, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return 0, fmt.Errorf("canonicalize payload: %w", err)
	}

	return len(canonical), nil
}
