package codec

import (
	"encoding/json"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DeltaStrategy transmits only the appended suffix of a growing string (the
// common case for token-by-token streaming text). Applicable when both
// values are strings and next starts with current; otherwise Encode falls
// back to the value representation, which the payload mode tag
// disambiguates at decode time.
type DeltaStrategy struct{}

// Encode implements Strategy interface.
func (DeltaStrategy) Encode(current, next interface{}) (Payload, error) {
	curStr, curOk := current.(string)
	nextStr, nextOk := next.(string)
	if !curOk || !nextOk {
		return ValueStrategy{}.Encode(current, next)
	}

	// DiffCommonPrefix counts runes, so the full-prefix check must too
	dmp := diffmatchpatch.New()
	if dmp.DiffCommonPrefix(curStr, nextStr) != len([]rune(curStr)) {
		// Non-append edit or truncation
		return ValueStrategy{}.Encode(current, next)
	}

	raw, err := json.Marshal(nextStr[len(curStr):])
	if err != nil {
		return Payload{}, err
	}

	return Payload{Mode: DeltaMode, Data: raw}, nil
}

// Decode implements Strategy interface.
func (DeltaStrategy) Decode(current interface{}, payload Payload) (interface{}, error) {
	switch payload.Mode {
	case DeltaMode:
	case ValueMode:
		// Encode fallback case
		return ValueStrategy{}.Decode(current, payload)
	default:
		return nil, newDecodeError(payload.Mode, "payload mode mismatch, want delta or value")
	}

	curStr, ok := current.(string)
	if !ok {
		return nil, newDecodeError(DeltaMode, "current value is not a string")
	}

	var suffix string
	if err := json.Unmarshal(payload.Data, &suffix); err != nil {
		return nil, wrapDecodeError(DeltaMode, "unmarshal suffix", err)
	}

	return curStr + suffix, nil
}
