package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
)

type (
	// PatchStrategy transmits an ordered list of RFC 6902 operations
	// transforming current into next. Applicable to structured (object or
	// array) values of matching kind; otherwise Encode falls back to the
	// value representation. Generation is deterministic: object keys are
	// visited in sorted order, array indexes in increasing order, removals
	// from the highest index down.
	PatchStrategy struct{}

	// PatchOperation is one RFC 6902 edit step.
	PatchOperation struct {
		Op    string          `json:"op"`
		Path  string          `json:"path"`
		Value json.RawMessage `json:"value,omitempty"`
	}
)

// Encode implements Strategy interface.
func (PatchStrategy) Encode(current, next interface{}) (Payload, error) {
	cur, err := Normalize(current)
	if err != nil {
		return Payload{}, fmt.Errorf("encode (%s mode): current: %w", PatchMode, err)
	}
	nxt, err := Normalize(next)
	if err != nil {
		return Payload{}, fmt.Errorf("encode (%s mode): next: %w", PatchMode, err)
	}

	if !sameStructuredKind(cur, nxt) {
		return ValueStrategy{}.Encode(cur, nxt)
	}

	ops := diffValues("", cur, nxt, nil)
	raw, err := json.Marshal(ops)
	if err != nil {
		return Payload{}, fmt.Errorf("encode (%s mode): marshal operations: %w", PatchMode, err)
	}

	return Payload{Mode: PatchMode, Data: raw}, nil
}

// Decode implements Strategy interface. The operation list is applied to a
// copy of current; a patch that does not legally apply is a fatal
// DecodeError.
func (PatchStrategy) Decode(current interface{}, payload Payload) (interface{}, error) {
	switch payload.Mode {
	case PatchMode:
	case ValueMode:
		// Encode fallback case
		return ValueStrategy{}.Decode(current, payload)
	default:
		return nil, newDecodeError(payload.Mode, "payload mode mismatch, want patch or value")
	}

	patch, err := jsonpatch.DecodePatch(payload.Data)
	if err != nil {
		return nil, wrapDecodeError(PatchMode, "malformed operation list", err)
	}

	curRaw, err := json.Marshal(current)
	if err != nil {
		return nil, wrapDecodeError(PatchMode, "marshal current", err)
	}

	nextRaw, err := patch.Apply(curRaw)
	if err != nil {
		return nil, wrapDecodeError(PatchMode, "patch does not apply", err)
	}

	var out interface{}
	if err := json.Unmarshal(nextRaw, &out); err != nil {
		return nil, wrapDecodeError(PatchMode, "unmarshal patched value", err)
	}

	return out, nil
}

// sameStructuredKind checks both values are objects or both are arrays.
func sameStructuredKind(a, b interface{}) bool {
	switch a.(type) {
	case map[string]interface{}:
		_, ok := b.(map[string]interface{})
		return ok
	case []interface{}:
		_, ok := b.([]interface{})
		return ok
	}

	return false
}

// diffValues appends the operations transforming cur into nxt at path.
func diffValues(path string, cur, nxt interface{}, ops []PatchOperation) []PatchOperation {
	curMap, curIsMap := cur.(map[string]interface{})
	nxtMap, nxtIsMap := nxt.(map[string]interface{})
	if curIsMap && nxtIsMap {
		return diffObjects(path, curMap, nxtMap, ops)
	}

	curArr, curIsArr := cur.([]interface{})
	nxtArr, nxtIsArr := nxt.([]interface{})
	if curIsArr && nxtIsArr {
		return diffArrays(path, curArr, nxtArr, ops)
	}

	// Leaf value or kind change
	if !reflect.DeepEqual(cur, nxt) {
		ops = append(ops, PatchOperation{Op: "replace", Path: path, Value: rawValue(nxt)})
	}

	return ops
}

// rawValue marshals an already normalized value (cannot fail for JSON-shaped
// input).
func rawValue(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal normalized value: %v", err))
	}

	return raw
}

// diffObjects visits the sorted key union: changed keys recurse, missing
// keys are removed, new keys are added.
func diffObjects(path string, cur, nxt map[string]interface{}, ops []PatchOperation) []PatchOperation {
	keys := make([]string, 0, len(cur)+len(nxt))
	for k := range cur {
		keys = append(keys, k)
	}
	for k := range nxt {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		keyPath := path + "/" + escapeToken(k)

		curVal, inCur := cur[k]
		nxtVal, inNxt := nxt[k]
		switch {
		case inCur && inNxt:
			ops = diffValues(keyPath, curVal, nxtVal, ops)
		case inCur:
			ops = append(ops, PatchOperation{Op: "remove", Path: keyPath})
		default:
			ops = append(ops, PatchOperation{Op: "add", Path: keyPath, Value: rawValue(nxtVal)})
		}
	}

	return ops
}

// diffArrays recurses on shared indexes, appends the extra tail of nxt and
// removes the extra tail of cur from the highest index down (so earlier
// removals do not shift the paths of later ones).
func diffArrays(path string, cur, nxt []interface{}, ops []PatchOperation) []PatchOperation {
	shared := len(cur)
	if len(nxt) < shared {
		shared = len(nxt)
	}

	for i := 0; i < shared; i++ {
		ops = diffValues(path+"/"+strconv.Itoa(i), cur[i], nxt[i], ops)
	}
	for i := shared; i < len(nxt); i++ {
		ops = append(ops, PatchOperation{Op: "add", Path: path + "/" + strconv.Itoa(i), Value: rawValue(nxt[i])})
	}
	for i := len(cur) - 1; i >= shared; i-- {
		ops = append(ops, PatchOperation{Op: "remove", Path: path + "/" + strconv.Itoa(i)})
	}

	return ops
}

// escapeToken escapes a JSON pointer reference token (RFC 6901).
func escapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}
