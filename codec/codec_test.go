package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test checks the round-trip law for every strategy on inputs it declares
// itself applicable to: Decode(current, Encode(current, next)) == next.
func Test_Codec_RoundTrip(t *testing.T) {
	roundTrip := func(comment string, s Strategy, current, next interface{}) {
		t.Log(comment)

		payload, err := s.Encode(current, next)
		require.NoError(t, err, comment)

		decoded, err := s.Decode(current, payload)
		require.NoError(t, err, comment)

		nextNorm, err := Normalize(next)
		require.NoError(t, err, comment)
		require.Equal(t, nextNorm, decoded, comment)
	}

	// Value strategy: always applicable
	{
		roundTrip("value: string", ValueStrategy{}, "old", "new")
		roundTrip("value: number", ValueStrategy{}, 1.0, 2.5)
		roundTrip("value: nil current", ValueStrategy{}, nil, map[string]interface{}{"a": 1.0})
		roundTrip("value: truncated string", ValueStrategy{}, "hello", "he")
	}

	// Delta strategy: append growth plus the value fallback cases
	{
		roundTrip("delta: append growth", DeltaStrategy{}, "hel", "hello")
		roundTrip("delta: multibyte append growth", DeltaStrategy{}, "héllo", "héllo wörld")
		roundTrip("delta: empty current", DeltaStrategy{}, "", "hello")
		roundTrip("delta: no growth", DeltaStrategy{}, "hello", "hello")
		roundTrip("delta: truncation fallback", DeltaStrategy{}, "hello", "help")
		roundTrip("delta: non-string fallback", DeltaStrategy{}, 1.0, "hello")
	}

	// Patch strategy: structured values plus the value fallback cases
	{
		roundTrip("patch: flat object", PatchStrategy{},
			map[string]interface{}{"a": 1.0, "b": "x"},
			map[string]interface{}{"a": 2.0, "b": "x"})
		roundTrip("patch: key add/remove", PatchStrategy{},
			map[string]interface{}{"a": 1.0, "gone": true},
			map[string]interface{}{"a": 1.0, "added": "yes"})
		roundTrip("patch: nested object", PatchStrategy{},
			map[string]interface{}{"user": map[string]interface{}{"name": "John", "age": 30.0}},
			map[string]interface{}{"user": map[string]interface{}{"name": "Jane", "age": 30.0}})
		roundTrip("patch: array growth", PatchStrategy{},
			[]interface{}{"a", "b"},
			[]interface{}{"a", "b", "c", "d"})
		roundTrip("patch: array shrink", PatchStrategy{},
			[]interface{}{"a", "b", "c", "d"},
			[]interface{}{"a", "x"})
		roundTrip("patch: kind change fallback", PatchStrategy{},
			map[string]interface{}{"a": 1.0},
			[]interface{}{"a"})
		roundTrip("patch: equal values", PatchStrategy{},
			map[string]interface{}{"a": 1.0},
			map[string]interface{}{"a": 1.0})
	}

	// Auto strategy: mode selection is transparent to the round trip
	{
		roundTrip("auto: string append", AutoStrategy{}, "str", "streaming")
		roundTrip("auto: string rewrite", AutoStrategy{}, "streaming", "done")
		roundTrip("auto: small object change", AutoStrategy{},
			map[string]interface{}{"a": 1.0, "blob": "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"},
			map[string]interface{}{"a": 2.0, "blob": "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"})
		roundTrip("auto: primitive", AutoStrategy{}, true, false)
	}
}

// Test checks the delta precondition: a non-append transition must fall back
// to the value mode tag.
func Test_Codec_DeltaPrecondition(t *testing.T) {
	checkMode := func(comment string, current, next interface{}, expected Mode) {
		payload, err := DeltaStrategy{}.Encode(current, next)
		require.NoError(t, err, comment)
		require.Equal(t, expected, payload.Mode, comment)
	}

	checkMode("append growth", "ab", "abc", DeltaMode)
	checkMode("multibyte append growth", "héllo", "héllo world", DeltaMode)
	checkMode("multibyte non-append edit", "héllo", "hállo world", ValueMode)
	checkMode("no growth", "ab", "ab", DeltaMode)
	checkMode("non-append edit", "abc", "axc", ValueMode)
	checkMode("truncation", "abc", "ab", ValueMode)
	checkMode("prefix swap", "abc", "xabc", ValueMode)
	checkMode("non-string input", 1.0, "abc", ValueMode)
}

// Test checks that the auto selection never produces a payload larger than
// the value baseline.
func Test_Codec_AutoMonotonicSavings(t *testing.T) {
	checkSavings := func(comment string, current, next interface{}) {
		autoPayload, err := AutoStrategy{}.Encode(current, next)
		require.NoError(t, err, comment)

		nextNorm, err := Normalize(next)
		require.NoError(t, err, comment)
		valuePayload, err := ValueStrategy{}.Encode(current, nextNorm)
		require.NoError(t, err, comment)

		autoSize, err := payloadSize(autoPayload)
		require.NoError(t, err, comment)
		valueSize, err := payloadSize(valuePayload)
		require.NoError(t, err, comment)

		require.LessOrEqual(t, autoSize, valueSize, comment)
	}

	checkSavings("growing string", "the quick brown", "the quick brown fox")
	checkSavings("rewritten string", "the quick brown", "a lazy dog")
	checkSavings("one field of many", map[string]interface{}{
		"id": "1", "name": "John", "tags": []interface{}{"a", "b", "c"},
	}, map[string]interface{}{
		"id": "1", "name": "Jane", "tags": []interface{}{"a", "b", "c"},
	})
	checkSavings("full rewrite", map[string]interface{}{"a": 1.0}, map[string]interface{}{"z": 2.0})
	checkSavings("primitive", 1.0, 2.0)
}

// Test checks that decode inconsistencies surface as the typed fatal error.
func Test_Codec_DecodeErrors(t *testing.T) {
	checkDecodeError := func(comment string, s Strategy, current interface{}, payload Payload) {
		_, err := s.Decode(current, payload)
		require.Error(t, err, comment)

		decodeErr := &DecodeError{}
		require.True(t, errors.As(err, &decodeErr), comment)
	}

	// Delta against a non-string current
	{
		payload, err := DeltaStrategy{}.Encode("ab", "abc")
		require.NoError(t, err)
		checkDecodeError("delta: non-string current", DeltaStrategy{}, 1.0, payload)
	}

	// Patch referencing a location the current value no longer has
	{
		payload := Payload{
			Mode: PatchMode,
			Data: []byte(`[{"op":"remove","path":"/missing"}]`),
		}
		checkDecodeError("patch: missing path", PatchStrategy{}, map[string]interface{}{"a": 1.0}, payload)
	}

	// Malformed patch operation list
	{
		payload := Payload{
			Mode: PatchMode,
			Data: []byte(`{"not":"a patch"}`),
		}
		checkDecodeError("patch: malformed list", PatchStrategy{}, map[string]interface{}{}, payload)
	}

	// Unknown mode tag
	{
		payload := Payload{Mode: Mode("bogus"), Data: []byte(`{}`)}
		checkDecodeError("auto: unknown mode", AutoStrategy{}, nil, payload)
		checkDecodeError("value: mode mismatch", ValueStrategy{}, nil, payload)
	}
}
