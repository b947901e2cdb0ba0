package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var values = []Value{String("a"), Int(1), Bool(true), List{}, Object{}}
	assert.Len(t, values, 5)
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{"zebra": Int(1), "alpha": Int(2), "beta": Int(3)}
	assert.Equal(t, []string{"alpha", "beta", "zebra"}, obj.SortedKeys())
	assert.Empty(t, Object{}.SortedKeys())
}

func TestObjectStr(t *testing.T) {
	obj := Object{"land_id": String("42"), "seq": Int(1)}
	assert.Equal(t, "42", obj.Str("land_id"))
	assert.Equal(t, "", obj.Str("seq"))
	assert.Equal(t, "", obj.Str("missing"))
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"s": "x",
		"i": 3,
		"n": json.Number("12"),
		"b": false,
		"l": []any{"a", int64(2)},
	})
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, String("x"), obj["s"])
	assert.Equal(t, Int(3), obj["i"])
	assert.Equal(t, Int(12), obj["n"])
	assert.Equal(t, Bool(false), obj["b"])
	assert.Equal(t, List{String("a"), Int(2)}, obj["l"])
}

func TestFromAnyRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"float", 1.5},
		{"json float", json.Number("1.5")},
		{"json exponent", json.Number("1e3")},
		{"null", nil},
		{"nested null", map[string]any{"a": []any{nil}}},
		{"huge uint", uint64(1 << 63)},
		{"struct", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAny(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestToAnyInvertsFromAny(t *testing.T) {
	in := map[string]any{
		"s": "x",
		"i": int64(3),
		"b": true,
		"l": []any{"a"},
		"o": map[string]any{"k": "v"},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToAny(v))
}

func TestObjectJSONRoundTrip(t *testing.T) {
	original := Object{
		"amount": String("10000000000000000000"),
		"seq":    Int(9007199254740993), // beyond float64 precision
		"nested": Object{"ok": Bool(true)},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":"10000000000000000000","nested":{"ok":true},"seq":9007199254740993}`, string(data))

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestObjectUnmarshalRejectsFloats(t *testing.T) {
	var obj Object
	assert.Error(t, json.Unmarshal([]byte(`{"amount":1.5}`), &obj))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":null}`), &obj))
}
