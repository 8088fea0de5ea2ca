package variables

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToType(t *testing.T) {
	v, err := ToType("Integer", "42")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	v, err = ToType("Long", float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = ToType("Boolean", "TRUE")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ToType("", map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "b"}, v)

	v, err = ToType("Date", "2024-02-01T10:11:12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 11, 12, 0, time.UTC), v)
}

func TestJSONNumbers(t *testing.T) {
	v, err := ToType("Long", json.Number("9007199254740993"))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), v)

	v, err = ToType("Double", json.Number("0.25"))
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	v, err = ToType("", json.Number("3"))
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	v, err = ToType("Json", map[string]any{"n": json.Number("1.5"), "list": []any{json.Number("2")}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 1.5, "list": []any{float64(2)}}, v)
}

func TestToTypeErrors(t *testing.T) {
	_, err := ToType("Integer", "abc")
	var nfe *NumberFormatError
	assert.ErrorAs(t, err, &nfe)

	_, err = ToType("Short", "70000")
	assert.ErrorAs(t, err, &nfe)

	_, err = ToType("Integer", 1.5)
	assert.ErrorAs(t, err, &nfe)

	_, err = ToType("Date", "01.02.2024")
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)

	_, err = ToType("Unknown", "x")
	var iae *IllegalArgumentError
	assert.ErrorAs(t, err, &iae)

	_, err = ToType("Integer", []any{1})
	assert.ErrorAs(t, err, &iae)
}

func TestEncodeDecodeKeepsTypes(t *testing.T) {
	vars := map[string]any{
		"s": "text",
		"i": int32(1),
		"l": int64(2),
		"big": int64(9007199254740993),
		"d": 2.5,
		"b": true,
		"t": time.Date(2024, 2, 1, 10, 11, 12, 0, time.UTC),
		"n": nil,
	}
	data, err := Encode(vars)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, vars, decoded)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(int32(5), int64(5)))
	assert.True(t, Equal(5.0, int16(5)))
	assert.False(t, Equal("5", 5))
	assert.True(t, Equal(map[string]any{"a": 1}, map[string]any{"a": 1}))
}
