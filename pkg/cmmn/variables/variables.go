// Package variables converts between typed variable payloads (type name plus
// JSON value) and the native values stored on case executions.
package variables

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	TypeString  = "String"
	TypeInteger = "Integer"
	TypeShort   = "Short"
	TypeLong    = "Long"
	TypeDouble  = "Double"
	TypeBoolean = "Boolean"
	TypeDate    = "Date"
	TypeNull    = "Null"
	TypeJson    = "Json"
)

// DateLayout is the wire format of Date values.
const DateLayout = "2006-01-02T15:04:05"

// NumberFormatError is returned when a value cannot be read as the requested number type.
type NumberFormatError struct {
	Input string
	Type  string
}

func (e *NumberFormatError) Error() string {
	return fmt.Sprintf("For input string: \"%s\" (%s)", e.Input, e.Type)
}

// ParseError is returned when a Date value does not follow DateLayout.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Unparseable date: \"%s\"", e.Input)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IllegalArgumentError is returned for unknown types and for values whose JSON shape does not fit the type.
type IllegalArgumentError struct {
	Msg string
}

func (e *IllegalArgumentError) Error() string {
	return e.Msg
}

// ToType converts a raw JSON decoded value into the native value of the named type.
// An empty type name keeps the value as decoded.
func ToType(typeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch strings.ToLower(typeName) {
	case "":
		return untypedValue(value), nil
	case "string":
		return toString(typeName, value)
	case "integer":
		v, err := toInt(typeName, value, 32)
		return int32(v), err
	case "short":
		v, err := toInt(typeName, value, 16)
		return int16(v), err
	case "long":
		return toInt(typeName, value, 64)
	case "double":
		return toFloat(typeName, value)
	case "boolean":
		return toBool(typeName, value)
	case "date":
		s, err := toString(typeName, value)
		if err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			return nil, &ParseError{Input: s, Err: err}
		}
		return t, nil
	case "null":
		return nil, nil
	case "json", "object":
		return untypedValue(value), nil
	}
	return nil, &IllegalArgumentError{Msg: fmt.Sprintf("Unsupported value type '%s'", typeName)}
}

// untypedValue turns numbers decoded as json.Number into float64, nested maps and slices included
func untypedValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case map[string]any:
		res := make(map[string]any, len(v))
		for k, item := range v {
			res[k] = untypedValue(item)
		}
		return res
	case []any:
		res := make([]any, len(v))
		for i, item := range v {
			res[i] = untypedValue(item)
		}
		return res
	}
	return value
}

func toString(typeName string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64, bool, json.Number:
		return fmt.Sprint(v), nil
	}
	return "", &IllegalArgumentError{Msg: fmt.Sprintf("Value of type %T cannot be converted to %s", value, typeName)}
}

func toInt(typeName string, value any, bits int) (int64, error) {
	switch v := value.(type) {
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, bits)
		if err != nil {
			return 0, &NumberFormatError{Input: v, Type: typeName}
		}
		return i, nil
	case json.Number:
		return toInt(typeName, v.String(), bits)
	case float64:
		if v != math.Trunc(v) {
			return 0, &NumberFormatError{Input: strconv.FormatFloat(v, 'f', -1, 64), Type: typeName}
		}
		return toInt(typeName, strconv.FormatFloat(v, 'f', -1, 64), bits)
	case int, int16, int32, int64:
		return toInt(typeName, fmt.Sprint(v), bits)
	}
	return 0, &IllegalArgumentError{Msg: fmt.Sprintf("Value of type %T cannot be converted to %s", value, typeName)}
}

func toFloat(typeName string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &NumberFormatError{Input: v, Type: typeName}
		}
		return f, nil
	case json.Number:
		return toFloat(typeName, v.String())
	}
	return 0, &IllegalArgumentError{Msg: fmt.Sprintf("Value of type %T cannot be converted to %s", value, typeName)}
}

func toBool(typeName string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		// anything but "true" is false
		return strings.EqualFold(v, "true"), nil
	}
	return false, &IllegalArgumentError{Msg: fmt.Sprintf("Value of type %T cannot be converted to %s", value, typeName)}
}

// TypeOf returns the type name of a native value.
func TypeOf(value any) string {
	switch value.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case int32, int:
		return TypeInteger
	case int16:
		return TypeShort
	case int64:
		return TypeLong
	case float64, float32:
		return TypeDouble
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeDate
	}
	return TypeJson
}

// ToJSONValue prepares a native value for a JSON payload.
func ToJSONValue(value any) any {
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(DateLayout)
	}
	return value
}

// Equal compares two variable values; numbers compare by value regardless of their width.
func Equal(a, b any) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

type typedValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Encode serializes a variable map keeping the type of every value.
func Encode(vars map[string]any) ([]byte, error) {
	typed := make(map[string]typedValue, len(vars))
	for k, v := range vars {
		typed[k] = typedValue{Type: TypeOf(v), Value: ToJSONValue(v)}
	}
	return json.Marshal(typed)
}

// Decode restores a variable map written by Encode.
func Decode(data []byte) (map[string]any, error) {
	res := make(map[string]any)
	if len(data) == 0 {
		return res, nil
	}
	var typed map[string]typedValue
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&typed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}
	for k, tv := range typed {
		v, err := ToType(tv.Type, tv.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode variable %s: %w", k, err)
		}
		res[k] = v
	}
	return res, nil
}

// Names returns the sorted variable names of a map.
func Names(vars map[string]any) []string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
