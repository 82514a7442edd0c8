package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Kind tags an untrusted upstream JSON value.
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindNumber
	KindString
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a JSON value from the upstream that has not been checked yet.
// The zero Value is missing.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	obj  map[string]Value
	arr  []Value
}

// Missing is the value of an absent field.
var Missing = Value{}

// ParseValue decodes one JSON document. Numbers keep their full text until
// converted, so very large integers are not silently truncated by the decoder.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Missing, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Missing, fmt.Errorf("unexpected data after JSON value")
	}
	return FromAny(raw), nil
}

// FromAny converts a decoded Go value into a Value.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case json.Number:
		// on overflow ParseFloat returns ±Inf, which the normalizer rejects
		f, _ := strconv.ParseFloat(t.String(), 64)
		return Value{kind: KindNumber, num: f}
	case float64:
		return Value{kind: KindNumber, num: t}
	case float32:
		return Value{kind: KindNumber, num: float64(t)}
	case int:
		return Value{kind: KindNumber, num: float64(t)}
	case int64:
		return Value{kind: KindNumber, num: float64(t)}
	case string:
		return Value{kind: KindString, str: t}
	case bool:
		return Value{kind: KindBool, b: t}
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			obj[k] = FromAny(item)
		}
		return Value{kind: KindObject, obj: obj}
	case []interface{}:
		arr := make([]Value, len(t))
		for i, item := range t {
			arr[i] = FromAny(item)
		}
		return Value{kind: KindArray, arr: arr}
	default:
		return Value{kind: KindNull}
	}
}

// Number builds a number Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String builds a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool builds a bool Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null is JSON null.
func Null() Value { return Value{kind: KindNull} }

// Object builds an object Value.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Array builds an array Value.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

func (v Value) Kind() Kind { return v.kind }

// IsMissing reports an absent field.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Field returns a member of an object, or Missing.
func (v Value) Field(name string) Value {
	if v.kind != KindObject {
		return Missing
	}
	return v.obj[name]
}

// Has reports whether an object has the member, whatever its value.
func (v Value) Has(name string) bool {
	if v.kind != KindObject {
		return false
	}
	_, ok := v.obj[name]
	return ok
}

// Keys returns the sorted member names of an object.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AsNumber returns the number of a KindNumber value.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsString returns the text of a KindString value.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsBool returns the flag of a KindBool value.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Interface converts back to plain Go values, used for schema validation.
// Missing converts to nil.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}
