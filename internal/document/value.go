// Package document defines the structured document tree produced by the decoders
// and the writers that render it.
//
// A Value is an immutable tagged union: null, bool, int, float, text, time, object or
// array. Objects keep their fields in insertion order so that rendered output matches
// the order in which fields were decoded.
package document

import (
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindTime
	KindObject
	KindArray
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Field is one key/value pair of an object.
type Field struct {
	Key   string
	Value *Value
}

// Value is a node of the document tree.
type Value struct {
	kind Kind

	boolVal  bool
	intVal   int64
	floatVal float64
	float32  bool // floatVal came from a 32-bit float
	textVal  string
	timeVal  time.Time

	fields []Field
	items  []*Value
}

var null = &Value{kind: KindNull}

// Null returns the null value.
func Null() *Value { return null }

// Bool returns a boolean value.
func Bool(b bool) *Value { return &Value{kind: KindBool, boolVal: b} }

// Int returns an integer value.
func Int(i int64) *Value { return &Value{kind: KindInt, intVal: i} }

// Float returns a 64-bit floating point value.
func Float(f float64) *Value { return &Value{kind: KindFloat, floatVal: f} }

// Float32 returns a floating point value that renders with 32-bit precision.
func Float32(f float32) *Value {
	return &Value{kind: KindFloat, floatVal: float64(f), float32: true}
}

// Text returns a string value.
func Text(s string) *Value { return &Value{kind: KindText, textVal: s} }

// Time returns an instant, normalised to UTC.
func Time(t time.Time) *Value { return &Value{kind: KindTime, timeVal: t.UTC()} }

// Object returns an object with the given fields in order. The slice is copied.
// A nil field value is stored as null.
func Object(fields ...Field) *Value {
	cp := make([]Field, len(fields))
	for i, f := range fields {
		if f.Value == nil {
			f.Value = null
		}
		cp[i] = f
	}
	return &Value{kind: KindObject, fields: cp}
}

// Array returns an array of the given items in order. The slice is copied.
func Array(items ...*Value) *Value {
	cp := make([]*Value, len(items))
	for i, v := range items {
		if v == nil {
			v = null
		}
		cp[i] = v
	}
	return &Value{kind: KindArray, items: cp}
}

// EmptyObject returns an object with no fields.
func EmptyObject() *Value { return Object() }

// Kind reports the variant of v. A nil Value is null.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is null.
func (v *Value) IsNull() bool { return v.Kind() == KindNull }

// Bool returns the boolean and whether v is a bool.
func (v *Value) Bool() (bool, bool) {
	if v.Kind() != KindBool {
		return false, false
	}
	return v.boolVal, true
}

// Int returns the integer and whether v is an int.
func (v *Value) Int() (int64, bool) {
	if v.Kind() != KindInt {
		return 0, false
	}
	return v.intVal, true
}

// Float returns the float and whether v is a float.
func (v *Value) Float() (float64, bool) {
	if v.Kind() != KindFloat {
		return 0, false
	}
	return v.floatVal, true
}

// Is32 reports whether a float value carries 32-bit precision.
func (v *Value) Is32() bool { return v.Kind() == KindFloat && v.float32 }

// Text returns the string and whether v is text.
func (v *Value) Text() (string, bool) {
	if v.Kind() != KindText {
		return "", false
	}
	return v.textVal, true
}

// Time returns the instant and whether v is a time.
func (v *Value) Time() (time.Time, bool) {
	if v.Kind() != KindTime {
		return time.Time{}, false
	}
	return v.timeVal, true
}

// Len returns the number of fields of an object or items of an array.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindObject:
		return len(v.fields)
	case KindArray:
		return len(v.items)
	}
	return 0
}

// Fields returns a copy of an object's fields in order.
func (v *Value) Fields() []Field {
	if v.Kind() != KindObject {
		return nil
	}
	return append([]Field(nil), v.fields...)
}

// Keys returns an object's keys in order.
func (v *Value) Keys() []string {
	if v.Kind() != KindObject {
		return nil
	}
	keys := make([]string, len(v.fields))
	for i, f := range v.fields {
		keys[i] = f.Key
	}
	return keys
}

// Items returns a copy of an array's items.
func (v *Value) Items() []*Value {
	if v.Kind() != KindArray {
		return nil
	}
	return append([]*Value(nil), v.items...)
}

// Index returns the i-th array item.
func (v *Value) Index(i int) (*Value, bool) {
	if v.Kind() != KindArray || i < 0 || i >= len(v.items) {
		return nil, false
	}
	return v.items[i], true
}

// Get returns the value stored under key in an object.
func (v *Value) Get(key string) (*Value, bool) {
	if v.Kind() != KindObject {
		return nil, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Lookup follows a path of object keys from v. Array items are addressed by
// their decimal index.
func (v *Value) Lookup(path ...string) (*Value, bool) {
	cur := v
	for _, seg := range path {
		var ok bool
		switch cur.Kind() {
		case KindObject:
			cur, ok = cur.Get(seg)
		case KindArray:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil, false
			}
			cur, ok = cur.Index(i)
		}
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Equal reports whether two trees are structurally identical, including field order.
func Equal(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return a.intVal == b.intVal
	case KindFloat:
		return a.floatVal == b.floatVal && a.float32 == b.float32
	case KindText:
		return a.textVal == b.textVal
	case KindTime:
		return a.timeVal.Equal(b.timeVal)
	case KindObject:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for i := range a.fields {
			if a.fields[i].Key != b.fields[i].Key || !Equal(a.fields[i].Value, b.fields[i].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}
