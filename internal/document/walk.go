package document

import (
	"strconv"
)

// WalkFunc is called for every leaf of a tree. Scalars are leaves, and so are
// empty objects and arrays. Returning an error stops the walk.
type WalkFunc func(path string, depth int, leaf *Value) error

// Walk visits the leaves of v in document order. Paths join object keys and
// array indices with dots, e.g. "Scene.Layers.3.Filename" or "CallStack.0.LineNum".
func Walk(v *Value, fn WalkFunc) error {
	return walk(v, "", 0, fn)
}

func walk(v *Value, path string, depth int, fn WalkFunc) error {
	switch v.Kind() {
	case KindObject:
		if len(v.fields) == 0 {
			return fn(path, depth, v)
		}
		for _, f := range v.fields {
			if err := walk(f.Value, joinPath(path, f.Key), depth+1, fn); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		if len(v.items) == 0 {
			return fn(path, depth, v)
		}
		for i, item := range v.items {
			if err := walk(item, joinPath(path, strconv.Itoa(i)), depth+1, fn); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(path, depth, v)
}

func joinPath(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + "." + seg
}

// ScalarString renders a leaf as plain text: strings unquoted, floats in their
// shortest form, times in TimeLayout, empty containers as {} and [].
func ScalarString(v *Value) string {
	switch v.Kind() {
	case KindBool:
		return strconv.FormatBool(v.boolVal)
	case KindInt:
		return strconv.FormatInt(v.intVal, 10)
	case KindFloat:
		return FormatFloat(v.floatVal, v.float32)
	case KindText:
		return v.textVal
	case KindTime:
		return formatTime(v.timeVal)
	case KindObject:
		if len(v.fields) == 0 {
			return "{}"
		}
		return "{...}"
	case KindArray:
		if len(v.items) == 0 {
			return "[]"
		}
		return "[...]"
	}
	return "null"
}
