package document

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the textual form of time values: RFC 3339 in UTC with up to
// seven fractional digits (100ns ticks), trailing zeros trimmed.
const TimeLayout = "2006-01-02T15:04:05.9999999Z07:00"

// MarshalJSON renders v as compact JSON with object keys in insertion order.
func (v *Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil), nil
}

// WriteJSON writes v as JSON indented by two spaces, followed by a newline.
func WriteJSON(w io.Writer, v *Value) error {
	var out bytes.Buffer
	if err := json.Indent(&out, v.appendJSON(nil), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func (v *Value) appendJSON(dst []byte) []byte {
	switch v.Kind() {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		return strconv.AppendBool(dst, v.boolVal)
	case KindInt:
		return strconv.AppendInt(dst, v.intVal, 10)
	case KindFloat:
		return appendJSONFloat(dst, v.floatVal, v.float32)
	case KindText:
		return appendJSONString(dst, v.textVal)
	case KindTime:
		return appendJSONString(dst, formatTime(v.timeVal))
	case KindObject:
		dst = append(dst, '{')
		for i, f := range v.fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendJSONString(dst, f.Key)
			dst = append(dst, ':')
			dst = f.Value.appendJSON(dst)
		}
		return append(dst, '}')
	case KindArray:
		dst = append(dst, '[')
		for i, item := range v.items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = item.appendJSON(dst)
		}
		return append(dst, ']')
	}
	return append(dst, "null"...)
}

// FormatFloat returns the shortest round-trip text for f at the given precision,
// always carrying a decimal point or exponent.
func FormatFloat(f float64, is32 bool) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	bits := 64
	if is32 {
		bits = 32
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func appendJSONFloat(dst []byte, f float64, is32 bool) []byte {
	s := FormatFloat(f, is32)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return appendJSONString(dst, s)
	}
	return append(dst, s...)
}

func appendJSONString(dst []byte, s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return append(dst, bytes.TrimRight(buf.Bytes(), "\n")...)
}

// formatTime is shared by the text-based writers.
func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
