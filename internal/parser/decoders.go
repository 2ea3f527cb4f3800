package parser

import (
	"fmt"

	"github.com/mgsv-tools/savedump/internal/bsondoc"
	"github.com/mgsv-tools/savedump/internal/document"
)

// Decoder reads one value from the cursor. Decoders are composed into record
// decoders; the composition is the schema.
type Decoder func(c *Cursor) (*document.Value, error)

// Scalar decoders.
var (
	Bool    Decoder = decodeBool
	Int32   Decoder = decodeInt32
	Float32 Decoder = decodeFloat32
	String  Decoder = decodeString
	Time    Decoder = decodeTime
)

func decodeBool(c *Cursor) (*document.Value, error) {
	b, err := c.ReadBool()
	if err != nil {
		return nil, err
	}
	return document.Bool(b), nil
}

func decodeInt32(c *Cursor) (*document.Value, error) {
	i, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	return document.Int(int64(i)), nil
}

func decodeFloat32(c *Cursor) (*document.Value, error) {
	f, err := c.ReadFloat32()
	if err != nil {
		return nil, err
	}
	return document.Float32(f), nil
}

func decodeString(c *Cursor) (*document.Value, error) {
	s, err := c.ReadString()
	if err != nil {
		return nil, err
	}
	return document.Text(s), nil
}

func decodeTime(c *Cursor) (*document.Value, error) {
	t, err := c.ReadTime()
	if err != nil {
		return nil, err
	}
	return document.Time(t), nil
}

// Optional reads a presence flag and then d only when the flag is set.
// An absent value is null and consumes exactly the flag byte.
func Optional(d Decoder) Decoder {
	return func(c *Cursor) (*document.Value, error) {
		present, err := c.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("presence flag: %w", err)
		}
		if !present {
			return document.Null(), nil
		}
		return d(c)
	}
}

// FieldDecoder binds a decoder to an object key.
type FieldDecoder struct {
	Name   string
	Decode Decoder
}

// NamedField attaches d's output under name.
func NamedField(d Decoder, name string) FieldDecoder {
	return FieldDecoder{Name: name, Decode: d}
}

// Record decodes fields in declared order into an object with the same key order.
func Record(fields ...FieldDecoder) Decoder {
	return func(c *Cursor) (*document.Value, error) {
		b := document.NewObjectBuilder(len(fields))
		for _, f := range fields {
			v, err := f.Decode(c)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			b.Set(f.Name, v)
		}
		return b.Build(), nil
	}
}

// CountedArray reads an int32 count followed by that many d values.
func CountedArray(d Decoder) Decoder {
	return func(c *Cursor) (*document.Value, error) {
		start := c.Offset()
		n, err := c.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative count %d at offset %d", ErrInvalidFormat, n, start)
		}

		// Each element takes at least one byte, which bounds the allocation.
		capacity := int(n)
		if capacity > c.Len() {
			capacity = c.Len()
		}
		items := make([]*document.Value, 0, capacity)
		for i := 0; i < int(n); i++ {
			v, err := d(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return document.Array(items...), nil
	}
}

// Embedded decodes a required BSON sub-document in the given root mode.
func Embedded(mode bsondoc.Mode) Decoder {
	return func(c *Cursor) (*document.Value, error) {
		res, err := c.ReadEmbedded(mode)
		if err != nil {
			return nil, err
		}
		if !res.Present() {
			return nil, fmt.Errorf("%w: %s sub-document missing at offset %d", ErrTruncatedInput, mode, c.Offset())
		}
		return res.Value, nil
	}
}
