package document

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

const (
	cborMajorArray = 4
	cborMajorMap   = 5
	cborTagRFC3339 = 0
)

var _ cbor.Marshaler = (*Value)(nil)

// MarshalCBOR implements cbor.Marshaler. Maps are emitted with definite lengths
// in insertion order rather than the library's sorted order; times use tag 0.
func (v *Value) MarshalCBOR() ([]byte, error) {
	return v.appendCBOR(nil)
}

func (v *Value) appendCBOR(dst []byte) ([]byte, error) {
	switch v.Kind() {
	case KindNull:
		return append(dst, 0xf6), nil
	case KindBool:
		if v.boolVal {
			return append(dst, 0xf5), nil
		}
		return append(dst, 0xf4), nil
	case KindInt:
		return appendMarshaled(dst, v.intVal)
	case KindFloat:
		if v.float32 {
			return appendMarshaled(dst, float32(v.floatVal))
		}
		return appendMarshaled(dst, v.floatVal)
	case KindText:
		return appendMarshaled(dst, v.textVal)
	case KindTime:
		return appendMarshaled(dst, cbor.Tag{Number: cborTagRFC3339, Content: formatTime(v.timeVal)})
	case KindObject:
		dst = appendCBORHead(dst, cborMajorMap, uint64(len(v.fields)))
		for _, f := range v.fields {
			var err error
			if dst, err = appendMarshaled(dst, f.Key); err != nil {
				return nil, err
			}
			if dst, err = f.Value.appendCBOR(dst); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case KindArray:
		dst = appendCBORHead(dst, cborMajorArray, uint64(len(v.items)))
		for _, item := range v.items {
			var err error
			if dst, err = item.appendCBOR(dst); err != nil {
				return nil, err
			}
		}
		return dst, nil
	}
	return append(dst, 0xf6), nil
}

func appendMarshaled(dst []byte, x interface{}) ([]byte, error) {
	b, err := cbor.Marshal(x)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func appendCBORHead(dst []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(dst, m|byte(n))
	case n <= 0xff:
		return append(dst, m|24, byte(n))
	case n <= 0xffff:
		return binary.BigEndian.AppendUint16(append(dst, m|25), uint16(n))
	case n <= 0xffffffff:
		return binary.BigEndian.AppendUint32(append(dst, m|26), uint32(n))
	}
	return binary.BigEndian.AppendUint64(append(dst, m|27), n)
}
