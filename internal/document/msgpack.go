package document

import (
	"github.com/vmihailenco/msgpack/v5"
)

var _ msgpack.CustomEncoder = (*Value)(nil)

// EncodeMsgpack implements msgpack.CustomEncoder. Objects are written as maps
// in insertion order; 32-bit floats stay 32-bit.
func (v *Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.Kind() {
	case KindBool:
		return enc.EncodeBool(v.boolVal)
	case KindInt:
		return enc.EncodeInt(v.intVal)
	case KindFloat:
		if v.float32 {
			return enc.EncodeFloat32(float32(v.floatVal))
		}
		return enc.EncodeFloat64(v.floatVal)
	case KindText:
		return enc.EncodeString(v.textVal)
	case KindTime:
		return enc.EncodeTime(v.timeVal)
	case KindObject:
		if err := enc.EncodeMapLen(len(v.fields)); err != nil {
			return err
		}
		for _, f := range v.fields {
			if err := enc.EncodeString(f.Key); err != nil {
				return err
			}
			if err := f.Value.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.items)); err != nil {
			return err
		}
		for _, item := range v.items {
			if err := item.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.EncodeNil()
}
