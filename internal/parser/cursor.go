package parser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mgsv-tools/savedump/internal/bsondoc"
)

// Cursor reads little-endian primitives sequentially from a buffer.
// A failed read leaves the offset where it was.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor at the start of buf. The buffer is not copied.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.off }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.buf) - c.off }

// Remaining returns the unread bytes without consuming them.
func (c *Cursor) Remaining() []byte { return c.buf[c.off:] }

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d left", ErrTruncatedInput, n, c.off, c.Len())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadBool reads one byte; any non-zero value is true.
func (c *Cursor) ReadBool() (bool, error) {
	b, err := c.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadInt32 reads a little-endian two's complement 32-bit integer.
func (c *Cursor) ReadInt32() (int32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadInt64 reads a little-endian two's complement 64-bit integer.
func (c *Cursor) ReadInt64() (int64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadFloat32 reads a little-endian IEEE-754 single.
func (c *Cursor) ReadFloat32() (float32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// ReadTime reads a 64-bit .NET DateTime binary value and returns it in UTC.
func (c *Cursor) ReadTime() (time.Time, error) {
	v, err := c.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	return TimeFromBinary(v), nil
}

// maxLengthGroups bounds the 7-bit length prefix to an int32.
const maxLengthGroups = 5

// ReadString reads a length-prefixed UTF-8 string in the .NET BinaryWriter
// convention: the byte count as 7-bit groups, low group first, high bit set on
// every group but the last. Invalid UTF-8 is replaced with U+FFFD.
func (c *Cursor) ReadString() (string, error) {
	start := c.off
	n, err := c.read7BitLength()
	if err != nil {
		c.off = start
		return "", err
	}
	b, err := c.take(n)
	if err != nil {
		c.off = start
		return "", err
	}
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), "\uFFFD"), nil
	}
	return string(b), nil
}

func (c *Cursor) read7BitLength() (int, error) {
	var n uint64
	for i := 0; i < maxLengthGroups; i++ {
		b, err := c.take(1)
		if err != nil {
			return 0, err
		}
		n |= uint64(b[0]&0x7f) << (7 * i)
		if b[0]&0x80 == 0 {
			if n > math.MaxInt32 {
				return 0, fmt.Errorf("%w: string length %d exceeds int32 at offset %d", ErrInvalidFormat, n, c.off)
			}
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%w: string length prefix longer than %d bytes at offset %d", ErrInvalidFormat, maxLengthGroups, c.off)
}

// ReadEmbedded decodes one BSON sub-document at the cursor and advances past it.
// An exhausted buffer yields an absent result rather than an error; the caller
// decides whether absence is acceptable.
func (c *Cursor) ReadEmbedded(mode bsondoc.Mode) (bsondoc.Result, error) {
	res, n, err := bsondoc.Read(c.Remaining(), mode)
	if err != nil {
		if errors.Is(err, bsondoc.ErrTruncated) {
			return bsondoc.Result{}, fmt.Errorf("%w at offset %d: %w", ErrTruncatedInput, c.off, err)
		}
		return bsondoc.Result{}, fmt.Errorf("%w at offset %d: %w", ErrInvalidFormat, c.off, err)
	}
	c.off += n
	return res, nil
}
