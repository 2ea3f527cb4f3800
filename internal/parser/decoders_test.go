package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/mgsv-tools/savedump/internal/bsondoc"
	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/testutil"
)

func TestOptionalAbsentConsumesOneByte(t *testing.T) {
	called := false
	inner := func(c *Cursor) (*document.Value, error) {
		called = true
		return document.Int(1), nil
	}

	c := NewCursor([]byte{0, 0xAA, 0xBB})
	v, err := Optional(inner)(c)
	require.NoError(t, err)

	assert.True(t, v.IsNull())
	assert.False(t, called, "inner decoder must not run when the flag is false")
	assert.Equal(t, 1, c.Offset())
}

func TestOptionalPresent(t *testing.T) {
	buf := testutil.NewSaveWriter().Bool(true).Vector2(1, 2).Bytes()
	c := NewCursor(buf)

	v, err := Optional(Vector2)(c)
	require.NoError(t, err)

	x, _ := v.Get("x")
	y, _ := v.Get("y")
	xf, _ := x.Float()
	yf, _ := y.Float()
	assert.Equal(t, 1.0, xf)
	assert.Equal(t, 2.0, yf)
	assert.Equal(t, len(buf), c.Offset())
}

func TestOptionalMissingFlag(t *testing.T) {
	_, err := Optional(Int32)(NewCursor(nil))
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestRecordPreservesDeclaredOrder(t *testing.T) {
	buf := testutil.NewSaveWriter().Int32(3).String("z").Bool(true).Bytes()
	dec := Record(
		NamedField(Int32, "zeta"),
		NamedField(String, "alpha"),
		NamedField(Bool, "mid"),
	)

	v, err := dec(NewCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.Keys())
}

func TestRecordErrorNamesField(t *testing.T) {
	buf := testutil.NewSaveWriter().Float32(1).Float32(2).Bytes()

	_, err := Color(NewCursor(buf))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncatedInput)
	assert.Contains(t, err.Error(), "b: ")
}

func TestCountedArray(t *testing.T) {
	t.Run("frames in order", func(t *testing.T) {
		buf := testutil.NewSaveWriter().
			Int32(2).
			StackFrame("a.txt", 10).
			StackFrame("b.txt", 20).
			Bytes()

		v, err := CountedArray(StackFrame)(NewCursor(buf))
		require.NoError(t, err)
		require.Equal(t, 2, v.Len())

		name, ok := v.Lookup("1", "Filename")
		require.True(t, ok)
		s, _ := name.Text()
		assert.Equal(t, "b.txt", s)
	})

	t.Run("empty", func(t *testing.T) {
		v, err := CountedArray(StackFrame)(NewCursor(testutil.NewSaveWriter().Int32(0).Bytes()))
		require.NoError(t, err)
		assert.Equal(t, document.KindArray, v.Kind())
		assert.Equal(t, 0, v.Len())
	})

	t.Run("negative count", func(t *testing.T) {
		_, err := CountedArray(Int32)(NewCursor(testutil.NewSaveWriter().Int32(-1).Bytes()))
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("count larger than data", func(t *testing.T) {
		_, err := CountedArray(Int32)(NewCursor(testutil.NewSaveWriter().Int32(1000).Int32(1).Bytes()))
		assert.ErrorIs(t, err, ErrTruncatedInput)
	})
}

func TestEmbedded(t *testing.T) {
	doc := testutil.Doc(bsoncore.AppendStringElement(nil, "track", "bgm"))
	buf := append(append([]byte(nil), doc...), 0x7F)

	c := NewCursor(buf)
	v, err := Embedded(bsondoc.ModeObject)(c)
	require.NoError(t, err)
	assert.Equal(t, len(doc), c.Offset())

	track, ok := v.Get("track")
	require.True(t, ok)
	s, _ := track.Text()
	assert.Equal(t, "bgm", s)
}

func TestEmbeddedErrors(t *testing.T) {
	_, err := Embedded(bsondoc.ModeObject)(NewCursor(nil))
	assert.ErrorIs(t, err, ErrTruncatedInput, "absent sub-document is a truncation")

	doc := testutil.Doc(bsoncore.AppendInt32Element(nil, "a", 1))
	_, err = Embedded(bsondoc.ModeObject)(NewCursor(doc[:len(doc)-2]))
	assert.ErrorIs(t, err, ErrTruncatedInput)

	bad := []byte{5, 0, 0, 0, 1} // missing terminator
	c := NewCursor(bad)
	_, err = Embedded(bsondoc.ModeObject)(c)
	assert.True(t, errors.Is(err, ErrInvalidFormat), "got %v", err)
	assert.Equal(t, 0, c.Offset())
}

func TestMemorySlotValueUsesArrayRoot(t *testing.T) {
	value := testutil.Doc(
		bsoncore.AppendInt32Element(nil, "0", 42),
	)
	buf := testutil.NewSaveWriter().
		String("s_flag").
		Int32(1).
		String("int").
		Raw(value).
		Bytes()

	v, err := MemorySlot(NewCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, []string{"Key", "Scope", "Type", "Value"}, v.Keys())

	val, _ := v.Get("Value")
	require.Equal(t, document.KindArray, val.Kind())
	first, _ := val.Index(0)
	n, _ := first.Int()
	assert.Equal(t, int64(42), n)
}
