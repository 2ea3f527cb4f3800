// fixtures.go - Builders for synthetic save and global files
package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/mgsv-tools/savedump/internal/keystream"
	"github.com/mgsv-tools/savedump/internal/lzf"
)

// SaveWriter writes values in the engine's binary layout.
type SaveWriter struct {
	buf bytes.Buffer
}

// NewSaveWriter creates an empty writer.
func NewSaveWriter() *SaveWriter {
	return &SaveWriter{}
}

func (w *SaveWriter) Raw(b []byte) *SaveWriter {
	w.buf.Write(b)
	return w
}

func (w *SaveWriter) Bool(b bool) *SaveWriter {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return w
}

func (w *SaveWriter) Int32(v int32) *SaveWriter {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(v)))
	return w
}

func (w *SaveWriter) Int64(v int64) *SaveWriter {
	w.buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(v)))
	return w
}

func (w *SaveWriter) Float32(v float32) *SaveWriter {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, math.Float32bits(v)))
	return w
}

// String writes a 7-bit-group length prefix followed by UTF-8 bytes.
func (w *SaveWriter) String(s string) *SaveWriter {
	n := uint32(len(s))
	for n >= 0x80 {
		w.buf.WriteByte(byte(n) | 0x80)
		n >>= 7
	}
	w.buf.WriteByte(byte(n))
	w.buf.WriteString(s)
	return w
}

func (w *SaveWriter) Vector2(x, y float32) *SaveWriter {
	return w.Float32(x).Float32(y)
}

func (w *SaveWriter) Vector3(x, y, z float32) *SaveWriter {
	return w.Float32(x).Float32(y).Float32(z)
}

func (w *SaveWriter) Color(r, g, b, a float32) *SaveWriter {
	return w.Float32(r).Float32(g).Float32(b).Float32(a)
}

func (w *SaveWriter) StackFrame(filename string, line int32) *SaveWriter {
	return w.String(filename).Int32(line)
}

// LayerFixture describes a layer to write. Origin and ForceSize are only
// written for versions that carry them; nil means the presence flag is false.
type LayerFixture struct {
	Position   [3]float32
	Scale      [3]float32
	Filename   string
	Alpha      float32
	Alignment  int32
	Origin     *[2]float32
	ForceSize  *[2]float32
	ShaderType int32
}

// Layer writes one layer record for the given format version.
func (w *SaveWriter) Layer(version int, l LayerFixture) *SaveWriter {
	w.Vector3(l.Position[0], l.Position[1], l.Position[2])
	w.Vector3(l.Scale[0], l.Scale[1], l.Scale[2])
	w.String(l.Filename).Float32(l.Alpha).Int32(l.Alignment)
	if version >= 7 {
		for _, v := range []*[2]float32{l.Origin, l.ForceSize} {
			w.Bool(v != nil)
			if v != nil {
				w.Vector2(v[0], v[1])
			}
		}
	}
	return w.Int32(l.ShaderType)
}

// Len returns the number of bytes written so far.
func (w *SaveWriter) Len() int { return w.buf.Len() }

// Bytes returns a copy of the written bytes.
func (w *SaveWriter) Bytes() []byte {
	return bytes.Clone(w.buf.Bytes())
}

// EmptyDoc returns an empty BSON document.
func EmptyDoc() []byte {
	return bsoncore.BuildDocumentFromElements(nil)
}

// Doc builds a BSON document from bsoncore.Append*Element outputs.
func Doc(elems ...[]byte) []byte {
	return bsoncore.BuildDocumentFromElements(nil, elems...)
}

// TextArrayDoc builds a document whose keys are "0".."n-1", the layout BSON
// uses for arrays written at the root.
func TextArrayDoc(items ...string) []byte {
	elems := make([][]byte, len(items))
	for i, s := range items {
		elems[i] = bsoncore.AppendStringElement(nil, strconv.Itoa(i), s)
	}
	return Doc(elems...)
}

// Int32ArrayValue builds a BSON array body for use with AppendArrayElement.
func Int32ArrayValue(items ...int32) []byte {
	elems := make([][]byte, len(items))
	for i, n := range items {
		elems[i] = bsoncore.AppendInt32Element(nil, strconv.Itoa(i), n)
	}
	return Doc(elems...)
}

// SceneFixture describes a scene. Layers maps slot index to layer.
type SceneFixture struct {
	FaceToUpperLayer  bool
	UseFilm           bool
	UseBlur           bool
	UseHorizontalBlur bool
	FilmPower         int32
	FilmType          int32
	FilmStyle         int32
	FilmColor         [4]float32
	Background        LayerFixture
	FaceLayer         *LayerFixture
	Layers            map[int]LayerFixture
	// FragmentController is written only for versions that carry it.
	FragmentController *[2]string
}

// Scene writes a scene record for the given format version.
func (w *SaveWriter) Scene(version int, s SceneFixture) *SaveWriter {
	w.Bool(s.FaceToUpperLayer).Bool(s.UseFilm).Bool(s.UseBlur).Bool(s.UseHorizontalBlur)
	w.Int32(s.FilmPower).Int32(s.FilmType).Int32(s.FilmStyle)
	w.Color(s.FilmColor[0], s.FilmColor[1], s.FilmColor[2], s.FilmColor[3])
	w.Layer(version, s.Background)
	w.Bool(s.FaceLayer != nil)
	if s.FaceLayer != nil {
		w.Layer(version, *s.FaceLayer)
	}
	for i := 0; i < 64; i++ {
		l, ok := s.Layers[i]
		w.Bool(ok)
		if ok {
			w.Layer(version, l)
		}
	}
	if version >= 7 {
		w.Bool(s.FragmentController != nil)
		if fc := s.FragmentController; fc != nil {
			w.String(fc[0]).String(fc[1])
		}
	}
	return w
}

// SaveHeader writes the magic and container version.
func (w *SaveWriter) SaveHeader() *SaveWriter {
	return w.Raw([]byte("MGSV")).Int32(1)
}

// MinimalSave returns the smallest valid unpacked save for a format version:
// zero timestamp, empty texts and stacks, empty sub-documents and a scene
// with only a trivial background layer.
func MinimalSave(version int) []byte {
	w := NewSaveWriter().SaveHeader()
	w.Int64(0)
	w.String("").String("").String("").String("")
	w.Bool(false)
	w.Int32(0)
	w.StackFrame("", 0)
	w.Int32(0)
	w.Raw(EmptyDoc()).Raw(EmptyDoc())
	w.Raw(EmptyDoc())
	w.Scene(version, SceneFixture{})
	return w.Bytes()
}

// GlobalFile concatenates the global documents. Pass nil for
// graphicsPresetState to produce a file from before it existed.
func GlobalFile(flags, cgflags, readText, graphicsPresetState []byte) []byte {
	var b bytes.Buffer
	b.Write(flags)
	b.Write(cgflags)
	b.Write(readText)
	b.Write(graphicsPresetState)
	return b.Bytes()
}

// Pack compresses and obfuscates an unpacked buffer the way the engine writes files.
func Pack(plain []byte) []byte {
	packed := lzf.Compress(plain)
	keystream.Apply(packed)
	return packed
}
