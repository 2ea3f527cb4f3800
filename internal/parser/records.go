package parser

import (
	"fmt"
	"strconv"

	"github.com/mgsv-tools/savedump/internal/bsondoc"
	"github.com/mgsv-tools/savedump/internal/document"
)

// VersionLayerExtents is the first format version whose layers carry the
// Origin and ForceSize vectors and whose scenes carry a FragmentController.
const VersionLayerExtents = 7

// LayerSlots is the number of indexed layer slots in a scene.
const LayerSlots = 64

var (
	Color = Record(
		NamedField(Float32, "r"),
		NamedField(Float32, "g"),
		NamedField(Float32, "b"),
		NamedField(Float32, "a"),
	)

	Vector3 = Record(
		NamedField(Float32, "x"),
		NamedField(Float32, "y"),
		NamedField(Float32, "z"),
	)

	Vector2 = Record(
		NamedField(Float32, "x"),
		NamedField(Float32, "y"),
	)

	StackFrame = Record(
		NamedField(String, "Filename"),
		NamedField(Int32, "LineNum"),
	)

	FragmentController = Record(
		NamedField(String, "CubemapName"),
		NamedField(String, "FragmentPrefab"),
	)

	// MemorySlot is one script variable. The value's shape comes from the
	// embedded sub-document, not from Scope or Type.
	MemorySlot = Record(
		NamedField(String, "Key"),
		NamedField(Int32, "Scope"),
		NamedField(String, "Type"),
		NamedField(Embedded(bsondoc.ModeArray), "Value"),
	)
)

// Layer returns the layer decoder for a format version.
func Layer(version int) Decoder {
	fields := []FieldDecoder{
		NamedField(Vector3, "Position"),
		NamedField(Vector3, "Scale"),
		NamedField(String, "Filename"),
		NamedField(Float32, "Alpha"),
		NamedField(Int32, "Alignment"),
	}
	if version >= VersionLayerExtents {
		fields = append(fields,
			NamedField(Optional(Vector2), "Origin"),
			NamedField(Optional(Vector2), "ForceSize"),
		)
	}
	fields = append(fields, NamedField(Int32, "ShaderType"))
	return Record(fields...)
}

// LayerTable decodes the scene's fixed table of LayerSlots optional layers.
// Each slot is a presence flag immediately followed by the layer when set.
// Only present slots appear in the output, keyed by decimal index.
func LayerTable(version int) Decoder {
	layer := Layer(version)
	return func(c *Cursor) (*document.Value, error) {
		var slots [LayerSlots]*document.Value
		for i := range slots {
			present, err := c.ReadBool()
			if err != nil {
				return nil, fmt.Errorf("slot %d presence flag: %w", i, err)
			}
			if !present {
				continue
			}
			if slots[i], err = layer(c); err != nil {
				return nil, fmt.Errorf("slot %d: %w", i, err)
			}
		}

		b := document.NewObjectBuilder(0)
		for i, v := range slots {
			if v != nil {
				b.Set(strconv.Itoa(i), v)
			}
		}
		return b.Build(), nil
	}
}

// Scene returns the scene decoder for a format version.
func Scene(version int) Decoder {
	layer := Layer(version)
	fields := []FieldDecoder{
		NamedField(Bool, "FaceToUpperLayer"),
		NamedField(Bool, "UseFilm"),
		NamedField(Bool, "UseBlur"),
		NamedField(Bool, "UseHorizontalBlur"),
		NamedField(Int32, "FilmPower"),
		NamedField(Int32, "FilmType"),
		NamedField(Int32, "FilmStyle"),
		NamedField(Color, "FilmColor"),
		NamedField(layer, "Background"),
		NamedField(Optional(layer), "FaceLayer"),
		NamedField(LayerTable(version), "Layers"),
	}
	if version >= VersionLayerExtents {
		fields = append(fields, NamedField(Optional(FragmentController), "FragmentController"))
	}
	return Record(fields...)
}
