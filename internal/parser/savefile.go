package parser

import (
	"bytes"
	"fmt"

	"github.com/mgsv-tools/savedump/internal/bsondoc"
	"github.com/mgsv-tools/savedump/internal/document"
)

const (
	// SaveMagic opens every unpacked save file.
	SaveMagic = "MGSV"
	// ContainerVersion is the only container version the engine writes.
	ContainerVersion = 1
	// KindSave names the per-playthrough save parser.
	KindSave = "save"
)

// saveStep is one stage of the save layout. Steps run in order and write
// their fields into the same top-level object.
type saveStep struct {
	name   string
	fields []FieldDecoder
}

func saveSteps(version int) []saveStep {
	return []saveStep{
		{"timestamp", []FieldDecoder{NamedField(Time, "Time")}},
		{"text", []FieldDecoder{
			NamedField(String, "TextJP"),
			NamedField(String, "TextEN"),
			NamedField(String, "PrevTextJP"),
			NamedField(String, "PrevTextEN"),
		}},
		{"append state", []FieldDecoder{NamedField(Bool, "PrevAppendState")}},
		{"call stack", []FieldDecoder{NamedField(CountedArray(StackFrame), "CallStack")}},
		{"current script", []FieldDecoder{NamedField(StackFrame, "CurrentScript")}},
		{"memory", []FieldDecoder{
			NamedField(CountedArray(MemorySlot), "MemoryList"),
			NamedField(Embedded(bsondoc.ModeObject), "VariableReference"),
			NamedField(Embedded(bsondoc.ModeObject), "Flags"),
		}},
		{"audio", []FieldDecoder{NamedField(Embedded(bsondoc.ModeObject), "CurrentAudio")}},
		{"scene", []FieldDecoder{NamedField(Scene(version), "Scene")}},
	}
}

// SaveParser decodes MGSV save files.
type SaveParser struct{}

// NewSaveParser creates a new save parser.
func NewSaveParser() *SaveParser {
	return &SaveParser{}
}

// Name implements Parser.
func (p *SaveParser) Name() string { return KindSave }

// CanParse implements Parser.
func (p *SaveParser) CanParse(plain []byte) bool {
	return bytes.HasPrefix(plain, []byte(SaveMagic))
}

// Parse implements Parser.
func (p *SaveParser) Parse(plain []byte, opts Options) (*Result, error) {
	c := NewCursor(plain)

	magic, err := c.ReadBytes(len(SaveMagic))
	if err != nil {
		return nil, stepError("magic", c, err)
	}
	if string(magic) != SaveMagic {
		return nil, &DecodeError{Step: "magic", Offset: 0,
			Err: fmt.Errorf("%w: header %q is not %q", ErrInvalidFormat, magic, SaveMagic)}
	}

	at := c.Offset()
	container, err := c.ReadInt32()
	if err != nil {
		return nil, stepError("container version", c, err)
	}
	if container != ContainerVersion {
		return nil, &DecodeError{Step: "container version", Offset: at,
			Err: fmt.Errorf("%w: container version %d, want %d", ErrUnsupportedVersion, container, ContainerVersion)}
	}

	b := document.NewObjectBuilder(16)
	for _, step := range saveSteps(opts.FormatVersion) {
		for _, f := range step.fields {
			v, err := f.Decode(c)
			if err != nil {
				return nil, stepError(step.name, c, fmt.Errorf("%s: %w", f.Name, err))
			}
			b.Set(f.Name, v)
		}
	}

	res := newResult(KindSave, b.Build())
	if n := c.Len(); n > 0 {
		res.addDiagnostic(CodeTrailingData, "", fmt.Sprintf("%d unread bytes after scene at offset %d", n, c.Offset()))
		opts.logger().Warn("trailing data after save scene",
			"component", "decode", "bytes", n, "offset", c.Offset())
	}
	return res, nil
}
