package parser

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mgsv-tools/savedump/internal/bsondoc"
	"github.com/mgsv-tools/savedump/internal/document"
)

// KindGlobal names the global progress file parser.
const KindGlobal = "global"

// Field names of the global progress document, in file order.
const (
	GlobalFlags          = "flags"
	GlobalCGFlags        = "cgflags"
	GlobalReadText       = "readText"
	GlobalGraphicsPreset = "graphicsPresetState"
)

// GlobalParser decodes global.dat: four consecutive BSON documents.
type GlobalParser struct{}

// NewGlobalParser creates a new global progress parser.
func NewGlobalParser() *GlobalParser {
	return &GlobalParser{}
}

// Name implements Parser.
func (p *GlobalParser) Name() string { return KindGlobal }

// CanParse implements Parser. The first document must be a well-formed
// BSON object; saves never start that way because of their magic.
func (p *GlobalParser) CanParse(plain []byte) bool {
	res, _, err := bsondoc.Read(plain, bsondoc.ModeObject)
	return err == nil && res.Present()
}

// Parse implements Parser.
func (p *GlobalParser) Parse(plain []byte, opts Options) (*Result, error) {
	c := NewCursor(plain)
	b := document.NewObjectBuilder(4)

	required := []struct {
		name  string
		mode  bsondoc.Mode
		shape func(*document.Value) (*document.Value, error)
	}{
		{GlobalFlags, bsondoc.ModeObject, intKeyedIntMap},
		{GlobalCGFlags, bsondoc.ModeArray, textList},
		{GlobalReadText, bsondoc.ModeObject, textKeyedIntLists},
	}
	for _, r := range required {
		at := c.Offset()
		raw, err := Embedded(r.mode)(c)
		if err != nil {
			return nil, stepError(r.name, c, err)
		}
		v, err := r.shape(raw)
		if err != nil {
			return nil, &DecodeError{Step: r.name, Offset: at, Err: err}
		}
		b.Set(r.name, v)
	}

	// graphicsPresetState was added in a later release; older files end here.
	log := opts.logger()
	at := c.Offset()
	preset, err := readGraphicsPreset(c)
	res := newResult(KindGlobal, nil)
	if err != nil {
		b.Set(GlobalGraphicsPreset, document.EmptyObject())
		res.addDiagnostic(CodeOptionalFieldMissing, GlobalGraphicsPreset, err.Error())
		log.Warn("graphics preset state not loaded, older global file?",
			"component", "decode", "offset", at, "error", err)
	} else {
		b.Set(GlobalGraphicsPreset, preset)
		if n := c.Len(); n > 0 {
			res.addDiagnostic(CodeTrailingData, "", fmt.Sprintf("%d unread bytes after %s at offset %d", n, GlobalGraphicsPreset, c.Offset()))
			log.Warn("trailing data after global documents",
				"component", "decode", "bytes", n, "offset", c.Offset())
		}
	}
	res.Document = b.Build()
	return res, nil
}

// readGraphicsPreset reports absence as an error so the caller has a single
// recoverable path.
func readGraphicsPreset(c *Cursor) (*document.Value, error) {
	r, err := c.ReadEmbedded(bsondoc.ModeObject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOptionalFieldMissing, err)
	}
	if !r.Present() {
		return nil, fmt.Errorf("%w: no document after %s", ErrOptionalFieldMissing, GlobalReadText)
	}
	v, err := textKeyedIntMap(r.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOptionalFieldMissing, err)
	}
	return v, nil
}

func shapeError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...))
}

// asInt32 accepts any integral number that fits in an int32.
func asInt32(v *document.Value) (*document.Value, bool) {
	if i, ok := v.Int(); ok {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, false
		}
		return v, true
	}
	if f, ok := v.Float(); ok {
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, false
		}
		return document.Int(int64(f)), true
	}
	return nil, false
}

func intKeyedIntMap(v *document.Value) (*document.Value, error) {
	if v.Kind() != document.KindObject {
		return nil, shapeError("expected object, got %s", v.Kind())
	}
	b := document.NewObjectBuilder(v.Len())
	for _, f := range v.Fields() {
		k, err := strconv.ParseInt(f.Key, 10, 32)
		if err != nil {
			return nil, shapeError("key %q is not an int32", f.Key)
		}
		n, ok := asInt32(f.Value)
		if !ok {
			return nil, shapeError("value of %q is %s, not an int32", f.Key, f.Value.Kind())
		}
		b.Set(strconv.FormatInt(k, 10), n)
	}
	return b.Build(), nil
}

func textList(v *document.Value) (*document.Value, error) {
	if v.Kind() != document.KindArray {
		return nil, shapeError("expected array, got %s", v.Kind())
	}
	for i, item := range v.Items() {
		if k := item.Kind(); k != document.KindText && k != document.KindNull {
			return nil, shapeError("element %d is %s, not text", i, k)
		}
	}
	return v, nil
}

func intList(v *document.Value) (*document.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	if v.Kind() != document.KindArray {
		return nil, shapeError("expected array, got %s", v.Kind())
	}
	items := make([]*document.Value, 0, v.Len())
	for i, item := range v.Items() {
		n, ok := asInt32(item)
		if !ok {
			return nil, shapeError("element %d is %s, not an int32", i, item.Kind())
		}
		items = append(items, n)
	}
	return document.Array(items...), nil
}

func textKeyedIntLists(v *document.Value) (*document.Value, error) {
	if v.Kind() != document.KindObject {
		return nil, shapeError("expected object, got %s", v.Kind())
	}
	b := document.NewObjectBuilder(v.Len())
	for _, f := range v.Fields() {
		list, err := intList(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f.Key, err)
		}
		b.Set(f.Key, list)
	}
	return b.Build(), nil
}

func textKeyedIntMap(v *document.Value) (*document.Value, error) {
	if v.Kind() != document.KindObject {
		return nil, shapeError("expected object, got %s", v.Kind())
	}
	b := document.NewObjectBuilder(v.Len())
	for _, f := range v.Fields() {
		n, ok := asInt32(f.Value)
		if !ok {
			return nil, shapeError("value of %q is %s, not an int32", f.Key, f.Value.Kind())
		}
		b.Set(f.Key, n)
	}
	return b.Build(), nil
}
