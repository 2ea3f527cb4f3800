// Package bsondoc reads the compact BSON sub-documents the engine embeds in its
// save and global files and converts them into document trees.
//
// A sub-document is self-delimiting (it starts with its own int32 length), so a
// reader positioned at one consumes exactly that many bytes. The caller chooses
// whether the root is exposed as an object or, for documents the engine wrote as
// arrays, as an array of the root's values.
package bsondoc

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mgsv-tools/savedump/internal/document"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

var (
	// ErrTruncated means the buffer ends before the sub-document does.
	ErrTruncated = errors.New("bson: truncated sub-document")
	// ErrMalformed means the bytes are not a valid BSON document.
	ErrMalformed = errors.New("bson: malformed sub-document")
	// ErrUnsupportedType means the document holds a type with no document mapping.
	ErrUnsupportedType = errors.New("bson: unsupported element type")
)

// Mode selects how the root of a sub-document is exposed.
type Mode int

const (
	// ModeObject exposes the root as an object.
	ModeObject Mode = iota
	// ModeArray exposes the root's values, in order, as an array.
	ModeArray
)

func (m Mode) String() string {
	if m == ModeArray {
		return "array"
	}
	return "object"
}

// Status tells whether a sub-document was present.
type Status int

const (
	// StatusPresent means a document was decoded.
	StatusPresent Status = iota
	// StatusAbsent means the buffer was already exhausted; no bytes were consumed.
	StatusAbsent
)

// Result is the outcome of a successful Read.
type Result struct {
	Status Status
	Value  *document.Value // null when Status is StatusAbsent
}

// Present reports whether a document was decoded.
func (r Result) Present() bool { return r.Status == StatusPresent }

const minDocumentSize = 5 // int32 length + terminating zero

// Read decodes one sub-document from the start of src and reports how many bytes
// it occupied. An empty src is not an error: it yields StatusAbsent.
func Read(src []byte, mode Mode) (Result, int, error) {
	if len(src) == 0 {
		return Result{Status: StatusAbsent, Value: document.Null()}, 0, nil
	}
	if len(src) < 4 {
		return Result{}, 0, fmt.Errorf("%w: %d bytes left, need a 4-byte length", ErrTruncated, len(src))
	}

	length := int(int32(binary.LittleEndian.Uint32(src)))
	if length < minDocumentSize {
		return Result{}, 0, fmt.Errorf("%w: declared length %d", ErrMalformed, length)
	}
	if length > len(src) {
		return Result{}, 0, fmt.Errorf("%w: declared length %d, %d bytes left", ErrTruncated, length, len(src))
	}

	doc, _, ok := bsoncore.ReadDocument(src)
	if !ok {
		return Result{}, 0, fmt.Errorf("%w: unreadable document header", ErrMalformed)
	}
	if err := doc.Validate(); err != nil {
		return Result{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		v   *document.Value
		err error
	)
	if mode == ModeArray {
		v, err = convertArrayRoot(doc)
	} else {
		v, err = convertDocument(doc)
	}
	if err != nil {
		return Result{}, 0, err
	}

	return Result{Status: StatusPresent, Value: v}, length, nil
}

func convertDocument(doc bsoncore.Document) (*document.Value, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	b := document.NewObjectBuilder(len(elems))
	for _, elem := range elems {
		v, err := convertValue(elem.Value())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", elem.Key(), err)
		}
		b.Set(elem.Key(), v)
	}
	return b.Build(), nil
}

// convertArrayRoot treats a document's values as array items, ignoring the keys.
func convertArrayRoot(doc bsoncore.Document) (*document.Value, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	items := make([]*document.Value, 0, len(elems))
	for i, elem := range elems {
		v, err := convertValue(elem.Value())
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return document.Array(items...), nil
}

func convertArray(arr bsoncore.Array) (*document.Value, error) {
	values, err := arr.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	items := make([]*document.Value, 0, len(values))
	for i, val := range values {
		v, err := convertValue(val)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return document.Array(items...), nil
}

func convertValue(val bsoncore.Value) (*document.Value, error) {
	switch val.Type {
	case bsontype.Double:
		return document.Float(val.Double()), nil
	case bsontype.String:
		return document.Text(val.StringValue()), nil
	case bsontype.Symbol:
		return document.Text(val.Symbol()), nil
	case bsontype.JavaScript:
		return document.Text(val.JavaScript()), nil
	case bsontype.EmbeddedDocument:
		return convertDocument(val.Document())
	case bsontype.Array:
		return convertArray(val.Array())
	case bsontype.Binary:
		_, data := val.Binary()
		return document.Text(base64.StdEncoding.EncodeToString(data)), nil
	case bsontype.ObjectID:
		id := val.ObjectID()
		return document.Text(base64.StdEncoding.EncodeToString(id[:])), nil
	case bsontype.Boolean:
		return document.Bool(val.Boolean()), nil
	case bsontype.DateTime:
		return document.Time(time.UnixMilli(val.DateTime())), nil
	case bsontype.Null, bsontype.Undefined:
		return document.Null(), nil
	case bsontype.Regex:
		pattern, options := val.Regex()
		return document.Text("/" + pattern + "/" + options), nil
	case bsontype.Int32:
		return document.Int(int64(val.Int32())), nil
	case bsontype.Int64:
		return document.Int(val.Int64()), nil
	case bsontype.Timestamp:
		t, i := val.Timestamp()
		return document.Int(int64(t)<<32 | int64(i)), nil
	case bsontype.CodeWithScope:
		code, scope := val.CodeWithScope()
		scopeValue, err := convertDocument(scope)
		if err != nil {
			return nil, err
		}
		return document.Object(
			document.Field{Key: "$code", Value: document.Text(code)},
			document.Field{Key: "$scope", Value: scopeValue},
		), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, val.Type)
}
