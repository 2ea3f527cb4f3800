package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format selects a document encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
	FormatCBOR    Format = "cbor"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatJSON, FormatYAML, FormatMsgpack, FormatCBOR}

// ParseFormat maps a user-supplied name to a Format. Empty selects JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	case "cbor":
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("unknown output format: %q", name)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatMsgpack:
		return "application/msgpack"
	case FormatCBOR:
		return "application/cbor"
	}
	return "application/json"
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatMsgpack {
		return "msgpack"
	}
	return string(f)
}

// Render writes v to w in the requested format.
func Render(w io.Writer, v *Value, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v.YAMLNode()); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("encoding msgpack: %w", err)
		}
		return nil
	case FormatCBOR:
		if err := cbor.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("encoding cbor: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown output format: %q", f)
}
