package parser

import (
	"fmt"

	"github.com/mgsv-tools/savedump/internal/keystream"
	"github.com/mgsv-tools/savedump/internal/lzf"
)

// KindAuto asks DecodeFile to pick the parser from the unpacked content.
const KindAuto = "auto"

// Unpack reverses the keystream and decompresses a raw file. The caller's
// buffer is left untouched.
func Unpack(raw []byte) ([]byte, error) {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	keystream.Apply(buf)

	plain, err := lzf.Decompress(buf)
	if err != nil {
		return nil, &DecodeError{Step: "decompress", Err: fmt.Errorf("%w: %w", ErrInvalidFormat, err)}
	}
	return plain, nil
}

// DecodeSave unpacks and decodes a save file for the given format version.
func DecodeSave(raw []byte, version int, opts Options) (*Result, error) {
	opts.FormatVersion = version
	return decodeWith(NewSaveParser(), raw, opts)
}

// DecodeGlobal unpacks and decodes a global progress file.
func DecodeGlobal(raw []byte, opts Options) (*Result, error) {
	return decodeWith(NewGlobalParser(), raw, opts)
}

// DecodeFile unpacks raw and decodes it with the named parser, or with the
// detected parser when kind is empty or KindAuto.
func DecodeFile(raw []byte, kind string, opts Options) (*Result, error) {
	plain, err := Unpack(raw)
	if err != nil {
		return nil, err
	}

	reg := GetGlobalRegistry()
	var p Parser
	if kind == "" || kind == KindAuto {
		p, err = reg.FindParser(plain)
	} else {
		p, err = reg.GetParserByName(kind)
	}
	if err != nil {
		return nil, err
	}

	opts.logger().Debug("decoding", "component", "decode", "parser", p.Name(),
		"packed", len(raw), "unpacked", len(plain), "formatVersion", opts.FormatVersion)
	return p.Parse(plain, opts)
}

func decodeWith(p Parser, raw []byte, opts Options) (*Result, error) {
	plain, err := Unpack(raw)
	if err != nil {
		return nil, err
	}
	return p.Parse(plain, opts)
}
