package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedInput means a required read ran past the end of the buffer.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrInvalidFormat means the bytes do not follow the expected layout
	// (bad magic, bad length prefix, malformed sub-document).
	ErrInvalidFormat = errors.New("invalid format")
	// ErrUnsupportedVersion means the container version field is not the supported one.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrOptionalFieldMissing marks an optional trailing field that could not be read.
	// It is only ever reported as a diagnostic, never returned.
	ErrOptionalFieldMissing = errors.New("optional field missing")
	// ErrUnknownParser is returned when a parser is requested by a name no parser has.
	ErrUnknownParser = errors.New("unknown parser")
)

// Diagnostic codes.
const (
	CodeOptionalFieldMissing = "OptionalFieldMissing"
	CodeTrailingData         = "TrailingData"
)

// DecodeError reports which decode step failed and where.
type DecodeError struct {
	Step   string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s at offset %d: %v", e.Step, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func stepError(step string, c *Cursor, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Step: step, Offset: c.Offset(), Err: err}
}
