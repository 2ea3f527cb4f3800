package parser

import (
	"log/slog"

	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/models"
)

// Parser decodes one kind of unpacked persistence file.
type Parser interface {
	// Name returns the unique name of the parser ("save", "global").
	Name() string
	// CanParse reports whether the unpacked buffer looks like this parser's format.
	CanParse(plain []byte) bool
	// Parse decodes the whole unpacked buffer. No partial document is returned on error.
	Parse(plain []byte, opts Options) (*Result, error)
}

// Options carries per-decode settings. The zero value is usable for global files.
type Options struct {
	// FormatVersion gates fields added in later engine releases. It is not
	// stored in the file and must be supplied by the caller for saves.
	FormatVersion int
	Logger        *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Result is a decoded document plus any non-fatal diagnostics.
type Result struct {
	Kind        string
	Document    *document.Value
	Diagnostics []models.Diagnostic
}

func newResult(kind string, doc *document.Value) *Result {
	return &Result{Kind: kind, Document: doc, Diagnostics: make([]models.Diagnostic, 0)}
}

func (r *Result) addDiagnostic(code, field, msg string) {
	r.Diagnostics = append(r.Diagnostics, models.Diagnostic{Code: code, Field: field, Message: msg})
}
