// Command savedump decodes an encrypted save file or global.dat and prints it
// as a structured document.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/pflag"

	"github.com/mgsv-tools/savedump/internal/document"
	"github.com/mgsv-tools/savedump/internal/parser"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	format   string
	output   string
	gzip     bool
	logLevel string
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("savedump", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.format, "format", "f", "json", "output format: json, yaml, msgpack or cbor")
	flagSet.StringVarP(&opts.output, "output", "o", "", "write to this file instead of stdout")
	flagSet.BoolVar(&opts.gzip, "gzip", false, "gzip-compress the output")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	positional := flagSet.Args()
	if len(positional) != 2 {
		printHelp(stderr, flagSet)
		return fmt.Errorf("expected 2 arguments, got %d", len(positional))
	}

	format, err := document.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", opts.logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	mode, path := positional[0], positional[1]
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := decode(mode, raw, logger.With("file", path))
	if err != nil {
		return describeFailure(path, err)
	}

	return writeDocument(result.Document, format, opts, stdout)
}

// decode runs the global decoder for "global" and the save decoder with the
// given format version otherwise.
func decode(mode string, raw []byte, logger *slog.Logger) (*parser.Result, error) {
	opts := parser.Options{Logger: logger}
	if strings.EqualFold(mode, "global") {
		return parser.DecodeGlobal(raw, opts)
	}

	version, err := strconv.Atoi(mode)
	if err != nil || version < 1 {
		return nil, fmt.Errorf("format version must be a positive number or \"global\", got %q", mode)
	}
	opts.FormatVersion = version
	return parser.DecodeSave(raw, version, opts)
}

func describeFailure(path string, err error) error {
	var de *parser.DecodeError
	if errors.As(err, &de) {
		return fmt.Errorf("%s: step %q failed at offset %d: %w", path, de.Step, de.Offset, de.Err)
	}
	return fmt.Errorf("%s: %w", path, err)
}

func writeDocument(doc *document.Value, format document.Format, opts options, stdout io.Writer) (err error) {
	w := stdout
	if opts.output != "" {
		var f *os.File
		if f, err = os.Create(opts.output); err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if opts.gzip {
		zw := gzip.NewWriter(w)
		if err := document.Render(zw, doc, format); err != nil {
			return err
		}
		return zw.Close()
	}

	return document.Render(w, doc, format)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `savedump decodes a save file or global.dat into a structured document.

Usage:
  savedump [flags] <formatVersion> <save file>
  savedump [flags] global <global.dat>

The format version is the game release the save came from (1 for the first
chapter, 5 for the fifth, and so on); it decides which fields the file carries.

Flags:
%s`, flagSet.FlagUsages())
}
