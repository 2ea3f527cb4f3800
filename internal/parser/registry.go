package parser

import (
	"fmt"
	"strings"
)

// Registry holds the available parsers and provides auto-detection.
type Registry struct {
	parsers []Parser
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry with the save and global parsers.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewSaveParser(),
			NewGlobalParser(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Names lists the registered parser names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}

// FindParser detects the parser for an unpacked buffer.
func (r *Registry) FindParser(plain []byte) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(plain) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no parser recognises the unpacked data", ErrInvalidFormat)
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownParser, name)
}
