// Package codec selects the JSON encoding used for the store manifest and
// CLI reports.
//
// Both codecs produce standard JSON, so either reads the other's output.
// GoJSON is the default; JSON is kept for comparison in tests.
package codec

import "fmt"

// Codec encodes and decodes values. Implementations are safe for concurrent
// use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Indenter is implemented by codecs that can pretty-print.
type Indenter interface {
	MarshalIndent(v any, prefix, indent string) ([]byte, error)
}

// ByName returns a built-in codec by its persisted name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Pretty encodes v with two-space indentation when c supports it.
func Pretty(c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	if in, ok := c.(Indenter); ok {
		return in.MarshalIndent(v, "", "  ")
	}
	b, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", c.Name(), err)
	}
	return b, nil
}

// Default is the codec for newly created manifests.
var Default Codec = GoJSON{}
