package codec

import gojson "github.com/goccy/go-json"

// GoJSON is backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Name returns "go-json".
func (GoJSON) Name() string { return "go-json" }

func (GoJSON) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}
