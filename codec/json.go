package codec

import "encoding/json"

// JSON is the standard library codec, kept for manifests written by tools
// that do not link go-json.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json".
func (JSON) Name() string { return "json" }

func (JSON) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}
