package groupbuyv1

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// jsonCodec carries the plain Go messages of this package over connect's
// JSON content type. It replaces connect's protojson codec, which only accepts
// generated protobuf messages.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (jsonCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("failed to decode %T: %w", message, err)
	}
	return nil
}

// WithJSON returns the option that installs the codec on a handler or client
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
