package runtime

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this codec registers under; calls
// made with grpc.CallContentSubtype(codecName) are framed as
// "application/grpc+json" instead of the default protobuf framing.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets the embedded-runtime service exchange the plain Go structs
// in proto.go over gRPC without protoc-generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("runtime: marshaling %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("runtime: unmarshaling into %T: %w", v, err)
	}
	return nil
}
