// Package wire converts linkrank's JSON documents to and from
// google.protobuf.Struct, the envelope used on gRPC and on the job queue.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts any JSON-encodable value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("wire: encode %T: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes a protobuf Struct into v, which must be a pointer.
// Fields already set in v survive unless s overrides them.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("wire: decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: decode %T: %w", v, err)
	}
	return nil
}

// ContentType labels message bodies produced by Marshal.
const ContentType = "application/x-protobuf"

// Marshal encodes v as a binary protobuf Struct.
func Marshal(v any) ([]byte, error) {
	s, err := ToStruct(v)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal decodes a binary protobuf Struct produced by Marshal into v.
func Unmarshal(data []byte, v any) error {
	s := new(structpb.Struct)
	if err := proto.Unmarshal(data, s); err != nil {
		return fmt.Errorf("wire: unmarshal %T: %w", v, err)
	}
	return FromStruct(s, v)
}
