package gameserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// encode converts v's JSON form into a Struct.
//
// Precondition: v must marshal to a JSON object.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return s, nil
}

// decode fills v from s, rejecting fields v does not declare.
func decode(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	return nil
}

// withServerTime stamps s with the proto3 JSON form of now.
func withServerTime(s *structpb.Struct, now time.Time) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(timestamppb.New(now))
	if err != nil {
		return nil, fmt.Errorf("encoding server time: %w", err)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("encoding server time: %w", err)
	}
	s.Fields["serverTime"] = structpb.NewStringValue(text)
	return s, nil
}

// marshalJSON renders s as JSON for non-gRPC transports.
func marshalJSON(s *structpb.Struct) ([]byte, error) {
	return protojson.Marshal(s)
}
