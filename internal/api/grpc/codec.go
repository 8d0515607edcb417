package grpcapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// EventToStruct converts a session event into its wire form.
func EventToStruct(ev models.Event) (*structpb.Struct, error) {
	return toStruct(ev)
}

// MessageToStruct converts a client message into its wire form.
func MessageToStruct(msg models.ClientMessage) (*structpb.Struct, error) {
	return toStruct(msg)
}

// StructToEvent decodes a session event.
func StructToEvent(s *structpb.Struct) (models.Event, error) {
	var ev models.Event
	err := fromStruct(s, &ev)
	return ev, err
}

// StructToMessage decodes a client message.
func StructToMessage(s *structpb.Struct) (models.ClientMessage, error) {
	var msg models.ClientMessage
	err := fromStruct(s, &msg)
	return msg, err
}

// toStruct goes through JSON so field names match the websocket transport.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}
	return nil
}
