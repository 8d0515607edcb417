package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// Stream is the client side of a Converse call.
type Stream struct {
	grpc.ClientStream
}

// Converse opens a conversation stream on cc.
func Converse(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (*Stream, error) {
	cs, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], converseMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &Stream{ClientStream: cs}, nil
}

// Send writes one client message.
func (s *Stream) Send(msg models.ClientMessage) error {
	m, err := MessageToStruct(msg)
	if err != nil {
		return err
	}
	return s.SendMsg(m)
}

// Recv reads the next session event.
func (s *Stream) Recv() (models.Event, error) {
	in := new(structpb.Struct)
	if err := s.RecvMsg(in); err != nil {
		return models.Event{}, err
	}
	return StructToEvent(in)
}
