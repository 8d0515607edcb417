// Package grpcapi exposes live conversation sessions over a bidirectional gRPC stream.
//
// Messages are google.protobuf.Struct values carrying the same fields as the
// websocket transport, so no generated stubs are needed.
package grpcapi

import (
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/logging"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "emi.voice.v1.ConversationService"

const converseMethod = "/" + ServiceName + "/Converse"

// ConversationServer is implemented by Server.
type ConversationServer interface {
	Converse(stream grpc.ServerStream) error
}

// ServiceDesc describes the conversation service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Converse",
			Handler:       converseHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "emi/voice/v1/conversation.proto",
}

func converseHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ConversationServer).Converse(stream)
}

// Server serves conversation sessions.
type Server struct {
	sessions *session.Manager
}

// Register adds the conversation service to g.
func Register(g *grpc.Server, sessions *session.Manager) *Server {
	s := &Server{sessions: sessions}
	g.RegisterService(&ServiceDesc, s)
	return s
}

// Converse runs one session for the lifetime of the stream.
func (s *Server) Converse(stream grpc.ServerStream) error {
	logger := logging.WithComponent("grpc")

	send := func(ev models.Event) error {
		msg, err := EventToStruct(ev)
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	}
	sess := s.sessions.Open(stream.Context(), send)

	err := sess.Serve(func() (models.ClientMessage, error) {
		for {
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return models.ClientMessage{}, err
			}
			msg, err := StructToMessage(in)
			if err != nil {
				if sendErr := sess.Reject(err); sendErr != nil {
					return models.ClientMessage{}, sendErr
				}
				continue
			}
			return msg, nil
		}
	})

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, session.ErrClosed):
		return nil
	case status.Code(err) == codes.Canceled:
		logger.Debug().Str("sessionId", sess.ID()).Msg("Client cancelled conversation stream")
		return nil
	default:
		return err
	}
}
