package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/consultedge/emi-reminder-ai/internal/config"
	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/responder"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
)

type stubResponder struct{}

func (stubResponder) Respond(ctx context.Context, req responder.Request) responder.Reply {
	return responder.Reply{Text: "Noted, " + req.Profile.Name + ".", Tier: responder.TierRules}
}

func startServer(t *testing.T) (*session.Manager, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	manager := session.NewManager(session.Dependencies{
		Responder:       stubResponder{},
		Engines:         session.NewEngineFactory(config.STTConfig{}),
		CaptureProvider: "client",
		Conversation: config.ConversationConfig{
			Debounce:        50 * time.Millisecond,
			PlaybackTimeout: time.Second,
		},
	})

	srv := grpc.NewServer()
	Register(srv, manager)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return manager, conn
}

func recvUntil(t *testing.T, s *Stream, typ string) models.Event {
	t.Helper()
	for {
		ev, err := s.Recv()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if ev.Type == typ {
			return ev
		}
	}
}

func TestConverse_Turn(t *testing.T) {
	manager, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := Converse(ctx, conn)
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}

	profile := &models.ClientProfile{Name: "Ravi", TotalOutstanding: 9000, InstallmentAmount: 1500}
	if err := stream.Send(models.ClientMessage{Type: models.MessageSessionStart, SessionID: "g-1", Profile: profile}); err != nil {
		t.Fatal(err)
	}
	if ev := recvUntil(t, stream, models.EventSessionReady); ev.SessionID != "g-1" {
		t.Errorf("ready = %+v", ev)
	}

	if err := stream.Send(models.ClientMessage{Type: models.MessageConversationStart}); err != nil {
		t.Fatal(err)
	}
	capture := recvUntil(t, stream, models.EventCaptureStart)

	err = stream.Send(models.ClientMessage{
		Type:       models.MessageFragment,
		CaptureID:  capture.CaptureID,
		Text:       "I will pay on Friday",
		IsFinal:    true,
		Confidence: 0.92,
	})
	if err != nil {
		t.Fatal(err)
	}

	speak := recvUntil(t, stream, models.EventSpeakLocal)
	if speak.Text != "Noted, Ravi." {
		t.Errorf("speak text = %q", speak.Text)
	}
	if err := stream.Send(models.ClientMessage{Type: models.MessagePlaybackEnded, PlaybackID: speak.PlaybackID}); err != nil {
		t.Fatal(err)
	}
	for {
		ev := recvUntil(t, stream, models.EventState)
		if ev.State == "listening" {
			break
		}
	}

	if err := stream.CloseSend(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for manager.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not closed after stream end")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConverse_RejectsBeforeStart(t *testing.T) {
	_, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := Converse(ctx, conn)
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if err := stream.Send(models.ClientMessage{Type: models.MessageConversationStart}); err != nil {
		t.Fatal(err)
	}
	ev := recvUntil(t, stream, models.EventError)
	if ev.ErrorKind != session.ErrorKindRequest || ev.Text != session.ErrNotStarted.Error() {
		t.Errorf("error event = %+v", ev)
	}
}

func TestCodec_AudioSurvivesStruct(t *testing.T) {
	in := models.ClientMessage{Type: models.MessageAudio, Audio: []byte{0, 1, 2, 250}}
	s, err := MessageToStruct(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := StructToMessage(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Audio) != string(in.Audio) || out.Type != in.Type {
		t.Errorf("round trip = %+v", out)
	}
}
