package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "github.com/consultedge/emi-reminder-ai/internal/api/grpc"
	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// Caller lines sent one per listening turn.
var script = []string{
	"Hello, who is this?",
	"I lost my job last month and money is tight",
	"Can I pay next week instead?",
	"Okay I will pay on Friday, thank you",
}

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	name := flag.String("name", "Asha Verma", "Client name")
	totalDue := flag.Float64("total-due", 15000, "Total outstanding amount")
	emi := flag.Float64("emi", 2500, "EMI amount")
	dueDate := flag.String("due", time.Now().AddDate(0, 0, 5).Format("2006-01-02"), "Due date (YYYY-MM-DD)")
	flag.Parse()

	due, err := models.ParseDate(*dueDate)
	if err != nil {
		log.Fatalf("Invalid due date: %v", err)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("Connected to server")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stream, err := grpcapi.Converse(ctx, conn)
	if err != nil {
		log.Fatalf("failed to create stream: %v", err)
	}

	send := func(msg models.ClientMessage) {
		if err := stream.Send(msg); err != nil {
			log.Fatalf("failed to send %s: %v", msg.Type, err)
		}
	}

	send(models.ClientMessage{
		Type:    models.MessageSessionStart,
		Capture: "client",
		Profile: &models.ClientProfile{
			Name:              *name,
			TotalOutstanding:  models.Amount(*totalDue),
			InstallmentAmount: models.Amount(*emi),
			DueDate:           due,
		},
	})
	send(models.ClientMessage{Type: models.MessageConversationStart})

	next := 0
	for {
		ev, err := stream.Recv()
		if err != nil {
			log.Fatalf("stream ended: %v", err)
		}

		switch ev.Type {
		case models.EventSessionReady:
			log.Printf("Session ready: %s", ev.SessionID)
		case models.EventState:
			log.Printf("State -> %s (%s)", ev.State, ev.Reason)
		case models.EventTurn:
			log.Printf("[%s] %s", strings.ToUpper(string(ev.Turn.Speaker)), ev.Turn.Text)
		case models.EventError:
			log.Printf("Error (%s): %s", ev.ErrorKind, ev.Text)
		case models.EventSpeakAudio, models.EventSpeakLocal:
			// Pretend playback takes a moment.
			time.Sleep(300 * time.Millisecond)
			send(models.ClientMessage{Type: models.MessagePlaybackEnded, PlaybackID: ev.PlaybackID})
		case models.EventCaptureStart:
			if next == len(script) {
				send(models.ClientMessage{Type: models.MessageConversationStop})
				if err := stream.CloseSend(); err != nil {
					log.Fatalf("failed to close stream: %v", err)
				}
				log.Println("Script finished")
				return
			}
			line := script[next]
			next++
			log.Printf("Caller says: %q", line)
			send(models.ClientMessage{
				Type:       models.MessageFragment,
				CaptureID:  ev.CaptureID,
				Text:       line,
				IsFinal:    true,
				Confidence: 0.9,
			})
		}
	}
}
