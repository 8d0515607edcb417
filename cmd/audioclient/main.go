package main

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "github.com/consultedge/emi-reminder-ai/internal/api/grpc"
	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time streaming
// At 8kHz 16-bit mono = 16000 bytes/second
// 100ms chunks = 1600 bytes
const chunkSize = 1600
const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "../../testdata/sample-8khz.wav", "Path to WAV file (8kHz 16-bit mono)")
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	sessionID := flag.String("session", "audio-"+time.Now().Format("150405"), "Session ID")
	name := flag.String("name", "Asha Verma", "Client name")
	wait := flag.Duration("wait", 15*time.Second, "How long to wait for the reply after the audio ends")
	flag.Parse()

	// Open audio file
	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 8000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 8000 Hz", sampleRate)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stream, err := grpcapi.Converse(ctx, conn)
	if err != nil {
		log.Fatalf("Failed to create stream: %v", err)
	}

	// The receive loop acks playback so the conversation returns to listening.
	outgoing := make(chan models.ClientMessage, 16)
	capturing := make(chan struct{}, 1)
	replied := make(chan struct{}, 1)
	go func() {
		for {
			ev, err := stream.Recv()
			if err != nil {
				log.Printf("Stream closed: %v", err)
				cancel()
				return
			}
			switch ev.Type {
			case models.EventCaptureStart:
				select {
				case capturing <- struct{}{}:
				default:
				}
			case models.EventTurn:
				log.Printf("[%s] %s", ev.Turn.Speaker, ev.Turn.Text)
				if ev.Turn.Speaker == models.SpeakerAssistant {
					select {
					case replied <- struct{}{}:
					default:
					}
				}
			case models.EventStatus:
				log.Printf("Interim: %s", ev.Text)
			case models.EventError:
				log.Printf("Error (%s): %s", ev.ErrorKind, ev.Text)
			case models.EventSpeakAudio, models.EventSpeakLocal:
				outgoing <- models.ClientMessage{Type: models.MessagePlaybackEnded, PlaybackID: ev.PlaybackID}
			}
		}
	}()
	finish := make(chan struct{})
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for {
			select {
			case msg := <-outgoing:
				if err := stream.Send(msg); err != nil {
					log.Printf("Failed to send %s: %v", msg.Type, err)
				}
			case <-finish:
				if err := stream.CloseSend(); err != nil {
					log.Printf("Failed to close stream: %v", err)
				}
				return
			}
		}
	}()

	outgoing <- models.ClientMessage{
		Type:      models.MessageSessionStart,
		SessionID: *sessionID,
		Capture:   "google",
		Profile: &models.ClientProfile{
			Name:              *name,
			TotalOutstanding:  15000,
			InstallmentAmount: 2500,
			DueDate:           models.Date{Time: time.Now().AddDate(0, 0, 5)},
		},
	}
	outgoing <- models.ClientMessage{Type: models.MessageConversationStart}

	select {
	case <-capturing:
	case <-ctx.Done():
		log.Fatalf("Capture never started: %v", ctx.Err())
	}

	log.Printf("Streaming audio: sessionId=%s", *sessionID)

	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		audioChunk := make([]byte, chunkSize)
		n, err := f.Read(audioChunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)
		outgoing <- models.ClientMessage{Type: models.MessageAudio, Audio: audioChunk[:n]}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, time.Since(startTime))
	log.Println("Waiting for the assistant's reply...")

	select {
	case <-replied:
		// Give the playback ack a moment to go out.
		time.Sleep(500 * time.Millisecond)
	case <-time.After(*wait):
		log.Println("No reply before timeout")
	case <-ctx.Done():
	}

	outgoing <- models.ClientMessage{Type: models.MessageConversationStop}
	time.Sleep(200 * time.Millisecond)
	close(finish)
	<-sent
	log.Println("Stream completed")
}
