package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
)

type testSink struct {
	mu        sync.Mutex
	fragments []models.Utterance
	errors    []*stt.CaptureError
	ended     int
}

func (s *testSink) OnFragment(f models.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = append(s.fragments, f)
}

func (s *testSink) OnCaptureError(err *stt.CaptureError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *testSink) OnCaptureEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended++
}

type sentEvents struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (s *sentEvents) send(ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func sequence() func() string {
	ids := []string{"cap-1", "cap-2", "cap-3"}
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestEngine_StartSendsCaptureStart(t *testing.T) {
	sent := &sentEvents{}
	e := New(sent.send, sequence())

	if err := e.Start(context.Background(), &testSink{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent.events) != 1 || sent.events[0].Type != models.EventCaptureStart {
		t.Fatalf("expected capture.start event, got %+v", sent.events)
	}
	if sent.events[0].CaptureID != "cap-1" {
		t.Errorf("expected capture id cap-1, got %s", sent.events[0].CaptureID)
	}
	if e.Name() != "client" {
		t.Errorf("unexpected name %s", e.Name())
	}
}

func TestEngine_DeliversToActiveCapture(t *testing.T) {
	sent := &sentEvents{}
	sink := &testSink{}
	e := New(sent.send, sequence())
	e.Start(context.Background(), sink)

	e.Fragment("cap-1", models.Utterance{Text: "hello", IsFinal: true})
	e.Fragment("", models.Utterance{Text: "no id"})
	e.Fragment("cap-0", models.Utterance{Text: "stale"})
	e.Failed("cap-1", "network", "offline")

	if len(sink.fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(sink.fragments))
	}
	if len(sink.errors) != 1 || sink.errors[0].Kind != stt.KindNetwork {
		t.Errorf("expected one network error, got %+v", sink.errors)
	}
}

func TestEngine_EndedOnlyOnce(t *testing.T) {
	sink := &testSink{}
	e := New((&sentEvents{}).send, sequence())
	e.Start(context.Background(), sink)

	e.Ended("cap-1")
	e.Ended("cap-1")
	e.Fragment("cap-1", models.Utterance{Text: "late"})

	if sink.ended != 1 {
		t.Errorf("expected one ended notification, got %d", sink.ended)
	}
	if len(sink.fragments) != 0 {
		t.Errorf("expected fragments after end to be dropped, got %d", len(sink.fragments))
	}
}

func TestEngine_StopSuppressesEvents(t *testing.T) {
	sent := &sentEvents{}
	sink := &testSink{}
	e := New(sent.send, sequence())
	e.Start(context.Background(), sink)

	if err := e.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("second stop: unexpected error: %v", err)
	}

	e.Ended("cap-1")
	e.Fragment("cap-1", models.Utterance{Text: "hello", IsFinal: true})

	if sink.ended != 0 || len(sink.fragments) != 0 {
		t.Errorf("expected no events after stop, got ended=%d fragments=%d", sink.ended, len(sink.fragments))
	}
	if len(sent.events) != 2 || sent.events[1].Type != models.EventCaptureStop {
		t.Errorf("expected a single capture.stop after start, got %+v", sent.events)
	}
}

func TestEngine_RestartIgnoresPreviousCapture(t *testing.T) {
	sink := &testSink{}
	e := New((&sentEvents{}).send, sequence())
	e.Start(context.Background(), sink)
	e.Ended("cap-1")
	e.Start(context.Background(), sink)

	e.Fragment("cap-1", models.Utterance{Text: "old"})
	e.Fragment("cap-2", models.Utterance{Text: "new"})

	if len(sink.fragments) != 1 || sink.fragments[0].Text != "new" {
		t.Errorf("expected only the new capture's fragment, got %+v", sink.fragments)
	}
	if e.CaptureID() != "cap-2" {
		t.Errorf("expected capture id cap-2, got %s", e.CaptureID())
	}
}

func TestEngine_StartSendFailure(t *testing.T) {
	sent := &sentEvents{err: errors.New("closed")}
	sink := &testSink{}
	e := New(sent.send, sequence())

	if err := e.Start(context.Background(), sink); err == nil {
		t.Fatal("expected error when send fails")
	}
	e.Fragment("cap-1", models.Utterance{Text: "hello"})
	if len(sink.fragments) != 0 {
		t.Error("expected capture to be inactive after failed start")
	}
}
