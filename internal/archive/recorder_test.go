package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

type fakePublisher struct {
	mu     sync.Mutex
	turns  []models.TurnEvent
	states []models.StateEvent
	err    error
	block  chan struct{}
}

func (f *fakePublisher) PublishTurn(ctx context.Context, ev models.TurnEvent) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, ev)
	return f.err
}

func (f *fakePublisher) PublishState(ctx context.Context, ev models.StateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, ev)
	return f.err
}

type fakeStore struct {
	mu    sync.Mutex
	turns []models.TurnEvent
}

func (f *fakeStore) Append(ctx context.Context, ev models.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, ev)
	return nil
}

func TestRecorder_FansOutInOrder(t *testing.T) {
	pub, store := &fakePublisher{}, &fakeStore{}
	r := New(pub, store, 0, 0)

	for _, text := range []string{"one", "two", "three"} {
		r.RecordTurn(models.TurnEvent{SessionID: "s", Text: text})
	}
	r.RecordState(models.StateEvent{SessionID: "s", From: "idle", To: "listening"})
	r.Close()

	if len(pub.turns) != 3 || len(store.turns) != 3 || len(pub.states) != 1 {
		t.Fatalf("published %d turns, stored %d, %d states", len(pub.turns), len(store.turns), len(pub.states))
	}
	for i, want := range []string{"one", "two", "three"} {
		if store.turns[i].Text != want {
			t.Errorf("store.turns[%d] = %q, want %q", i, store.turns[i].Text, want)
		}
	}
}

func TestRecorder_PublisherErrorStillStores(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	store := &fakeStore{}
	r := New(pub, store, 0, 0)

	r.RecordTurn(models.TurnEvent{SessionID: "s", Text: "hello"})
	r.Close()

	if len(store.turns) != 1 {
		t.Errorf("stored %d turns, want 1", len(store.turns))
	}
}

func TestRecorder_NeverBlocks(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	r := New(pub, nil, 1, time.Second)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.RecordTurn(models.TurnEvent{SessionID: "s"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordTurn blocked on a slow publisher")
	}
	close(pub.block)
	r.Close()

	if n := len(pub.turns); n < 1 || n > 2 {
		t.Errorf("published %d turns, want the in-flight and queued ones only", n)
	}
}

func TestRecorder_NilSinks(t *testing.T) {
	r := New(nil, nil, 0, 0)
	r.RecordTurn(models.TurnEvent{SessionID: "s"})
	r.RecordState(models.StateEvent{SessionID: "s"})
	r.Close()
	r.Close()
	r.RecordTurn(models.TurnEvent{SessionID: "s"})
}
