// Package client provides a capture engine driven by the browser's own speech recognition.
// The service only tells the client when to start and stop; fragments, errors and
// end-of-capture notifications arrive back over the session transport.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
)

// SendFunc delivers an event to the connected client.
type SendFunc func(models.Event) error

// Engine implements stt.Engine over the session transport.
type Engine struct {
	mu        sync.Mutex
	send      SendFunc
	nextID    func() string
	sink      stt.Sink
	captureID string
	active    bool
}

// New creates a client-driven engine. nextID supplies capture identifiers.
func New(send SendFunc, nextID func() string) *Engine {
	return &Engine{send: send, nextID: nextID}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "client"
}

// Start asks the client to begin recognition.
func (e *Engine) Start(ctx context.Context, sink stt.Sink) error {
	e.mu.Lock()
	e.captureID = e.nextID()
	e.sink = sink
	e.active = true
	id := e.captureID
	e.mu.Unlock()

	if err := e.send(models.Event{
		Type:      models.EventCaptureStart,
		CaptureID: id,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		e.mu.Lock()
		if e.captureID == id {
			e.active = false
			e.sink = nil
		}
		e.mu.Unlock()
		return err
	}
	return nil
}

// Stop asks the client to end recognition. Idempotent.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil
	}
	e.active = false
	e.sink = nil
	id := e.captureID
	e.mu.Unlock()

	return e.send(models.Event{
		Type:      models.EventCaptureStop,
		CaptureID: id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// CaptureID returns the identifier of the current capture.
func (e *Engine) CaptureID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureID
}

// Fragment delivers a recognition result reported by the client.
func (e *Engine) Fragment(captureID string, f models.Utterance) {
	sink := e.current(captureID)
	if sink == nil {
		log.Debug().Str("captureId", captureID).Msg("Dropping fragment for inactive capture")
		return
	}
	sink.OnFragment(f)
}

// Failed delivers a recognition error reported by the client.
func (e *Engine) Failed(captureID, code, message string) {
	sink := e.current(captureID)
	if sink == nil {
		return
	}
	sink.OnCaptureError(&stt.CaptureError{Kind: stt.ParseErrorKind(code), Message: message})
}

// Ended delivers the client's end-of-recognition notification.
func (e *Engine) Ended(captureID string) {
	e.mu.Lock()
	if !e.active || !matches(e.captureID, captureID) {
		e.mu.Unlock()
		return
	}
	sink := e.sink
	e.active = false
	e.sink = nil
	e.mu.Unlock()

	if sink != nil {
		sink.OnCaptureEnded()
	}
}

func (e *Engine) current(captureID string) stt.Sink {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || !matches(e.captureID, captureID) {
		return nil
	}
	return e.sink
}

// matches accepts messages that omit the capture id.
func matches(current, got string) bool {
	return got == "" || got == current
}
