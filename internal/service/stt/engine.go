// Package stt defines the speech capture engine contract used by the orchestrator.
package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// ErrorKind classifies capture engine failures.
type ErrorKind string

const (
	// KindPermissionDenied - microphone or credentials refused. Fatal to the session.
	KindPermissionDenied ErrorKind = "permission-denied"
	// KindNetwork - recognizer unreachable. User-visible, session continues.
	KindNetwork ErrorKind = "network"
	// KindAudioCapture - capture device failed. User-visible, session continues.
	KindAudioCapture ErrorKind = "audio-capture"
	// KindNoSpeech - silence timeout. Never surfaced.
	KindNoSpeech ErrorKind = "no-speech"
	// KindAborted - capture stopped on request. Never surfaced.
	KindAborted ErrorKind = "aborted"
	// KindUnknown - anything else. User-visible.
	KindUnknown ErrorKind = "unknown"
)

// ParseErrorKind maps engine error codes, including browser recognition codes, to a kind.
func ParseErrorKind(code string) ErrorKind {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "permission-denied", "not-allowed", "service-not-allowed":
		return KindPermissionDenied
	case "network":
		return KindNetwork
	case "audio-capture":
		return KindAudioCapture
	case "no-speech":
		return KindNoSpeech
	case "aborted":
		return KindAborted
	default:
		return KindUnknown
	}
}

// Fatal returns true if the error must end the session and block automatic restarts.
func (k ErrorKind) Fatal() bool {
	return k == KindPermissionDenied
}

// Silent returns true if the error must not be shown to the user.
func (k ErrorKind) Silent() bool {
	return k == KindNoSpeech || k == KindAborted
}

// CaptureError is a classified capture engine failure.
type CaptureError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("capture %s: %s", e.Kind, e.Message)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Sink receives events from a running capture.
type Sink interface {
	// OnFragment is called for each interim or final recognition result.
	OnFragment(f models.Utterance)

	// OnCaptureError is called when the engine reports a failure.
	OnCaptureError(err *CaptureError)

	// OnCaptureEnded is called when the engine stops on its own.
	// It is not called after an explicit Stop.
	OnCaptureEnded()
}

// Engine is a speech capture engine (browser recognition, Google streaming, mock).
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Start begins a capture and delivers its events to sink.
	Start(ctx context.Context, sink Sink) error

	// Stop ends the current capture. Idempotent.
	Stop() error
}

// AudioEngine is an engine that recognizes audio frames pushed by the transport.
type AudioEngine interface {
	Engine

	// SendAudio forwards one audio frame to the running capture.
	SendAudio(ctx context.Context, audio []byte) error
}
