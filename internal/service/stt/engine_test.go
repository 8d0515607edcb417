package stt

import (
	"errors"
	"strings"
	"testing"
)

func TestParseErrorKind(t *testing.T) {
	tests := []struct {
		input    string
		expected ErrorKind
	}{
		{"not-allowed", KindPermissionDenied},
		{"service-not-allowed", KindPermissionDenied},
		{"permission-denied", KindPermissionDenied},
		{"network", KindNetwork},
		{"NETWORK", KindNetwork},
		{"audio-capture", KindAudioCapture},
		{"no-speech", KindNoSpeech},
		{"aborted", KindAborted},
		{"language-not-supported", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseErrorKind(tt.input); got != tt.expected {
				t.Errorf("ParseErrorKind(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestErrorKind_Policy(t *testing.T) {
	tests := []struct {
		kind   ErrorKind
		fatal  bool
		silent bool
	}{
		{KindPermissionDenied, true, false},
		{KindNetwork, false, false},
		{KindAudioCapture, false, false},
		{KindNoSpeech, false, true},
		{KindAborted, false, true},
		{KindUnknown, false, false},
	}

	for _, tt := range tests {
		if tt.kind.Fatal() != tt.fatal {
			t.Errorf("%s.Fatal() = %v, want %v", tt.kind, tt.kind.Fatal(), tt.fatal)
		}
		if tt.kind.Silent() != tt.silent {
			t.Errorf("%s.Silent() = %v, want %v", tt.kind, tt.kind.Silent(), tt.silent)
		}
	}
}

func TestCaptureError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &CaptureError{Kind: KindNetwork, Message: "stream failed", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected CaptureError to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "network") {
		t.Errorf("expected kind in message, got %q", err.Error())
	}

	var ce *CaptureError
	if !errors.As(error(err), &ce) || ce.Kind != KindNetwork {
		t.Error("expected errors.As to find CaptureError")
	}
}
