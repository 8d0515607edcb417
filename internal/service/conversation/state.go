// Package conversation implements the turn-taking orchestrator for a voice session.
package conversation

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the conversation state of a session.
type State int

const (
	// StateIdle - No capture active. Initial state, and entered on stop or unrecoverable error.
	StateIdle State = iota
	// StateListening - Capture engine active, fragments feed the accumulator.
	StateListening
	// StateProcessing - An utterance is being resolved into a reply.
	StateProcessing
	// StateSpeaking - The reply is being rendered. Capture is released.
	StateSpeaking
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// HoldsCapture returns true if the capture device may be active in this state.
func (s State) HoldsCapture() bool {
	return s == StateListening
}

// Busy returns true while an utterance is in flight.
func (s State) Busy() bool {
	return s == StateProcessing || s == StateSpeaking
}

// Reason explains why a transition happened.
type Reason string

const (
	ReasonStarted          Reason = "started"
	ReasonGreeting         Reason = "greeting"
	ReasonUtterance        Reason = "utterance"
	ReasonReplyReady       Reason = "reply-ready"
	ReasonPlaybackEnded    Reason = "playback-ended"
	ReasonStopped          Reason = "stopped"
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonCaptureFailed    Reason = "capture-failed"
	ReasonRestartExhausted Reason = "restart-exhausted"
)

// Errors for invalid state transitions.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyActive     = errors.New("conversation already active")
	ErrNotActive         = errors.New("conversation is not active")
)

// transitions lists the allowed moves. Any state may also be forced to idle.
//
//	IDLE ──start──→ LISTENING ──utterance──→ PROCESSING ──reply──→ SPEAKING
//	  │                 ↑                                              │
//	  └──greeting──→ SPEAKING ─────────────playback ended──────────────┘
var transitions = map[State][]State{
	StateIdle:       {StateListening, StateSpeaking},
	StateListening:  {StateProcessing, StateIdle},
	StateProcessing: {StateSpeaking, StateIdle},
	StateSpeaking:   {StateListening, StateIdle},
}

// CanTransition reports whether from → to is an allowed move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Lifecycle guards the live state of one session.
// Thread-safe for concurrent access.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Is returns true if the current state equals s.
func (l *Lifecycle) Is(s State) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == s
}

// Transition moves to the given state if allowed and returns the previous state.
func (l *Lifecycle) Transition(to State) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.state
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	l.state = to
	return from, nil
}

// TransitionFrom moves to the given state only if the current state is from.
// Used by asynchronous callbacks that may race with a stop.
func (l *Lifecycle) TransitionFrom(from, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != from {
		return fmt.Errorf("%w: expected %s, in %s", ErrInvalidTransition, from, l.state)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	l.state = to
	return nil
}

// ForceIdle moves to IDLE from any state. Idempotent.
// Returns the previous state and whether anything changed.
func (l *Lifecycle) ForceIdle() (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.state
	l.state = StateIdle
	return from, from != StateIdle
}
