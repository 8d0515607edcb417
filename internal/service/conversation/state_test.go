package conversation

import (
	"errors"
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if lc.State().HoldsCapture() {
		t.Error("expected idle not to hold capture")
	}
}

func TestLifecycle_FullCycle(t *testing.T) {
	lc := NewLifecycle()

	steps := []State{StateListening, StateProcessing, StateSpeaking, StateListening, StateIdle}
	prev := StateIdle
	for _, to := range steps {
		from, err := lc.Transition(to)
		if err != nil {
			t.Fatalf("%s -> %s: unexpected error: %v", prev, to, err)
		}
		if from != prev {
			t.Errorf("expected previous state %s, got %s", prev, from)
		}
		prev = to
	}
}

func TestLifecycle_GreetingPath(t *testing.T) {
	lc := NewLifecycle()

	if _, err := lc.Transition(StateSpeaking); err != nil {
		t.Fatalf("idle -> speaking: %v", err)
	}
	if _, err := lc.Transition(StateListening); err != nil {
		t.Fatalf("speaking -> listening: %v", err)
	}
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"idle to processing", nil, StateProcessing},
		{"listening to speaking skips processing", []State{StateListening}, StateSpeaking},
		{"processing to listening skips speaking", []State{StateListening, StateProcessing}, StateListening},
		{"speaking to processing", []State{StateSpeaking}, StateProcessing},
		{"listening to listening", []State{StateListening}, StateListening},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle()
			for _, s := range tt.path {
				if _, err := lc.Transition(s); err != nil {
					t.Fatalf("setup transition to %s failed: %v", s, err)
				}
			}
			before := lc.State()
			_, err := lc.Transition(tt.bad)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if lc.State() != before {
				t.Errorf("state changed on rejected transition: %s -> %s", before, lc.State())
			}
		})
	}
}

func TestLifecycle_TransitionFrom(t *testing.T) {
	lc := NewLifecycle()
	lc.Transition(StateListening)

	if err := lc.TransitionFrom(StateProcessing, StateSpeaking); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for wrong source state, got %v", err)
	}
	if err := lc.TransitionFrom(StateListening, StateProcessing); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if lc.State() != StateProcessing {
		t.Errorf("expected StateProcessing, got %s", lc.State())
	}
}

func TestLifecycle_ForceIdle(t *testing.T) {
	for _, s := range []State{StateListening, StateProcessing, StateSpeaking} {
		t.Run(s.String(), func(t *testing.T) {
			lc := &Lifecycle{state: s}
			from, changed := lc.ForceIdle()
			if from != s || !changed {
				t.Errorf("expected (%s, true), got (%s, %v)", s, from, changed)
			}
			if lc.State() != StateIdle {
				t.Errorf("expected StateIdle, got %s", lc.State())
			}
		})
	}

	lc := NewLifecycle()
	if _, changed := lc.ForceIdle(); changed {
		t.Error("expected ForceIdle from idle to be a no-op")
	}
}

func TestLifecycle_ConcurrentTransitions(t *testing.T) {
	lc := NewLifecycle()
	lc.Transition(StateListening)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lc.TransitionFrom(StateListening, StateProcessing); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning transition, got %d", wins)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateListening, "listening"},
		{StateProcessing, "processing"},
		{StateSpeaking, "speaking"},
		{State(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestState_Busy(t *testing.T) {
	tests := []struct {
		state State
		busy  bool
	}{
		{StateIdle, false},
		{StateListening, false},
		{StateProcessing, true},
		{StateSpeaking, true},
	}
	for _, tt := range tests {
		if tt.state.Busy() != tt.busy {
			t.Errorf("%s.Busy() = %v, want %v", tt.state, tt.state.Busy(), tt.busy)
		}
	}
}

func TestIDGenerator_Next(t *testing.T) {
	gen := NewIDGenerator()

	if id := gen.Next("sess-1", "turn"); id != "sess-1-turn-1" {
		t.Errorf("expected 'sess-1-turn-1', got %s", id)
	}
	if id := gen.Next("sess-1", "capture"); id != "sess-1-capture-2" {
		t.Errorf("expected 'sess-1-capture-2', got %s", id)
	}
}

func TestIDGenerator_ThreadSafety(t *testing.T) {
	gen := NewIDGenerator()

	var wg sync.WaitGroup
	results := make(chan string, 1000)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				results <- gen.Next("sess", "turn")
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for id := range results {
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != 1000 {
		t.Errorf("expected 1000 unique IDs, got %d", len(seen))
	}
}
