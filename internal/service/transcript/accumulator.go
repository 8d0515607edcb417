// Package transcript turns a live stream of recognizer fragments into discrete utterances.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
)

// DefaultDebounce is how long the accumulator waits after the last interim
// fragment before emitting whatever final text it has buffered.
const DefaultDebounce = 3 * time.Second

// Trigger names what caused an utterance to be emitted.
type Trigger string

const (
	TriggerFinal    Trigger = "final"
	TriggerDebounce Trigger = "debounce"
)

// EmitFunc receives a completed utterance. It is never called with the accumulator lock held.
type EmitFunc func(u models.Utterance, trigger Trigger)

// StatusFunc receives interim text for live display.
type StatusFunc func(text string)

// Accumulator buffers final fragments and decides when an utterance is complete.
//
// Emission rules:
//   - a final fragment emits the buffer immediately unless an utterance is in flight
//   - an interim fragment (re)arms the debounce timer; on expiry the buffer is emitted
//     unless an utterance is in flight
//   - emitting marks the accumulator as processing until Release is called
//
// The processing flag is the only mutual exclusion between the two triggers.
type Accumulator struct {
	mu         sync.Mutex
	debounce   time.Duration
	emit       EmitFunc
	status     StatusFunc
	parts      []string
	confSum    float64
	confCount  int
	processing bool
	timer      *time.Timer
	generation uint64
	metrics    *metrics.Metrics
}

// New creates an accumulator. A non-positive debounce uses DefaultDebounce.
func New(debounce time.Duration, emit EmitFunc, status StatusFunc) *Accumulator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if status == nil {
		status = func(string) {}
	}
	return &Accumulator{
		debounce: debounce,
		emit:     emit,
		status:   status,
		metrics:  metrics.DefaultMetrics,
	}
}

// OnFragment consumes one recognizer fragment.
func (a *Accumulator) OnFragment(f models.Utterance) {
	a.metrics.RecordFragment(f.IsFinal)

	if !f.IsFinal {
		a.status(f.Text)
		a.mu.Lock()
		a.armLocked()
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	if text := strings.TrimSpace(f.Text); text != "" {
		a.parts = append(a.parts, text)
		a.confSum += f.Confidence
		a.confCount++
	}
	u, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.metrics.RecordUtterance(string(TriggerFinal))
		a.emit(u, TriggerFinal)
	}
}

// Release marks the in-flight utterance as done. Text buffered while it was
// processing is scheduled through the debounce timer.
func (a *Accumulator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processing = false
	if len(a.parts) > 0 {
		a.armLocked()
	}
}

// Reset drops buffered text, cancels any pending timer and clears the processing flag.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
	a.clearLocked()
	a.processing = false
}

// Processing reports whether an emitted utterance has not yet been released.
func (a *Accumulator) Processing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

// Buffered returns the text that would be emitted next.
func (a *Accumulator) Buffered() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.parts, " ")
}

// armLocked replaces any pending timer with a fresh one.
func (a *Accumulator) armLocked() {
	a.cancelLocked()
	gen := a.generation
	a.timer = time.AfterFunc(a.debounce, func() { a.fire(gen) })
}

func (a *Accumulator) cancelLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	// A callback that already started sees a stale generation and does nothing.
	a.generation++
}

func (a *Accumulator) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	u, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.metrics.RecordUtterance(string(TriggerDebounce))
		a.emit(u, TriggerDebounce)
	}
}

// takeLocked removes the buffered utterance if it may be emitted now.
func (a *Accumulator) takeLocked() (models.Utterance, bool) {
	if a.processing || len(a.parts) == 0 {
		return models.Utterance{}, false
	}
	u := models.Utterance{
		Text:    strings.Join(a.parts, " "),
		IsFinal: true,
	}
	if a.confCount > 0 {
		u.Confidence = a.confSum / float64(a.confCount)
	}
	a.clearLocked()
	a.cancelLocked()
	a.processing = true
	return u, true
}

func (a *Accumulator) clearLocked() {
	a.parts = nil
	a.confSum = 0
	a.confCount = 0
}
