package transcript

import (
	"sync"
	"testing"
	"time"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

type emission struct {
	utterance models.Utterance
	trigger   Trigger
}

type recorder struct {
	mu       sync.Mutex
	emitted  []emission
	statuses []string
	ch       chan emission
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan emission, 16)}
}

func (r *recorder) emit(u models.Utterance, trigger Trigger) {
	r.mu.Lock()
	r.emitted = append(r.emitted, emission{u, trigger})
	r.mu.Unlock()
	r.ch <- emission{u, trigger}
}

func (r *recorder) status(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, text)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emitted)
}

func (r *recorder) wait(t *testing.T, timeout time.Duration) emission {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(timeout):
		t.Fatal("timed out waiting for emission")
		return emission{}
	}
}

func final(text string, confidence float64) models.Utterance {
	return models.Utterance{Text: text, IsFinal: true, Confidence: confidence}
}

func interim(text string) models.Utterance {
	return models.Utterance{Text: text}
}

func TestAccumulator_FinalEmitsImmediately(t *testing.T) {
	r := newRecorder()
	a := New(time.Hour, r.emit, r.status)

	a.OnFragment(final(" when is my emi due ", 0.9))

	if r.count() != 1 {
		t.Fatalf("expected 1 emission, got %d", r.count())
	}
	e := r.emitted[0]
	if e.utterance.Text != "when is my emi due" {
		t.Errorf("unexpected text %q", e.utterance.Text)
	}
	if e.trigger != TriggerFinal {
		t.Errorf("expected final trigger, got %s", e.trigger)
	}
	if !e.utterance.IsFinal {
		t.Error("expected emitted utterance to be final")
	}
	if e.utterance.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", e.utterance.Confidence)
	}
	if !a.Processing() {
		t.Error("expected accumulator to be processing after emission")
	}
	if a.Buffered() != "" {
		t.Errorf("expected empty buffer after emission, got %q", a.Buffered())
	}
}

func TestAccumulator_InterimOnlyUpdatesStatus(t *testing.T) {
	r := newRecorder()
	a := New(time.Hour, r.emit, r.status)

	a.OnFragment(interim("when is"))
	a.OnFragment(interim("when is my"))

	if r.count() != 0 {
		t.Fatalf("expected no emission, got %d", r.count())
	}
	if len(r.statuses) != 2 || r.statuses[1] != "when is my" {
		t.Errorf("unexpected statuses %v", r.statuses)
	}
	a.Reset()
}

func TestAccumulator_WhitespaceNeverEmits(t *testing.T) {
	r := newRecorder()
	a := New(20*time.Millisecond, r.emit, r.status)

	a.OnFragment(final("   ", 0.5))
	a.OnFragment(interim(" "))
	time.Sleep(80 * time.Millisecond)

	if r.count() != 0 {
		t.Fatalf("expected no emission for whitespace, got %d", r.count())
	}
	if a.Processing() {
		t.Error("expected accumulator not to be processing")
	}
}

func TestAccumulator_NoEmissionWhileProcessing(t *testing.T) {
	r := newRecorder()
	a := New(20*time.Millisecond, r.emit, r.status)

	a.OnFragment(final("first", 1))
	a.OnFragment(final("second", 1))
	a.OnFragment(interim("third"))
	a.OnFragment(final("third", 1))
	time.Sleep(100 * time.Millisecond)

	if r.count() != 1 {
		t.Fatalf("expected exactly 1 emission while processing, got %d", r.count())
	}
	if got := a.Buffered(); got != "second third" {
		t.Errorf("expected fragments buffered in order, got %q", got)
	}
	a.Reset()
}

func TestAccumulator_ReleaseSchedulesBufferedText(t *testing.T) {
	r := newRecorder()
	a := New(30*time.Millisecond, r.emit, r.status)

	a.OnFragment(final("I will pay", 0.8))
	r.wait(t, time.Second)

	a.OnFragment(final("on Friday", 0.6))
	a.OnFragment(final("evening", 0.4))
	a.Release()

	e := r.wait(t, time.Second)
	if e.utterance.Text != "on Friday evening" {
		t.Errorf("expected concatenated finals, got %q", e.utterance.Text)
	}
	if e.trigger != TriggerDebounce {
		t.Errorf("expected debounce trigger, got %s", e.trigger)
	}
	if e.utterance.Confidence < 0.49 || e.utterance.Confidence > 0.51 {
		t.Errorf("expected mean confidence 0.5, got %v", e.utterance.Confidence)
	}
	if r.count() != 2 {
		t.Errorf("expected 2 emissions, got %d", r.count())
	}
}

func TestAccumulator_InterimResetsDebounce(t *testing.T) {
	r := newRecorder()
	a := New(150*time.Millisecond, r.emit, r.status)

	a.OnFragment(final("hello", 1))
	r.wait(t, time.Second)
	a.OnFragment(final("need more time", 1))
	a.Release()

	time.Sleep(90 * time.Millisecond)
	a.OnFragment(interim("need more time to"))

	// The original deadline has passed; the re-armed one has not.
	time.Sleep(100 * time.Millisecond)
	if r.count() != 1 {
		t.Fatalf("expected timer reset by interim fragment, got %d emissions", r.count())
	}

	e := r.wait(t, time.Second)
	if e.utterance.Text != "need more time" {
		t.Errorf("unexpected text %q", e.utterance.Text)
	}
	time.Sleep(200 * time.Millisecond)
	if r.count() != 2 {
		t.Errorf("expected exactly one debounce emission, got %d total", r.count())
	}
}

func TestAccumulator_DebounceSkippedWhenFinalWins(t *testing.T) {
	r := newRecorder()
	a := New(40*time.Millisecond, r.emit, r.status)

	a.OnFragment(interim("what is my"))
	a.OnFragment(final("what is my balance", 1))
	r.wait(t, time.Second)

	a.Release()
	time.Sleep(120 * time.Millisecond)

	if r.count() != 1 {
		t.Fatalf("expected a single emission, got %d", r.count())
	}
}

func TestAccumulator_ResetCancelsPendingTimer(t *testing.T) {
	r := newRecorder()
	a := New(30*time.Millisecond, r.emit, r.status)

	a.OnFragment(final("one", 1))
	r.wait(t, time.Second)
	a.OnFragment(final("two", 1))
	a.Release()
	a.Reset()

	time.Sleep(100 * time.Millisecond)
	if r.count() != 1 {
		t.Fatalf("expected reset to cancel pending emission, got %d", r.count())
	}
	if a.Processing() {
		t.Error("expected processing cleared by reset")
	}
	if a.Buffered() != "" {
		t.Errorf("expected empty buffer after reset, got %q", a.Buffered())
	}
}

func TestNew_DefaultDebounce(t *testing.T) {
	a := New(0, func(models.Utterance, Trigger) {}, nil)
	if a.debounce != DefaultDebounce {
		t.Errorf("expected default debounce %v, got %v", DefaultDebounce, a.debounce)
	}
}
