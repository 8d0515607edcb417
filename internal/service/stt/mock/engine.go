// Package mock provides a scripted capture engine for running without a microphone or cloud credentials.
// Each capture plays one caller utterance: progressive interim fragments followed by
// exactly one final fragment. Captures cycle through the script.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
)

// SimulatedUtterance represents a scripted caller utterance.
type SimulatedUtterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances is a short scripted reminder call.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"when", "when is my", "when is my emi"},
		Final:      "when is my emi due",
		Confidence: 0.93,
	},
	{
		Partials:   []string{"what is", "what is my outstanding"},
		Final:      "what is my outstanding balance",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"I cannot", "I cannot pay"},
		Final:      "I cannot pay this month",
		Confidence: 0.88,
	},
	{
		Partials:   []string{"can I", "can I get an"},
		Final:      "can I get an extension",
		Confidence: 0.9,
	},
	{
		Partials:   []string{"okay I will", "okay I will pay"},
		Final:      "okay I will pay on Friday",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"thank you"},
		Final:      "thank you bye",
		Confidence: 0.97,
	},
}

// Config controls the pacing of the script.
type Config struct {
	Utterances   []SimulatedUtterance
	PartialDelay time.Duration // Delay before each interim fragment
	FinalDelay   time.Duration // Delay between the last interim and the final
	EndAfter     time.Duration // If > 0, end the capture on its own after this much silence
}

// DefaultConfig returns a script paced like a real caller.
func DefaultConfig() Config {
	return Config{
		Utterances:   DefaultUtterances,
		PartialDelay: 300 * time.Millisecond,
		FinalDelay:   500 * time.Millisecond,
	}
}

// Engine implements stt.Engine with scripted fragments.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	next    int
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// New creates a scripted engine.
func New(cfg Config) *Engine {
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = DefaultUtterances
	}
	return &Engine{cfg: cfg}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "mock"
}

// Start plays the next scripted utterance into sink.
func (e *Engine) Start(ctx context.Context, sink stt.Sink) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	utt := e.cfg.Utterances[e.next%len(e.cfg.Utterances)]
	e.next++
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.play(runCtx, utt, sink)
	}()
	return nil
}

// Stop cancels the running capture. Idempotent.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.running = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Wait blocks until every started capture goroutine has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) play(ctx context.Context, utt SimulatedUtterance, sink stt.Sink) {
	for _, p := range utt.Partials {
		if !sleep(ctx, e.cfg.PartialDelay) {
			return
		}
		sink.OnFragment(models.Utterance{Text: p})
	}
	if !sleep(ctx, e.cfg.FinalDelay) {
		return
	}
	sink.OnFragment(models.Utterance{Text: utt.Final, IsFinal: true, Confidence: utt.Confidence})

	if e.cfg.EndAfter <= 0 {
		return
	}
	if !sleep(ctx, e.cfg.EndAfter) {
		return
	}

	e.mu.Lock()
	ended := e.running && ctx.Err() == nil
	if ended {
		e.running = false
		e.cancel = nil
	}
	e.mu.Unlock()
	if ended {
		sink.OnCaptureEnded()
	}
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
