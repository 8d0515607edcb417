// Package audio guards server-side captures against unbounded audio input.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
)

// ErrLimitExceeded is returned once a capture has gone over one of its limits.
var ErrLimitExceeded = errors.New("capture limit exceeded")

// Limits defines per-capture guardrails. Zero disables a limit.
type Limits struct {
	MaxAudioBytes int64         // Max audio forwarded per capture
	MaxDuration   time.Duration // Max capture duration
	MaxFragments  int           // Max recognizer fragments per capture
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~5 minutes at 8kHz 16-bit mono)
		MaxDuration:   5 * time.Minute,
		MaxFragments:  500,
	}
}

// Usage holds the current capture's counters.
type Usage struct {
	AudioBytes int64
	Fragments  int
	Duration   time.Duration
}

// Guard wraps an audio engine and ends any capture that goes over its limits.
// The orchestrator sees an audio-capture error followed by the capture ending,
// and its restart policy takes over.
type Guard struct {
	engine stt.AudioEngine
	limits Limits

	mu        sync.Mutex
	sink      stt.Sink
	started   time.Time
	bytes     int64
	fragments int
	tripped   bool
	epoch     uint64
}

// NewGuard wraps engine with limits.
func NewGuard(engine stt.AudioEngine, limits Limits) *Guard {
	return &Guard{engine: engine, limits: limits}
}

// Name returns the wrapped engine's name.
func (g *Guard) Name() string {
	return g.engine.Name()
}

// Start resets the counters and starts the wrapped engine.
func (g *Guard) Start(ctx context.Context, sink stt.Sink) error {
	g.mu.Lock()
	g.epoch++
	g.sink = sink
	g.started = time.Now()
	g.bytes = 0
	g.fragments = 0
	g.tripped = false
	epoch := g.epoch
	g.mu.Unlock()

	return g.engine.Start(ctx, &guardedSink{guard: g, epoch: epoch, next: sink})
}

// SendAudio forwards a frame unless the capture is over its limits.
func (g *Guard) SendAudio(ctx context.Context, frame []byte) error {
	g.mu.Lock()
	if g.tripped {
		g.mu.Unlock()
		return ErrLimitExceeded
	}
	g.bytes += int64(len(frame))
	var reason string
	switch {
	case g.limits.MaxAudioBytes > 0 && g.bytes > g.limits.MaxAudioBytes:
		reason = fmt.Sprintf("max audio bytes exceeded: %d > %d", g.bytes, g.limits.MaxAudioBytes)
	case g.limits.MaxDuration > 0 && time.Since(g.started) > g.limits.MaxDuration:
		reason = fmt.Sprintf("max duration exceeded: %v > %v", time.Since(g.started).Round(time.Millisecond), g.limits.MaxDuration)
	}
	g.mu.Unlock()

	if reason != "" {
		g.trip(reason)
		return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
	}
	return g.engine.SendAudio(ctx, frame)
}

// Stop stops the wrapped engine.
func (g *Guard) Stop() error {
	g.mu.Lock()
	g.epoch++
	g.sink = nil
	g.mu.Unlock()
	return g.engine.Stop()
}

// Close closes the wrapped engine if it supports it.
func (g *Guard) Close() error {
	if c, ok := g.engine.(interface{ Close() error }); ok {
		return c.Close()
	}
	return g.Stop()
}

// Usage returns the current capture's counters.
func (g *Guard) Usage() Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Usage{
		AudioBytes: g.bytes,
		Fragments:  g.fragments,
		Duration:   time.Since(g.started),
	}
}

// Tripped reports whether the current capture went over a limit.
func (g *Guard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

// trip ends the current capture once.
func (g *Guard) trip(reason string) {
	g.mu.Lock()
	if g.tripped || g.sink == nil {
		g.tripped = true
		g.mu.Unlock()
		return
	}
	g.tripped = true
	sink := g.sink
	g.sink = nil
	g.epoch++
	usage := Usage{AudioBytes: g.bytes, Fragments: g.fragments, Duration: time.Since(g.started)}
	g.mu.Unlock()

	log.Warn().
		Str("engine", g.engine.Name()).
		Str("reason", reason).
		Int64("bytes", usage.AudioBytes).
		Int("fragments", usage.Fragments).
		Dur("duration", usage.Duration).
		Msg("Capture dropped")

	if err := g.engine.Stop(); err != nil {
		log.Debug().Err(err).Msg("Failed to stop capture after limit")
	}
	sink.OnCaptureError(&stt.CaptureError{Kind: stt.KindAudioCapture, Message: reason, Err: ErrLimitExceeded})
	sink.OnCaptureEnded()
}

func (g *Guard) live(epoch uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch == epoch
}

// guardedSink counts fragments of one capture.
type guardedSink struct {
	guard *Guard
	epoch uint64
	next  stt.Sink
}

func (s *guardedSink) OnFragment(f models.Utterance) {
	g := s.guard
	g.mu.Lock()
	if g.epoch != s.epoch {
		g.mu.Unlock()
		return
	}
	g.fragments++
	over := g.limits.MaxFragments > 0 && g.fragments > g.limits.MaxFragments
	count := g.fragments
	g.mu.Unlock()

	if over {
		g.trip(fmt.Sprintf("max fragments exceeded: %d > %d", count, g.limits.MaxFragments))
		return
	}
	s.next.OnFragment(f)
}

func (s *guardedSink) OnCaptureError(err *stt.CaptureError) {
	if s.guard.live(s.epoch) {
		s.next.OnCaptureError(err)
	}
}

func (s *guardedSink) OnCaptureEnded() {
	if s.guard.live(s.epoch) {
		s.next.OnCaptureEnded()
	}
}
