// Package voice renders assistant replies as speech.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
)

// DefaultSynthesisTimeout bounds the remote synthesizer call.
const DefaultSynthesisTimeout = 10 * time.Second

// Path names how a reply was rendered.
type Path string

const (
	PathRemote Path = "remote"
	PathLocal  Path = "local"
)

// ErrEmptyText is reported when there is nothing to say.
var ErrEmptyText = errors.New("nothing to speak")

// Player plays speech on the listener's device. Both calls block until playback
// has ended or failed.
type Player interface {
	PlayAudio(ctx context.Context, s *tts.Synthesis) error
	SpeakLocal(ctx context.Context, text string) error
}

// CaptureReleaser stops speech capture. Stop must be idempotent.
type CaptureReleaser interface {
	Stop() error
}

// Result is the single terminal outcome of Speak.
type Result struct {
	Path Path
	Err  error
}

// Config configures a channel.
type Config struct {
	Synthesizer      tts.Provider // may be nil to always use the local path
	Player           Player
	Capture          CaptureReleaser
	Options          tts.SynthesizeOptions
	SynthesisTimeout time.Duration
}

// Channel speaks text through a remote synthesizer with a local fallback.
type Channel struct {
	synth   tts.Provider
	player  Player
	capture CaptureReleaser
	opts    tts.SynthesizeOptions
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewChannel creates a voice channel.
func NewChannel(cfg Config) *Channel {
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = DefaultSynthesisTimeout
	}
	return &Channel{
		synth:   cfg.Synthesizer,
		player:  cfg.Player,
		capture: cfg.Capture,
		opts:    cfg.Options,
		timeout: cfg.SynthesisTimeout,
		metrics: metrics.DefaultMetrics,
	}
}

// Speak releases capture, then renders text. It returns exactly once, after
// playback has ended on whichever path was taken.
func (c *Channel) Speak(ctx context.Context, text string) Result {
	if c.capture != nil {
		if err := c.capture.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to release capture before speaking")
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Path: PathLocal, Err: ErrEmptyText}
	}

	if c.synth != nil {
		err := c.speakRemote(ctx, text)
		if err == nil {
			c.metrics.RecordSpeech(string(PathRemote), nil)
			return Result{Path: PathRemote}
		}
		if ctx.Err() != nil {
			c.metrics.RecordSpeech(string(PathRemote), err)
			return Result{Path: PathRemote, Err: err}
		}
		c.metrics.RecordSpeech(string(PathRemote), err)
		log.Warn().Err(err).Str("provider", c.synth.Name()).Msg("Remote speech failed, using local synthesizer")
	}

	err := c.player.SpeakLocal(ctx, text)
	c.metrics.RecordSpeech(string(PathLocal), err)
	if err != nil {
		log.Warn().Err(err).Msg("Local speech failed")
	}
	return Result{Path: PathLocal, Err: err}
}

func (c *Channel) speakRemote(ctx context.Context, text string) error {
	synthCtx, cancel := context.WithTimeout(ctx, c.timeout)
	start := time.Now()
	s, err := c.synth.Synthesize(synthCtx, text, c.opts)
	cancel()
	c.metrics.RecordProviderCall("tts:"+c.synth.Name(), err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if s == nil || len(s.Audio) == 0 {
		return tts.ErrInvalidAudio
	}
	c.metrics.RecordSynthesis(len(s.Audio))

	if err := c.player.PlayAudio(ctx, s); err != nil {
		return fmt.Errorf("play audio: %w", err)
	}
	return nil
}
