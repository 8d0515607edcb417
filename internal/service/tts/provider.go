// Package tts provides remote speech synthesis.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidAudio is returned when a provider produces no playable audio.
var ErrInvalidAudio = errors.New("synthesizer returned no audio")

// SynthesizeOptions configures one synthesis call.
type SynthesizeOptions struct {
	Voice    string // Voice identifier (Joanna, Aditi, ...)
	Format   string // Output format: "mp3", "ogg_vorbis" or "pcm"
	Language string // Optional language code
}

// Synthesis is a synthesized audio clip.
type Synthesis struct {
	Audio  []byte
	Format string
}

// DataURL renders the clip as a browser-playable data URL.
func (s *Synthesis) DataURL() string {
	return fmt.Sprintf("data:audio/%s;base64,%s", s.Format, base64.StdEncoding.EncodeToString(s.Audio))
}

// Provider is a remote text-to-speech service.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}
