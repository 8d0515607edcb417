package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// DefaultVoice is used when no voice is requested.
const DefaultVoice = "Joanna"

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Polly synthesizes speech with Amazon Polly's neural engine.
type Polly struct {
	client pollyAPI
	voice  string
}

// NewPolly creates a Polly provider from an AWS config.
func NewPolly(cfg aws.Config, voice string) *Polly {
	return newPolly(polly.NewFromConfig(cfg), voice)
}

func newPolly(client pollyAPI, voice string) *Polly {
	if voice == "" {
		voice = DefaultVoice
	}
	return &Polly{client: client, voice: voice}
}

// Name returns the provider identifier.
func (p *Polly) Name() string { return "polly" }

// Synthesize calls SynthesizeSpeech and reads the whole audio stream.
func (p *Polly) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("polly: empty text: %w", ErrInvalidAudio)
	}
	voice := opts.Voice
	if voice == "" {
		voice = p.voice
	}
	format := parseFormat(opts.Format)

	in := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: format,
		VoiceId:      types.VoiceId(voice),
		Engine:       types.EngineNeural,
	}
	if opts.Language != "" {
		in.LanguageCode = types.LanguageCode(opts.Language)
	}

	out, err := p.client.SynthesizeSpeech(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("polly synthesize speech: %w", err)
	}
	if out.AudioStream == nil {
		return nil, ErrInvalidAudio
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("polly read audio stream: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrInvalidAudio
	}
	return &Synthesis{Audio: audio, Format: string(format)}, nil
}

func parseFormat(format string) types.OutputFormat {
	switch strings.ToLower(format) {
	case "ogg_vorbis", "ogg":
		return types.OutputFormatOggVorbis
	case "pcm":
		return types.OutputFormatPcm
	default:
		return types.OutputFormatMp3
	}
}
