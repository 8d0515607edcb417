package voice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeSynth struct {
	rec   *recorder
	audio []byte
	err   error
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	f.rec.add("synthesize")
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Synthesis{Audio: f.audio, Format: "mp3"}, nil
}

type fakePlayer struct {
	rec      *recorder
	audioErr error
	localErr error
}

func (f *fakePlayer) PlayAudio(ctx context.Context, s *tts.Synthesis) error {
	f.rec.add("play")
	return f.audioErr
}

func (f *fakePlayer) SpeakLocal(ctx context.Context, text string) error {
	f.rec.add("local")
	return f.localErr
}

type fakeCapture struct {
	rec *recorder
}

func (f *fakeCapture) Stop() error {
	f.rec.add("stop")
	return nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestChannel_Speak(t *testing.T) {
	tests := []struct {
		name      string
		synth     bool
		synthErr  error
		audio     []byte
		audioErr  error
		localErr  error
		wantPath  Path
		wantErr   bool
		wantCalls []string
	}{
		{
			name:      "remote success",
			synth:     true,
			audio:     []byte{1, 2, 3},
			wantPath:  PathRemote,
			wantCalls: []string{"stop", "synthesize", "play"},
		},
		{
			name:      "synthesis failure falls back",
			synth:     true,
			synthErr:  errors.New("throttled"),
			wantPath:  PathLocal,
			wantCalls: []string{"stop", "synthesize", "local"},
		},
		{
			name:      "empty audio falls back",
			synth:     true,
			audio:     nil,
			wantPath:  PathLocal,
			wantCalls: []string{"stop", "synthesize", "local"},
		},
		{
			name:      "playback failure falls back",
			synth:     true,
			audio:     []byte{1},
			audioErr:  errors.New("decode error"),
			wantPath:  PathLocal,
			wantCalls: []string{"stop", "synthesize", "play", "local"},
		},
		{
			name:      "no synthesizer",
			wantPath:  PathLocal,
			wantCalls: []string{"stop", "local"},
		},
		{
			name:      "local failure still completes",
			synth:     true,
			synthErr:  errors.New("down"),
			localErr:  errors.New("no voices"),
			wantPath:  PathLocal,
			wantErr:   true,
			wantCalls: []string{"stop", "synthesize", "local"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			cfg := Config{
				Player:  &fakePlayer{rec: rec, audioErr: tt.audioErr, localErr: tt.localErr},
				Capture: &fakeCapture{rec: rec},
			}
			if tt.synth {
				cfg.Synthesizer = &fakeSynth{rec: rec, audio: tt.audio, err: tt.synthErr}
			}
			ch := NewChannel(cfg)

			res := ch.Speak(context.Background(), "Hello Asha")
			if res.Path != tt.wantPath {
				t.Errorf("Path = %s, want %s", res.Path, tt.wantPath)
			}
			if (res.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", res.Err, tt.wantErr)
			}
			if got := rec.list(); !equal(got, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", got, tt.wantCalls)
			}
		})
	}
}

func TestChannel_SpeakEmptyText(t *testing.T) {
	rec := &recorder{}
	ch := NewChannel(Config{
		Player:  &fakePlayer{rec: rec},
		Capture: &fakeCapture{rec: rec},
	})

	res := ch.Speak(context.Background(), "   ")
	if !errors.Is(res.Err, ErrEmptyText) {
		t.Errorf("Err = %v, want ErrEmptyText", res.Err)
	}
	if got := rec.list(); !equal(got, []string{"stop"}) {
		t.Errorf("calls = %v, want capture released only", got)
	}
}

func TestChannel_CancelledDoesNotFallBack(t *testing.T) {
	rec := &recorder{}
	ch := NewChannel(Config{
		Synthesizer: &fakeSynth{rec: rec, audio: []byte{1}},
		Player:      &fakePlayer{rec: rec, audioErr: context.Canceled},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ch.Speak(ctx, "Hello")
	if res.Path != PathRemote || res.Err == nil {
		t.Errorf("result = %+v, want remote path with error", res)
	}
	for _, c := range rec.list() {
		if c == "local" {
			t.Error("local synthesizer used after cancellation")
		}
	}
}
