package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
)

// DefaultPlaybackTimeout bounds how long the client may take to report playback end.
const DefaultPlaybackTimeout = 60 * time.Second

var (
	// ErrPlaybackTimeout is returned when the client never reports playback end.
	ErrPlaybackTimeout = errors.New("playback did not finish in time")
	// ErrPlaybackFailed is returned when the client reports a playback error.
	ErrPlaybackFailed = errors.New("client playback failed")
)

// SendFunc delivers an event to the connected client.
type SendFunc func(models.Event) error

// ClientPlayer plays speech on the connected client and waits for its acknowledgement.
type ClientPlayer struct {
	send    SendFunc
	nextID  func() string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan error
}

// NewClientPlayer creates a player. nextID supplies playback identifiers.
func NewClientPlayer(send SendFunc, nextID func() string, timeout time.Duration) *ClientPlayer {
	if timeout <= 0 {
		timeout = DefaultPlaybackTimeout
	}
	return &ClientPlayer{
		send:    send,
		nextID:  nextID,
		timeout: timeout,
		pending: make(map[string]chan error),
	}
}

// PlayAudio sends synthesized audio and waits for playback to end.
func (p *ClientPlayer) PlayAudio(ctx context.Context, s *tts.Synthesis) error {
	return p.play(ctx, models.Event{
		Type:   models.EventSpeakAudio,
		Audio:  s.Audio,
		Format: s.Format,
	})
}

// SpeakLocal asks the client's on-device synthesizer to speak and waits for it to end.
func (p *ClientPlayer) SpeakLocal(ctx context.Context, text string) error {
	return p.play(ctx, models.Event{
		Type: models.EventSpeakLocal,
		Text: text,
	})
}

// Ack resolves a pending playback. An empty errMsg means success.
// Returns false if the playback is unknown or already resolved.
func (p *ClientPlayer) Ack(playbackID, errMsg string) bool {
	p.mu.Lock()
	ch, ok := p.pending[playbackID]
	if ok {
		delete(p.pending, playbackID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	if errMsg != "" {
		ch <- errors.Join(ErrPlaybackFailed, errors.New(errMsg))
	} else {
		ch <- nil
	}
	return true
}

// Pending returns the number of unresolved playbacks.
func (p *ClientPlayer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *ClientPlayer) play(ctx context.Context, ev models.Event) error {
	id := p.nextID()
	ch := make(chan error, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer p.forget(id)

	ev.PlaybackID = id
	ev.Timestamp = time.Now().UnixMilli()
	if err := p.send(ev); err != nil {
		return err
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		_ = p.send(models.Event{
			Type:       models.EventPlaybackCancel,
			PlaybackID: id,
			Timestamp:  time.Now().UnixMilli(),
		})
		return ctx.Err()
	case <-timer.C:
		return ErrPlaybackTimeout
	}
}

func (p *ClientPlayer) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, id)
}
