// Package session binds one client connection to a conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/logging"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/service/conversation"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt/client"
	"github.com/consultedge/emi-reminder-ai/internal/service/voice"
)

var (
	// ErrNotStarted is returned for messages that need a session.start first.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned for a second session.start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrUnsupported is returned when a message does not fit the session's capture engine.
	ErrUnsupported = errors.New("message not supported by capture engine")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// ErrorKindRequest tags error events for client messages the session refused.
const ErrorKindRequest = "request"

// Session is one connected client. Messages are handled in arrival order by the
// transport's read loop; events are written through send.
type Session struct {
	manager *Manager
	send    voice.SendFunc
	ctx     context.Context
	cancel  context.CancelFunc
	opened  time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	id      string
	profile models.ClientProfile
	orch    *conversation.Orchestrator
	engine  stt.Engine
	player  *voice.ClientPlayer
	closed  bool
}

// ID returns the session identifier, empty until started.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the conversation state.
func (s *Session) State() conversation.State {
	s.mu.Lock()
	orch := s.orch
	s.mu.Unlock()
	if orch == nil {
		return conversation.StateIdle
	}
	return orch.State()
}

// Profile returns the client profile supplied at start.
func (s *Session) Profile() models.ClientProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Turns returns the conversation log.
func (s *Session) Turns() []models.ConversationTurn {
	s.mu.Lock()
	orch := s.orch
	s.mu.Unlock()
	if orch == nil {
		return nil
	}
	return orch.Turns()
}

// Handle processes one client message.
func (s *Session) Handle(msg models.ClientMessage) error {
	if err := s.manager.validator.Message(&msg); err != nil {
		return err
	}

	if msg.Type == models.MessageSessionStart {
		return s.start(msg)
	}

	s.mu.Lock()
	orch, engine, player, closed := s.orch, s.engine, s.player, s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if orch == nil {
		return ErrNotStarted
	}

	switch msg.Type {
	case models.MessageConversationStart:
		return orch.Start(s.ctx)
	case models.MessageConversationStop:
		if err := orch.Stop(); err != nil && !errors.Is(err, conversation.ErrNotActive) {
			return err
		}
		return nil
	case models.MessageFragment:
		ce, ok := engine.(*client.Engine)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, msg.Type)
		}
		ce.Fragment(msg.CaptureID, models.Utterance{Text: msg.Text, IsFinal: msg.IsFinal, Confidence: msg.Confidence})
	case models.MessageCaptureEnded:
		if ce, ok := engine.(*client.Engine); ok {
			ce.Ended(msg.CaptureID)
		}
	case models.MessageCaptureError:
		if ce, ok := engine.(*client.Engine); ok {
			ce.Failed(msg.CaptureID, msg.Kind, msg.Message)
		}
	case models.MessageAudio:
		ae, ok := engine.(stt.AudioEngine)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, msg.Type)
		}
		s.metrics.RecordAudioReceived(len(msg.Audio))
		if err := ae.SendAudio(s.ctx, msg.Audio); err != nil {
			s.logger.Debug().Err(err).Msg("Dropping audio frame")
		}
	case models.MessagePlaybackEnded:
		player.Ack(msg.PlaybackID, "")
	case models.MessagePlaybackError:
		reason := msg.Message
		if reason == "" {
			reason = "playback error"
		}
		player.Ack(msg.PlaybackID, reason)
	}
	return nil
}

// start builds the conversation for the supplied profile.
func (s *Session) start(msg models.ClientMessage) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.orch != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	id, err := s.manager.register(s, msg.SessionID)
	if err != nil {
		return err
	}

	deps := s.manager.deps
	ids := conversation.NewIDGenerator()
	nextID := func(kind string) func() string {
		return func() string { return ids.Next(id, kind) }
	}

	provider := msg.Capture
	if provider == "" {
		provider = deps.CaptureProvider
	}
	engine, err := deps.Engines(s.ctx, provider, s.send, nextID("capture"))
	if err != nil {
		s.manager.unregister(id)
		return fmt.Errorf("create %s capture engine: %w", provider, err)
	}

	player := voice.NewClientPlayer(s.send, nextID("playback"), deps.Conversation.PlaybackTimeout)
	channel := voice.NewChannel(voice.Config{
		Synthesizer:      deps.Synthesizer,
		Player:           player,
		Capture:          engine,
		Options:          deps.Voice,
		SynthesisTimeout: deps.Conversation.ProviderTimeout,
	})

	profile := *msg.Profile
	n := &notifier{session: s, banner: deps.Conversation.ErrorBanner}
	orch := conversation.New(conversation.Config{
		SessionID:       id,
		Profile:         profile,
		Debounce:        deps.Conversation.Debounce,
		RestartDelay:    deps.Conversation.RestartDelay,
		MaxRestartDelay: deps.Conversation.MaxRestartDelay,
		MaxRestarts:     deps.Conversation.MaxRestarts,
		Greeting:        deps.Conversation.Greeting,
	}, engine, deps.Responder, channel, n, deps.Recorder)

	s.mu.Lock()
	s.id = id
	s.profile = profile
	s.engine = engine
	s.player = player
	s.orch = orch
	s.logger = logging.WithSession(id).With().Str("component", "session").Logger()
	s.mu.Unlock()

	s.logger.Info().
		Str("capture", engine.Name()).
		Str("client", profile.Name).
		Msg("Session started")

	return s.emit(models.Event{
		Type:      models.EventSessionReady,
		SessionID: id,
		State:     conversation.StateIdle.String(),
	})
}

// Serve feeds messages from next into Handle until next fails or the session
// is closed, then closes the session. Refused messages are reported to the
// client and do not end the loop. next runs on its own goroutine and may
// still be blocked when Serve returns; the transport unblocks it by closing
// its connection.
func (s *Session) Serve(next func() (models.ClientMessage, error)) error {
	defer s.Close()

	type received struct {
		msg models.ClientMessage
		err error
	}
	in := make(chan received)
	go func() {
		for {
			msg, err := next()
			select {
			case in <- received{msg, err}:
			case <-s.ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return ErrClosed
		case r := <-in:
			if r.err != nil {
				return r.err
			}
			if err := s.Handle(r.msg); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				s.logger.Warn().Err(err).Str("type", r.msg.Type).Msg("Rejected client message")
				if sendErr := s.Reject(err); sendErr != nil {
					return sendErr
				}
			}
		}
	}
}

// Reject reports a refused client message.
func (s *Session) Reject(err error) error {
	return s.emit(models.Event{
		Type:      models.EventError,
		ErrorKind: ErrorKindRequest,
		Text:      err.Error(),
	})
}

// Close stops the conversation and releases the capture engine. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	id, orch, engine := s.id, s.orch, s.engine
	s.mu.Unlock()

	if orch != nil {
		orch.Stop()
	}
	if c, ok := engine.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close capture engine")
		}
	}
	s.cancel()
	if id != "" {
		s.manager.unregister(id)
	}

	s.metrics.RecordSessionEnd(time.Since(s.opened).Seconds())
	s.logger.Info().Dur("duration", time.Since(s.opened)).Msg("Session closed")
}

// Wait blocks until in-flight turns have finished.
func (s *Session) Wait() {
	s.mu.Lock()
	orch := s.orch
	s.mu.Unlock()
	if orch != nil {
		orch.Wait()
	}
}

// emit stamps and sends an event.
func (s *Session) emit(ev models.Event) error {
	if ev.SessionID == "" {
		ev.SessionID = s.ID()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	if err := s.send(ev); err != nil {
		s.logger.Debug().Err(err).Str("type", ev.Type).Msg("Failed to send event")
		return err
	}
	return nil
}

// notifier turns orchestrator callbacks into client events.
type notifier struct {
	session *Session
	banner  time.Duration
}

func (n *notifier) StateChanged(from, to conversation.State, reason conversation.Reason) {
	n.session.emit(models.Event{
		Type:   models.EventState,
		State:  to.String(),
		Reason: string(reason),
	})
}

func (n *notifier) Status(text string) {
	n.session.emit(models.Event{Type: models.EventStatus, Text: text})
}

func (n *notifier) TurnAppended(turn models.ConversationTurn) {
	n.session.emit(models.Event{Type: models.EventTurn, Turn: &turn})
}

func (n *notifier) Error(kind, message string) {
	n.session.emit(models.Event{
		Type:         models.EventError,
		ErrorKind:    kind,
		Text:         message,
		ClearAfterMs: n.banner.Milliseconds(),
	})
}

var _ conversation.Notifier = (*notifier)(nil)
