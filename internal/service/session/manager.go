package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/config"
	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/logging"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/schema"
	"github.com/consultedge/emi-reminder-ai/internal/service/audio"
	"github.com/consultedge/emi-reminder-ai/internal/service/conversation"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt/client"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt/google"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt/mock"
	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
	"github.com/consultedge/emi-reminder-ai/internal/service/voice"
)

var (
	// ErrSessionNotFound is returned when no session has the requested id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when a client asks for an id already in use.
	ErrSessionExists = errors.New("session id already in use")
	// ErrUnknownCapture is returned for an unknown capture provider.
	ErrUnknownCapture = errors.New("unknown capture provider")
)

// EngineFactory builds the capture engine for a session.
type EngineFactory func(ctx context.Context, provider string, send voice.SendFunc, nextID func() string) (stt.Engine, error)

// NewEngineFactory returns a factory for the mock, client and google engines.
func NewEngineFactory(cfg config.STTConfig) EngineFactory {
	return func(ctx context.Context, provider string, send voice.SendFunc, nextID func() string) (stt.Engine, error) {
		switch provider {
		case "client":
			return client.New(client.SendFunc(send), nextID), nil
		case "mock":
			return mock.New(mock.DefaultConfig()), nil
		case "google":
			engine, err := google.New(ctx, google.Config{
				LanguageCode:   cfg.LanguageCode,
				SampleRateHz:   int32(cfg.SampleRateHz),
				InterimResults: cfg.InterimResults,
				AudioEncoding:  cfg.AudioEncoding,
			})
			if err != nil {
				return nil, err
			}
			return audio.NewGuard(engine, audio.Limits{
				MaxAudioBytes: cfg.MaxAudioBytes,
				MaxDuration:   cfg.MaxCaptureDuration,
				MaxFragments:  cfg.MaxFragments,
			}), nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownCapture, provider)
		}
	}
}

// Dependencies are the process-wide collaborators shared by all sessions.
type Dependencies struct {
	Responder       conversation.Responder
	Synthesizer     tts.Provider // nil selects the client's local synthesizer
	Recorder        conversation.Recorder
	Engines         EngineFactory
	CaptureProvider string
	Voice           tts.SynthesizeOptions
	Conversation    config.ConversationConfig
}

// Manager tracks live sessions.
type Manager struct {
	deps      Dependencies
	validator *schema.Validator
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(deps Dependencies) *Manager {
	if deps.CaptureProvider == "" {
		deps.CaptureProvider = "client"
	}
	return &Manager{
		deps:      deps,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
		sessions:  make(map[string]*Session),
	}
}

// Open creates a session for a new connection. It is registered once the
// client sends session.start. send may be called from several goroutines;
// Open serializes it.
func (m *Manager) Open(ctx context.Context, send voice.SendFunc) *Session {
	var mu sync.Mutex
	locked := func(ev models.Event) error {
		mu.Lock()
		defer mu.Unlock()
		return send(ev)
	}

	sctx, cancel := context.WithCancel(ctx)
	m.metrics.RecordSessionStart()
	return &Session{
		manager: m,
		send:    locked,
		ctx:     sctx,
		cancel:  cancel,
		opened:  time.Now(),
		logger:  logging.WithComponent("session"),
		metrics: m.metrics,
	}
}

// Get returns a started session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Count returns the number of started sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
	log.Info().Int("sessions", len(all)).Msg("Closed all sessions")
}

func (m *Manager) register(s *Session, requested string) (string, error) {
	id := requested
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	m.sessions[id] = s
	return id, nil
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
