// Package turns keeps a per-session mirror of the conversation log.
package turns

import (
	"context"
	"errors"
	"sync"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// ErrNotFound is returned when a session has no recorded turns.
var ErrNotFound = errors.New("no turns recorded for session")

// Store appends and lists turn events per session.
type Store interface {
	Append(ctx context.Context, ev models.TurnEvent) error
	List(ctx context.Context, sessionID string) ([]models.TurnEvent, error)
}

// Memory is an in-process store, used when Redis is not configured.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]models.TurnEvent
	limit    int
}

// NewMemory creates a memory store keeping at most limit turns per session (0 = unlimited).
func NewMemory(limit int) *Memory {
	return &Memory{
		sessions: make(map[string][]models.TurnEvent),
		limit:    limit,
	}
}

// Append records a turn.
func (m *Memory) Append(ctx context.Context, ev models.TurnEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.sessions[ev.SessionID], ev)
	if m.limit > 0 && len(list) > m.limit {
		list = list[len(list)-m.limit:]
	}
	m.sessions[ev.SessionID] = list
	return nil
}

// List returns the turns of a session in order.
func (m *Memory) List(ctx context.Context, sessionID string) ([]models.TurnEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.TurnEvent(nil), list...), nil
}
