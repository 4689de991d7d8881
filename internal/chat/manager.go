package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/logger"
)

var ErrSessionNotFound = errors.New("chat session not found")

// Manager maps session ids to controllers for the HTTP API. Every session shares
// the responder and history store; its log is kept under the session id.
type Manager struct {
	responder Responder
	history   HistoryStore
	opts      []Option
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewManager(responder Responder, history HistoryStore, log *zap.Logger, opts ...Option) *Manager {
	if history == nil {
		history = NewMemoryStore()
	}
	return &Manager{
		responder: responder,
		history:   history,
		opts:      opts,
		logger:    logger.WithFields(log),
		sessions:  make(map[string]*Controller),
	}
}

// Create starts a session with a fresh id.
func (m *Manager) Create(ctx context.Context) (string, *Controller) {
	id := uuid.NewString()
	c := m.open(ctx, id)

	m.mu.Lock()
	m.sessions[id] = c
	m.mu.Unlock()

	m.logger.Debug("chat session created", zap.String(logger.FieldSession, id))
	return id, c
}

// Get returns the session's controller. A session unknown to this process is
// restored from the history store when a log exists for it.
func (m *Manager) Get(ctx context.Context, id string) (*Controller, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	m.mu.RLock()
	c, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}

	stored, err := m.history.Load(ctx, id)
	if err != nil || len(stored) == 0 {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.sessions[id]; ok {
		return c, nil
	}
	c = m.open(ctx, id)
	m.sessions[id] = c
	return c, nil
}

// Delete forgets the session and its persisted log. Keep-history only applies to
// Close; a deleted session cannot be restored.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	return m.history.Clear(ctx, id)
}

// EvictIdle drops sessions idle for longer than idle from memory and returns how
// many were dropped. Their logs stay in the history store, so a later Get restores
// them until the store expires them.
func (m *Manager) EvictIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, c := range m.sessions {
		if c.Busy() || c.LastActive().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	return evicted
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) open(ctx context.Context, id string) *Controller {
	opts := append([]Option{WithLogger(m.logger)}, m.opts...)
	opts = append(opts, WithHistory(m.history, id))
	return NewController(ctx, m.responder, opts...)
}
