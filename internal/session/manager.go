package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/timeutil"
)

type ManagerConfig struct {
	Configs   exercise.Configs
	Clock     timeutil.Clock
	Publisher Publisher
}

type CreateRequest struct {
	Exercise  exercise.Kind
	UserEmail string
	// DurationSeconds overrides the exercise default when positive.
	DurationSeconds int
	Calibration     exercise.Calibration
}

// Manager is the registry of live sessions.
type Manager struct {
	configs   exercise.Configs
	clock     timeutil.Clock
	publisher Publisher

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

func NewManager(config ManagerConfig) *Manager {
	if config.Clock == nil {
		config.Clock = timeutil.RealClock{}
	}
	if config.Publisher == nil {
		config.Publisher = nopPublisher{}
	}
	return &Manager{
		configs:   config.Configs,
		clock:     config.Clock,
		publisher: config.Publisher,
		sessions:  make(map[string]*Session),
	}
}

// DefaultDuration is the time limit an exercise gets when the caller does
// not choose one.
func (m *Manager) DefaultDuration(kind exercise.Kind) time.Duration {
	if kind == exercise.KindSitup {
		return m.configs.Situp.Duration()
	}
	return 0
}

func (m *Manager) Create(req CreateRequest) (*Session, error) {
	if req.DurationSeconds < 0 {
		return nil, fmt.Errorf("duration_seconds must be non-negative, got %d", req.DurationSeconds)
	}
	duration := m.DefaultDuration(req.Exercise)
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}

	s, err := New(Options{
		Exercise:    req.Exercise,
		UserEmail:   req.UserEmail,
		Duration:    duration,
		Calibration: req.Calibration,
		Configs:     m.configs,
		Clock:       m.clock,
		Publisher:   m.publisher,
	})
	if err != nil {
		return nil, err
	}

	m.sessionsMu.Lock()
	m.sessions[s.ID] = s
	m.sessionsMu.Unlock()

	Logf("[SESSION] Created %s session %s for %q", s.Exercise, s.ID, s.UserEmail)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.sessionsMu.Lock()
	s, exists := m.sessions[id]
	delete(m.sessions, id)
	m.sessionsMu.Unlock()

	if !exists {
		return ErrNotFound
	}
	s.Close()
	Logf("[SESSION] Deleted session %s", id)
	return nil
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.sessionsMu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.sessionsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.sessionsMu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
