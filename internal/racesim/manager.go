package racesim

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SessionInfo is returned by the API for the session list.
type SessionInfo struct {
	ID        string `json:"id"`
	RaceID    string `json:"raceId"`
	State     string `json:"state"`
	Observers int    `json:"observers"`
	Default   bool   `json:"default"`
}

// Manager holds sessions by id. The first session created becomes the default session, which
// serves requests that do not name a session.
type Manager struct {
	opts SessionOptions

	mu        sync.RWMutex
	sessions  map[string]*Session
	order     []string
	defaultID string
}

func NewManager(opts SessionOptions) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create(config RaceConfig) (*Session, error) {
	id := uuid.New().String()

	session, err := NewSession(id, config, m.opts)

	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = session
	m.order = append(m.order, id)

	if m.defaultID == "" {
		m.defaultID = id
	}

	m.opts.Metrics.Sessions.Inc()

	m.opts.Logger.WithField("session", id).Infof("Created session for race %s", session.Config().RaceID)

	return session, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]

	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "id: %s", id)
	}

	return session, nil
}

func (m *Manager) Default() (*Session, error) {
	m.mu.RLock()
	id := m.defaultID
	m.mu.RUnlock()

	if id == "" {
		return nil, errors.Wrap(ErrSessionNotFound, "no default session")
	}

	return m.Get(id)
}

// Destroy stops the session, closes its observers and forgets it. Destroying the default session
// promotes the oldest remaining session.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()

	session, ok := m.sessions[id]

	if !ok {
		m.mu.Unlock()
		return errors.Wrapf(ErrSessionNotFound, "id: %s", id)
	}

	delete(m.sessions, id)

	for i, sessionID := range m.order {
		if sessionID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.defaultID == id {
		m.defaultID = ""

		if len(m.order) > 0 {
			m.defaultID = m.order[0]
		}
	}

	m.mu.Unlock()

	m.opts.Metrics.Sessions.Dec()

	return session.Close()
}

func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(m.sessions))

	for _, id := range m.order {
		session := m.sessions[id]

		out = append(out, SessionInfo{
			ID:        id,
			RaceID:    session.Config().RaceID,
			State:     session.State().String(),
			Observers: session.Observers(),
			Default:   id == m.defaultID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Default && !out[j].Default
	})

	return out
}

// Close destroys every session.
func (m *Manager) Close() error {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.RUnlock()

	var firstErr error

	for _, id := range ids {
		if err := m.Destroy(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
