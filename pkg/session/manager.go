package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Siddhant-K-code/mqassist/pkg/metrics"
	"github.com/Siddhant-K-code/mqassist/pkg/textutil"
)

// Manager is the registry of live sessions keyed by session ID.
// A single mutex guards the map; per-session work happens outside it.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics reports occupancy and sweeps to the given collectors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates an empty session registry.
func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}

	m := &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default().With(slog.String("component", "session.manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the configuration the manager applies to new sessions.
func (m *Manager) Config() Config {
	return m.cfg
}

// GetOrCreate returns the live session for sessionID. An expired session is
// discarded and replaced. For a live session the supplied userID is ignored:
// the original owner stays authoritative. Last activity is not refreshed.
func (m *Manager) GetOrCreate(sessionID, userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		if !sess.IsExpired() {
			return sess
		}
		m.logger.Info("session expired", slog.String("session", textutil.ShortID(sessionID)))
		delete(m.sessions, sessionID)
	}

	sess := newSession(sessionID, userID, m.cfg, m.now)
	m.sessions[sessionID] = sess
	m.logger.Info("new session",
		slog.String("session", textutil.ShortID(sessionID)),
		slog.String("user", userID),
	)
	m.observe()
	return sess
}

// SweepExpired removes every expired session and returns how many were removed.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.sessions {
		if sess.IsExpired() {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("removed expired sessions", slog.Int("removed", removed))
	}
	m.metrics.AddSessionsSwept(removed)
	m.observe()
	return removed
}

// Stats returns the number of registered sessions and how many of them are
// not expired. Expired sessions that have not been swept count toward Total.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() Stats {
	stats := Stats{Total: len(m.sessions)}
	for _, sess := range m.sessions {
		if !sess.IsExpired() {
			stats.Active++
		}
	}
	return stats
}

// observe publishes occupancy; callers hold m.mu.
func (m *Manager) observe() {
	if m.metrics == nil {
		return
	}
	s := m.statsLocked()
	m.metrics.SetSessions(s.Total, s.Active)
}
