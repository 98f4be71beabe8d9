// Package session provides the registry of per-user conversational sessions.
// Sessions expire lazily after a period of inactivity, keep a bounded
// transcript of recent turns, and remember the last queue manager a user
// mentioned so later questions can be resolved against it.
package session

import (
	"sync"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single entry in a session's conversation history.
type Turn struct {
	Role    string `json:"role"`    // user, assistant
	Content string `json:"content"`
}

// Context holds the entities remembered across turns.
type Context struct {
	// LastQueueManager is the most recently mentioned queue manager name.
	// Empty means none has been mentioned yet.
	LastQueueManager string `json:"last_qmgr,omitempty"`
}

// Session holds the state of a single user's conversation.
//
// Lock and Unlock serialise message handling for the session and may be held
// across a slow bridge call. The remaining methods take a short internal
// lock, so Stats and sweeps never wait behind an in-flight message.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	handling sync.Mutex

	mu           sync.Mutex
	lastActivity time.Time
	history      []Turn
	ctx          Context

	maxTurns int
	timeout  time.Duration
	now      func() time.Time
}

func newSession(id, userID string, cfg Config, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    t,
		lastActivity: t,
		maxTurns:     cfg.MaxHistory * 2,
		timeout:      cfg.Timeout,
		now:          now,
	}
}

// Lock acquires the session's handling lock.
func (s *Session) Lock() { s.handling.Lock() }

// Unlock releases the session's handling lock.
func (s *Session) Unlock() { s.handling.Unlock() }

// Touch records inbound activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

// LastActivity returns the time of the last inbound message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IsExpired reports whether the session has been idle for longer than the
// configured timeout. An idle time exactly equal to the timeout is not expired.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredAt(s.now())
}

func (s *Session) expiredAt(now time.Time) bool {
	return now.Sub(s.lastActivity) > s.timeout
}

// Append adds a turn to the history and drops the oldest turns so the
// history never holds more than twice MaxHistory turns. It returns the
// number of turns dropped.
func (s *Session) Append(role, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Turn{Role: role, Content: content})
	if s.maxTurns <= 0 || len(s.history) <= s.maxTurns {
		return 0
	}

	dropped := len(s.history) - s.maxTurns
	kept := make([]Turn, s.maxTurns)
	copy(kept, s.history[dropped:])
	s.history = kept
	return dropped
}

// History returns a copy of the conversation history, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Context returns a snapshot of the remembered entities.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RememberQueueManager overwrites the remembered queue manager name.
func (s *Session) RememberQueueManager(name string) {
	s.mu.Lock()
	s.ctx.LastQueueManager = name
	s.mu.Unlock()
}

// Config holds session configuration.
type Config struct {
	// Timeout is the idle period after which a session expires.
	// Default: 30m.
	Timeout time.Duration

	// MaxHistory is the number of exchanges (user + assistant turn pairs)
	// kept per session. Default: 10.
	MaxHistory int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Minute,
		MaxHistory: 10,
	}
}

// Stats contains registry occupancy.
type Stats struct {
	Total  int `json:"total_sessions"`
	Active int `json:"active_sessions"`
}
