package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepInterval is how often the sweeper removes expired sessions.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically calls SweepExpired on a Manager. Running it is
// optional; without it expired sessions are only replaced lazily.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a sweeper for the given manager.
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		logger:   manager.logger.With(slog.String("component", "session.sweeper")),
	}
}

// Start schedules the sweep. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.RunOnce); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Debug("sweeper started", slog.Duration("interval", s.interval))
	return nil
}

// Stop unschedules the sweep and waits for a running pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
}

// RunOnce executes a single sweep pass.
func (s *Sweeper) RunOnce() {
	start := time.Now()
	removed := s.manager.SweepExpired()
	stats := s.manager.Stats()
	s.logger.Debug("sweep finished",
		slog.Int("removed", removed),
		slog.Int("total", stats.Total),
		slog.Int("active", stats.Active),
		slog.Duration("duration", time.Since(start)),
	)
}

// IsRunning reports whether the sweep is scheduled.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
