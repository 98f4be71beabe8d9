// Package transcript provides an append-only audit log of conversation
// exchanges with age-based retention. It records what was asked, what was
// forwarded to the bridge, and what was answered; it is never read back to
// restore session state.
package transcript

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by transcript stores.
var (
	ErrEmptySession = errors.New("exchange has no session id")
	ErrStoreClosed  = errors.New("transcript store is closed")
)

// Exchange outcomes.
const (
	OutcomeAnswered      = "answered"
	OutcomeClarification = "clarification"
)

// Exchange is one user message and the reply it produced.
type Exchange struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	UserID     string        `json:"user_id,omitempty"`
	Question   string        `json:"question"`             // raw user text
	Standalone string        `json:"standalone,omitempty"` // text forwarded to the bridge
	Answer     string        `json:"answer"`
	Outcome    string        `json:"outcome"`            // answered, clarification
	Rewrite    string        `json:"rewrite,omitempty"`  // remember, substitute, annotate
	QueueMgr   string        `json:"qmgr,omitempty"`     // queue manager in context after the exchange
	Elapsed    time.Duration `json:"elapsed"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RecentRequest selects exchanges for inspection.
type RecentRequest struct {
	SessionID string `json:"session_id,omitempty"` // empty = all sessions
	Limit     int    `json:"limit,omitempty"`      // default 20
}

// RecentResult is the output of Recent, newest first.
type RecentResult struct {
	Exchanges []Exchange `json:"exchanges"`
}

// PruneResult is the output of a prune pass.
type PruneResult struct {
	Removed        int `json:"removed"`
	TotalExchanges int `json:"total_exchanges"`
}

// Stats contains transcript statistics.
type Stats struct {
	TotalExchanges int            `json:"total_exchanges"`
	Sessions       int            `json:"sessions"`
	ByOutcome      map[string]int `json:"by_outcome"`
	ByQueueMgr     map[string]int `json:"by_qmgr"`
	Oldest         time.Time      `json:"oldest,omitempty"`
	Newest         time.Time      `json:"newest,omitempty"`
}

// Store is the interface for transcript backends.
type Store interface {
	// Record appends an exchange.
	Record(ctx context.Context, ex Exchange) error

	// Recent returns the latest exchanges, newest first.
	Recent(ctx context.Context, req RecentRequest) (*RecentResult, error)

	// Stats returns transcript statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Prune removes exchanges created before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (*PruneResult, error)

	// Close releases resources held by the store.
	Close() error
}

// Config holds transcript store configuration.
type Config struct {
	// Retention is how long exchanges are kept. Zero disables pruning.
	// Default: 720h (30 days).
	Retention time.Duration

	// PruneInterval is how often the prune worker runs. Default: 1h.
	PruneInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Retention:     720 * time.Hour,
		PruneInterval: 1 * time.Hour,
	}
}
