package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
// Single connection (SetMaxOpenConns(1)) - SQLite handles serialization.
type SQLiteStore struct {
	db     *sql.DB
	cfg    Config
	closed atomic.Bool
}

// NewSQLiteStore creates a new SQLite-backed transcript store.
// Use ":memory:" for in-memory storage or a file path for persistence.
func NewSQLiteStore(dsn string, cfg Config) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// PRAGMAs are per-connection and in-memory databases are per-connection,
	// so pin to one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		user_id     TEXT NOT NULL DEFAULT '',
		question    TEXT NOT NULL,
		standalone  TEXT NOT NULL DEFAULT '',
		answer      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		rewrite     TEXT NOT NULL DEFAULT '',
		qmgr        TEXT NOT NULL DEFAULT '',
		elapsed_ms  INTEGER NOT NULL DEFAULT 0,
		seq         INTEGER NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends an exchange. Missing ID and CreatedAt are filled in.
func (s *SQLiteStore) Record(ctx context.Context, ex Exchange) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if ex.SessionID == "" {
		return ErrEmptySession
	}
	if ex.ID == "" {
		ex.ID = generateID()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges
		 (id, session_id, user_id, question, standalone, answer, outcome, rewrite, qmgr, elapsed_ms, seq, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM exchanges), ?)`,
		ex.ID, ex.SessionID, ex.UserID, ex.Question, ex.Standalone, ex.Answer,
		ex.Outcome, ex.Rewrite, ex.QueueMgr, ex.Elapsed.Milliseconds(),
		ex.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// Recent returns the latest exchanges, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, req RecentRequest) (*RecentResult, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, session_id, user_id, question, standalone, answer, outcome, rewrite, qmgr, elapsed_ms, created_at
		FROM exchanges`
	args := []interface{}{}
	if req.SessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, req.SessionID)
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &RecentResult{Exchanges: []Exchange{}}
	for rows.Next() {
		var (
			ex        Exchange
			elapsedMS int64
			createdAt string
		)
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.UserID, &ex.Question, &ex.Standalone,
			&ex.Answer, &ex.Outcome, &ex.Rewrite, &ex.QueueMgr, &elapsedMS, &createdAt); err != nil {
			return nil, err
		}
		ex.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		ex.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		result.Exchanges = append(result.Exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Prune removes exchanges created before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (*PruneResult, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM exchanges WHERE created_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("prune exchanges: %w", err)
	}
	removed, _ := res.RowsAffected()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchanges").Scan(&total); err != nil {
		return nil, err
	}

	return &PruneResult{Removed: int(removed), TotalExchanges: total}, nil
}

// Stats returns transcript statistics.
// Each query is scanned and closed before the next to avoid holding
// the single SQLite connection across multiple result sets.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	stats := &Stats{
		ByOutcome:  make(map[string]int),
		ByQueueMgr: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT session_id) FROM exchanges",
	).Scan(&stats.TotalExchanges, &stats.Sessions); err != nil {
		return nil, err
	}

	if err := s.countBy(ctx, "SELECT outcome, COUNT(*) FROM exchanges GROUP BY outcome", stats.ByOutcome); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "SELECT qmgr, COUNT(*) FROM exchanges WHERE qmgr != '' GROUP BY qmgr", stats.ByQueueMgr); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	_ = s.db.QueryRowContext(ctx, "SELECT MIN(created_at), MAX(created_at) FROM exchanges").Scan(&oldest, &newest)
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(timeLayout, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(timeLayout, newest.String)
	}

	return stats, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Config returns the configuration the store was opened with.
func (s *SQLiteStore) Config() Config {
	return s.cfg
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
