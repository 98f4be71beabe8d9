package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", DefaultConfig())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exchanges := []Exchange{
		{SessionID: "s1", UserID: "alice", Question: "How many queues in SRVIG?", Standalone: "How many queues in SRVIG?",
			Answer: "42", Outcome: OutcomeAnswered, Rewrite: "remember", QueueMgr: "SRVIG", Elapsed: 1500 * time.Millisecond},
		{SessionID: "s1", UserID: "alice", Question: "Is it running?", Standalone: "Is it running? (Queue manager: SRVIG)",
			Answer: "Yes", Outcome: OutcomeAnswered, Rewrite: "annotate", QueueMgr: "SRVIG"},
		{SessionID: "s2", UserID: "bob", Question: "What's the status?", Answer: "Which queue manager?", Outcome: OutcomeClarification},
	}
	for _, ex := range exchanges {
		if err := s.Record(ctx, ex); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := s.Recent(ctx, RecentRequest{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all.Exchanges) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(all.Exchanges))
	}
	// Newest first
	if all.Exchanges[0].SessionID != "s2" {
		t.Errorf("expected newest exchange first, got session %s", all.Exchanges[0].SessionID)
	}
	if all.Exchanges[0].ID == "" {
		t.Error("expected generated ID")
	}

	s1, err := s.Recent(ctx, RecentRequest{SessionID: "s1", Limit: 10})
	if err != nil {
		t.Fatalf("Recent s1: %v", err)
	}
	if len(s1.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges for s1, got %d", len(s1.Exchanges))
	}
	oldest := s1.Exchanges[1]
	if oldest.Standalone != "How many queues in SRVIG?" {
		t.Errorf("unexpected standalone text %q", oldest.Standalone)
	}
	if oldest.Elapsed != 1500*time.Millisecond {
		t.Errorf("expected elapsed 1.5s, got %v", oldest.Elapsed)
	}
	if oldest.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = s.Record(ctx, Exchange{SessionID: "s1", Question: fmt.Sprintf("q%d", i), Answer: "a", Outcome: OutcomeAnswered})
	}

	res, err := s.Recent(ctx, RecentRequest{Limit: 2})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(res.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(res.Exchanges))
	}
	if res.Exchanges[0].Question != "q4" || res.Exchanges[1].Question != "q3" {
		t.Errorf("expected q4,q3 got %s,%s", res.Exchanges[0].Question, res.Exchanges[1].Question)
	}
}

func TestRecordRequiresSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.Record(context.Background(), Exchange{Question: "hi"}); err != ErrEmptySession {
		t.Errorf("expected ErrEmptySession, got %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, Exchange{SessionID: "s1", Question: "a", Answer: "b", Outcome: OutcomeAnswered, QueueMgr: "SRVIG"})
	_ = s.Record(ctx, Exchange{SessionID: "s1", Question: "c", Answer: "d", Outcome: OutcomeAnswered, QueueMgr: "SRVIG"})
	_ = s.Record(ctx, Exchange{SessionID: "s2", Question: "e", Answer: "f", Outcome: OutcomeClarification})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalExchanges != 3 {
		t.Errorf("expected 3 exchanges, got %d", stats.TotalExchanges)
	}
	if stats.Sessions != 2 {
		t.Errorf("expected 2 sessions, got %d", stats.Sessions)
	}
	if stats.ByOutcome[OutcomeAnswered] != 2 || stats.ByOutcome[OutcomeClarification] != 1 {
		t.Errorf("unexpected outcomes: %v", stats.ByOutcome)
	}
	if stats.ByQueueMgr["SRVIG"] != 2 {
		t.Errorf("unexpected qmgr counts: %v", stats.ByQueueMgr)
	}
	if stats.Oldest.IsZero() || stats.Newest.IsZero() {
		t.Error("expected oldest and newest to be set")
	}
}

func TestEmptyStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalExchanges != 0 {
		t.Errorf("expected 0 exchanges, got %d", stats.TotalExchanges)
	}

	res, err := s.Recent(ctx, RecentRequest{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(res.Exchanges) != 0 {
		t.Errorf("expected no exchanges, got %d", len(res.Exchanges))
	}
}

func TestPruneWorker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, Exchange{SessionID: "old", Question: "q", Answer: "a", Outcome: OutcomeAnswered,
		CreatedAt: time.Now().Add(-48 * time.Hour)})
	_ = s.Record(ctx, Exchange{SessionID: "new", Question: "q", Answer: "a", Outcome: OutcomeAnswered})

	w := NewPruneWorker(s, Config{Retention: 24 * time.Hour})
	result, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("expected 1 removed, got %d", result.Removed)
	}
	if result.TotalExchanges != 1 {
		t.Errorf("expected 1 remaining, got %d", result.TotalExchanges)
	}

	res, _ := s.Recent(ctx, RecentRequest{})
	if len(res.Exchanges) != 1 || res.Exchanges[0].SessionID != "new" {
		t.Errorf("expected only the recent exchange to survive, got %+v", res.Exchanges)
	}
}

func TestPruneWorkerZeroRetentionKeepsAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, Exchange{SessionID: "old", Question: "q", Answer: "a", Outcome: OutcomeAnswered,
		CreatedAt: time.Now().Add(-10000 * time.Hour)})

	w := NewPruneWorker(s, Config{})
	result, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("expected nothing removed, got %d", result.Removed)
	}
}

func TestClosedStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:", DefaultConfig())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if err := s.Record(context.Background(), Exchange{SessionID: "s"}); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.Stats(context.Background()); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
