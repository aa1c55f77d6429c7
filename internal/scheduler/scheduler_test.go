package scheduler

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/swarm"
)

type stubSubmitter struct {
	mu      sync.Mutex
	queries []swarm.Query
	status  swarm.Status
}

func (s *stubSubmitter) Submit(_ context.Context, q swarm.Query) *swarm.SwarmResult {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	status := s.status
	if status == "" {
		status = swarm.StatusCompleted
	}
	return &swarm.SwarmResult{Query: q, Status: status, Confidence: swarm.ConfidenceMedium}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveDue(t *testing.T, db *store.Store, id, scheduleJSON string) {
	t.Helper()
	due := time.Now().Add(-time.Minute)
	err := db.SaveStandingQuery(&store.StandingQuery{
		ID:         id,
		Name:       "watch",
		Question:   "Summarize the latest fusion results",
		Complexity: "research",
		Schedule:   scheduleJSON,
		Status:     "active",
		NextRunAt:  &due,
	})
	if err != nil {
		t.Fatalf("save standing query: %v", err)
	}
}

func TestPollRunsDueQuery(t *testing.T) {
	db := newTestStore(t)
	sub := &stubSubmitter{}
	sched := New(db, sub, nil, config.SchedulerConfig{PollInterval: time.Minute})

	saveDue(t, db, "sq1", `{"kind":"cron","cron_expr":"* * * * *"}`)
	sched.poll(context.Background())

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.queries) != 1 {
		t.Fatalf("expected 1 submitted query, got %d", len(sub.queries))
	}
	if sub.queries[0].Question != "Summarize the latest fusion results" {
		t.Errorf("unexpected question: %q", sub.queries[0].Question)
	}
	if sub.queries[0].Complexity != swarm.ComplexityResearch {
		t.Errorf("expected research complexity, got %s", sub.queries[0].Complexity)
	}

	// Cron schedules advance to the next tick.
	sq, _ := db.GetStandingQuery("sq1")
	if sq.NextRunAt == nil || sq.NextRunAt.Before(time.Now()) {
		t.Errorf("expected future next run, got %v", sq.NextRunAt)
	}
	if sq.LastRunID != sub.queries[0].ID {
		t.Errorf("expected last run id %s, got %s", sub.queries[0].ID, sq.LastRunID)
	}
}

func TestPollRetiresOneOffQuery(t *testing.T) {
	db := newTestStore(t)
	sub := &stubSubmitter{}
	sched := New(db, sub, nil, config.SchedulerConfig{PollInterval: time.Minute})

	// One-off schedule in the past has no next run after firing.
	past := time.Now().Add(-time.Hour).UnixMilli()
	saveDue(t, db, "sq1", `{"kind":"once","at_ms":`+strconv.FormatInt(past, 10)+`}`)
	sched.poll(context.Background())

	sq, _ := db.GetStandingQuery("sq1")
	if sq.Status != "completed" {
		t.Errorf("expected completed status, got %s", sq.Status)
	}
	if sq.NextRunAt != nil {
		t.Errorf("expected nil next run, got %v", sq.NextRunAt)
	}
}

func TestPollRecordsFailure(t *testing.T) {
	db := newTestStore(t)
	sub := &stubSubmitter{status: swarm.StatusFailed}
	sched := New(db, sub, nil, config.SchedulerConfig{PollInterval: time.Minute})

	saveDue(t, db, "sq1", `{"kind":"cron","cron_expr":"* * * * *"}`)
	sched.poll(context.Background())

	sq, _ := db.GetStandingQuery("sq1")
	if sq.LastError == "" {
		t.Error("expected last error recorded for failed run")
	}
}

func TestPollSkipsPaused(t *testing.T) {
	db := newTestStore(t)
	sub := &stubSubmitter{}
	sched := New(db, sub, nil, config.SchedulerConfig{PollInterval: time.Minute})

	saveDue(t, db, "sq1", `{"kind":"cron","cron_expr":"* * * * *"}`)
	if err := db.SetStandingQueryStatus("sq1", "paused"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	sched.poll(context.Background())

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.queries) != 0 {
		t.Errorf("expected no submissions for paused query, got %d", len(sub.queries))
	}
}
