package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/swarm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestQueryRunCRUD(t *testing.T) {
	s := newTestStore(t)

	run := &QueryRun{
		ID:         "q1",
		Question:   "Why is the sky blue",
		Complexity: "basic",
		QueryType:  "causation",
		Strategy:   "sequential",
		Status:     "executing",
	}
	if err := s.SaveQueryRun(run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := s.GetQueryRun("q1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Question != "Why is the sky blue" || got.QueryType != "causation" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("expected no completed_at for running query")
	}

	// Upsert to completed sets completed_at.
	run.Status = "completed"
	run.Confidence = "high"
	run.Results = json.RawMessage(`{"master":{"content":"verdict"}}`)
	run.DurationMS = 1500
	if err := s.SaveQueryRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}
	got, _ = s.GetQueryRun("q1")
	if got.Status != "completed" || got.Confidence != "high" {
		t.Errorf("unexpected updated run: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at after completion")
	}

	runs, err := s.ListQueryRuns(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	if err := s.DeleteQueryRun("q1"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	got, _ = s.GetQueryRun("q1")
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestGetQueryRunMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetQueryRun("nope")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)

	q := swarm.NewQuery("How do vaccines work", "", swarm.ComplexityIntermediate)
	res := &swarm.SwarmResult{
		Query: q,
		Results: map[swarm.Role]swarm.AgentResult{
			swarm.RoleMaster: {Role: swarm.RoleMaster, Content: "verdict", Confidence: swarm.ConfidenceHigh},
		},
		Synthesis:  &swarm.Synthesis{Gaps: []string{"missing mechanism explanation"}},
		Confidence: swarm.ConfidenceMedium,
		Duration:   2 * time.Second,
		Status:     swarm.StatusCompleted,
	}
	if err := s.RecordRun(context.Background(), res); err != nil {
		t.Fatalf("record run: %v", err)
	}

	got, err := s.GetQueryRun(q.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected persisted run")
	}
	if got.Status != "completed" || got.Confidence != "medium" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.DurationMS != 2000 {
		t.Errorf("expected duration 2000ms, got %d", got.DurationMS)
	}

	var syn swarm.Synthesis
	if err := json.Unmarshal(got.Synthesis, &syn); err != nil {
		t.Fatalf("unmarshal synthesis: %v", err)
	}
	if len(syn.Gaps) != 1 {
		t.Errorf("expected 1 gap in persisted synthesis, got %v", syn.Gaps)
	}
}

func TestStandingQueryLifecycle(t *testing.T) {
	s := newTestStore(t)

	due := time.Now().Add(-time.Minute)
	sq := &StandingQuery{
		ID:         "sq1",
		Name:       "fusion watch",
		Question:   "Summarize the latest fusion results",
		Complexity: "research",
		Schedule:   `{"kind":"cron","cron_expr":"0 9 * * *"}`,
		Status:     "active",
		NextRunAt:  &due,
	}
	if err := s.SaveStandingQuery(sq); err != nil {
		t.Fatalf("save standing query: %v", err)
	}

	dueList, err := s.DueStandingQueries(time.Now())
	if err != nil {
		t.Fatalf("due standing queries: %v", err)
	}
	if len(dueList) != 1 || dueList[0].ID != "sq1" {
		t.Fatalf("expected sq1 due, got %v", dueList)
	}

	next := time.Now().Add(time.Hour)
	if err := s.MarkStandingQueryRun("sq1", "run-1", "", &next); err != nil {
		t.Fatalf("mark run: %v", err)
	}

	dueList, _ = s.DueStandingQueries(time.Now())
	if len(dueList) != 0 {
		t.Errorf("expected nothing due after advance, got %v", dueList)
	}

	got, _ := s.GetStandingQuery("sq1")
	if got.LastRunID != "run-1" {
		t.Errorf("expected last run id recorded, got %q", got.LastRunID)
	}
	if got.LastRunAt == nil {
		t.Error("expected last_run_at set")
	}

	if err := s.SetStandingQueryStatus("sq1", "paused"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	past := time.Now().Add(-time.Minute)
	_ = s.MarkStandingQueryRun("sq1", "run-1", "", &past)
	dueList, _ = s.DueStandingQueries(time.Now())
	if len(dueList) != 0 {
		t.Error("paused standing query must not be due")
	}

	if err := s.DeleteStandingQuery("sq1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.GetStandingQuery("sq1")
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSecretCRUD(t *testing.T) {
	s := newTestStore(t)

	sec := &Secret{ID: "id1", Name: "openai", Value: []byte{1, 2, 3}, Nonce: []byte{4, 5, 6}}
	if err := s.SaveSecret(sec); err != nil {
		t.Fatalf("save secret: %v", err)
	}

	got, err := s.GetSecretByName("openai")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if got == nil || string(got.Value) != string([]byte{1, 2, 3}) {
		t.Fatalf("unexpected secret: %+v", got)
	}

	// Same name upserts.
	sec.Value = []byte{9}
	if err := s.SaveSecret(sec); err != nil {
		t.Fatalf("upsert secret: %v", err)
	}
	secrets, _ := s.ListSecrets()
	if len(secrets) != 1 {
		t.Errorf("expected 1 secret after upsert, got %d", len(secrets))
	}

	if err := s.DeleteSecret("openai"); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	got, _ = s.GetSecretByName("openai")
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRoleDefinitions(t *testing.T) {
	s := newTestStore(t)

	rd := &RoleDefinition{
		Role:        "search",
		Description: "Gathers evidence",
		Model:       "gpt-4",
		Temperature: 0.3,
		MaxTokens:   2000,
		Timeout:     45 * time.Second,
	}
	if err := s.SaveRoleDefinition(rd); err != nil {
		t.Fatalf("save role definition: %v", err)
	}

	got, err := s.GetRoleDefinition("search")
	if err != nil {
		t.Fatalf("get role definition: %v", err)
	}
	if got == nil || got.Timeout != 45*time.Second {
		t.Fatalf("unexpected role definition: %+v", got)
	}

	rd.Model = "gpt-4-turbo"
	if err := s.SaveRoleDefinition(rd); err != nil {
		t.Fatalf("update role definition: %v", err)
	}
	defs, _ := s.ListRoleDefinitions()
	if len(defs) != 1 || defs[0].Model != "gpt-4-turbo" {
		t.Errorf("unexpected definitions: %+v", defs)
	}
}
