package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/registry"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/swarm"
	"github.com/mberos/quorum/internal/vault"
)

type okCollaborator struct {
	role swarm.Role
}

func (c *okCollaborator) ProcessQuery(_ context.Context, _ swarm.Query, _ map[string]string) (swarm.AgentResult, error) {
	return swarm.AgentResult{
		Role:       c.role,
		Content:    string(c.role) + " answer",
		Confidence: swarm.ConfidenceHigh,
		Sources:    []swarm.SourceRecord{{URL: "https://" + string(c.role) + ".example", Credibility: 0.9}},
	}, nil
}

type testEnv struct {
	server  *Server
	handler http.Handler
	store   *store.Store
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	collaborators := make(map[swarm.Role]swarm.Collaborator)
	for _, role := range swarm.AllRoles() {
		collaborators[role] = &okCollaborator{role: role}
	}
	orch := swarm.NewOrchestrator(swarm.NewExecutor(collaborators))
	orch.SetRunRecorder(db)

	cfg := config.Config{Roles: map[string]config.RoleConfig{
		"master": {Model: "gpt-4", Timeout: 120 * time.Second, Description: "Synthesizes peer findings"},
		"search": {Model: "gpt-4", Timeout: 45 * time.Second},
	}}
	reg := registry.New(db, vault.New("test-passphrase"), cfg.Roles)
	if err := reg.Sync(); err != nil {
		t.Fatalf("sync registry: %v", err)
	}

	srv := NewServer(db, nil, orch, reg, config.WebConfig{Enabled: true, Port: 0, Token: token}, "test")
	mux := http.NewServeMux()
	srv.registerAPI(mux)

	return &testEnv{server: srv, handler: srv.withMiddleware(mux), store: db}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "sekret")

	rec := env.do(t, "GET", "/api/status", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}
}

func TestSubmitQueryWait(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "POST", "/api/queries", `{"question":"Why is the sky blue","wait":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var res swarm.SwarmResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.Status != swarm.StatusCompleted {
		t.Errorf("expected completed, got %s", res.Status)
	}
	if res.Master.Content != "master answer" {
		t.Errorf("unexpected master content: %q", res.Master.Content)
	}

	// The run is persisted and retrievable.
	rec = env.do(t, "GET", "/api/queries/"+res.Query.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for persisted run, got %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/queries", "")
	var runs []store.QueryRun
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestSubmitQueryValidation(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "POST", "/api/queries", `{"context":"no question"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing question, got %d", rec.Code)
	}

	rec = env.do(t, "POST", "/api/queries", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}
}

func TestGetQueryNotFound(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "GET", "/api/queries/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCancelInactiveQuery(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "POST", "/api/queries/nope/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for inactive query, got %d", rec.Code)
	}
}

func TestRolesEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "GET", "/api/roles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var roles []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &roles); err != nil {
		t.Fatalf("unmarshal roles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 synced roles, got %d", len(roles))
	}
	for _, r := range roles {
		if r["status"] != "ready" {
			t.Errorf("expected role %v ready, got %v", r["role"], r["status"])
		}
	}
}

func TestStandingQueryEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "POST", "/api/standing-queries",
		`{"name":"fusion watch","question":"Summarize the latest fusion results","complexity":"research","schedule":"0 9 * * *"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var sq store.StandingQuery
	if err := json.Unmarshal(rec.Body.Bytes(), &sq); err != nil {
		t.Fatalf("unmarshal standing query: %v", err)
	}
	if sq.NextRunAt == nil {
		t.Error("expected next run computed at creation")
	}
	if !strings.Contains(sq.Schedule, `"cron"`) {
		t.Errorf("expected normalized cron schedule, got %q", sq.Schedule)
	}

	rec = env.do(t, "PUT", "/api/standing-queries/"+sq.ID+"/status", `{"status":"paused"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on pause, got %d", rec.Code)
	}
	got, _ := env.store.GetStandingQuery(sq.ID)
	if got.Status != "paused" {
		t.Errorf("expected paused, got %s", got.Status)
	}

	rec = env.do(t, "PUT", "/api/standing-queries/"+sq.ID+"/status", `{"status":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bogus status, got %d", rec.Code)
	}

	rec = env.do(t, "DELETE", "/api/standing-queries/"+sq.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	got, _ = env.store.GetStandingQuery(sq.ID)
	if got != nil {
		t.Error("expected standing query removed")
	}
}

func TestStandingQueryInvalidSchedule(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "POST", "/api/standing-queries",
		`{"question":"q","schedule":"not a schedule"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid schedule, got %d", rec.Code)
	}
}

func TestSecretsEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "POST", "/api/secrets", `{"name":"openai","value":"sk-123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec = env.do(t, "GET", "/api/secrets", "")
	var secrets []store.Secret
	if err := json.Unmarshal(rec.Body.Bytes(), &secrets); err != nil {
		t.Fatalf("unmarshal secrets: %v", err)
	}
	if len(secrets) != 1 || secrets[0].Name != "openai" {
		t.Fatalf("unexpected secrets: %+v", secrets)
	}

	// Ciphertext only in the store, never in the listing.
	stored, _ := env.store.GetSecretByName("openai")
	if string(stored.Value) == "sk-123" {
		t.Error("secret stored in plaintext")
	}

	rec = env.do(t, "DELETE", "/api/secrets/openai", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	env.do(t, "POST", "/api/queries", `{"question":"Why is the sky blue","wait":true}`)

	rec := env.do(t, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status["version"] != "test" {
		t.Errorf("expected version 'test', got %v", status["version"])
	}
	if status["processed"] != float64(1) {
		t.Errorf("expected 1 processed, got %v", status["processed"])
	}
}
