package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mberos/quorum/internal/schedule"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/swarm"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Queries
	mux.HandleFunc("POST /api/queries", s.submitQuery)
	mux.HandleFunc("GET /api/queries", s.listQueries)
	mux.HandleFunc("GET /api/queries/{id}", s.getQuery)
	mux.HandleFunc("POST /api/queries/{id}/cancel", s.cancelQuery)
	mux.HandleFunc("DELETE /api/queries/{id}", s.deleteQuery)

	// Roles
	mux.HandleFunc("GET /api/roles", s.listRoles)

	// Standing queries
	mux.HandleFunc("GET /api/standing-queries", s.listStandingQueries)
	mux.HandleFunc("POST /api/standing-queries", s.createStandingQuery)
	mux.HandleFunc("GET /api/standing-queries/{id}", s.getStandingQuery)
	mux.HandleFunc("PUT /api/standing-queries/{id}/status", s.setStandingQueryStatus)
	mux.HandleFunc("DELETE /api/standing-queries/{id}", s.deleteStandingQuery)

	// Secrets
	mux.HandleFunc("GET /api/secrets", s.listSecrets)
	mux.HandleFunc("POST /api/secrets", s.createSecret)
	mux.HandleFunc("DELETE /api/secrets/{name}", s.deleteSecret)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) submitQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question   string `json:"question"`
		Context    string `json:"context"`
		Complexity string `json:"complexity"`
		Wait       bool   `json:"wait"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	q := swarm.NewQuery(body.Question, body.Context, swarm.ParseComplexity(body.Complexity))

	if body.Wait {
		res := s.orch.Submit(r.Context(), q)
		jsonResponse(w, res)
		return
	}

	go s.orch.Submit(context.Background(), q)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": q.ID, "status": string(swarm.StatusQueued)})
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := s.store.ListQueryRuns(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.QueryRun{}
	}
	jsonResponse(w, runs)
}

func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.store.GetQueryRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run != nil {
		jsonResponse(w, run)
		return
	}

	// Not persisted yet; it may still be in flight.
	for _, qs := range s.orch.Status().Active {
		if qs.ID == id {
			jsonResponse(w, qs)
			return
		}
	}
	jsonError(w, "query not found", http.StatusNotFound)
}

func (s *Server) cancelQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.orch.Cancel(id) {
		jsonError(w, "query not active", http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"id": id, "status": string(swarm.StatusCancelled)})
}

func (s *Server) deleteQuery(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteQueryRun(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	defs, err := s.store.ListRoleDefinitions()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	availability := s.orch.Status().Roles
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"role":        d.Role,
			"description": d.Description,
			"model":       d.Model,
			"temperature": d.Temperature,
			"max_tokens":  d.MaxTokens,
			"timeout":     d.Timeout.String(),
			"status":      availability[swarm.Role(d.Role)],
		})
	}
	jsonResponse(w, out)
}

func (s *Server) listStandingQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.store.ListStandingQueries()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if queries == nil {
		queries = []store.StandingQuery{}
	}
	jsonResponse(w, queries)
}

func (s *Server) createStandingQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string `json:"name"`
		Question   string `json:"question"`
		Context    string `json:"context"`
		Complexity string `json:"complexity"`
		Schedule   string `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Question == "" || body.Schedule == "" {
		jsonError(w, "question and schedule are required", http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		body.Name = body.Question
	}

	sq := &store.StandingQuery{
		ID:         uuid.NewString(),
		Name:       body.Name,
		Question:   body.Question,
		Context:    body.Context,
		Complexity: swarm.ParseComplexity(body.Complexity).String(),
		Schedule:   normalized,
		Status:     "active",
		NextRunAt:  schedule.NextRun(normalized),
	}
	if err := s.store.SaveStandingQuery(sq); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, sq)
}

func (s *Server) getStandingQuery(w http.ResponseWriter, r *http.Request) {
	sq, err := s.store.GetStandingQuery(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sq == nil {
		jsonError(w, "standing query not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, sq)
}

func (s *Server) setStandingQueryStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Status != "active" && body.Status != "paused" {
		jsonError(w, "status must be active or paused", http.StatusBadRequest)
		return
	}
	if err := s.store.SetStandingQueryStatus(r.PathValue("id"), body.Status); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": body.Status})
}

func (s *Server) deleteStandingQuery(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteStandingQuery(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListSecrets()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if secrets == nil {
		secrets = []store.Secret{}
	}
	jsonResponse(w, secrets)
}

func (s *Server) createSecret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Value == "" {
		jsonError(w, "name and value are required", http.StatusBadRequest)
		return
	}
	if err := s.registry.StoreSecret(body.Name, body.Value); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "saved"})
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSecret(r.PathValue("name")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st := s.orch.Status()

	out := map[string]any{
		"version":      s.version,
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"active":       st.Active,
		"processed":    st.Processed,
		"failed":       st.Failed,
		"cancelled":    st.Cancelled,
		"avg_duration": st.AvgDuration.Round(time.Millisecond).String(),
		"roles":        st.Roles,
	}
	if s.bus != nil {
		out["bus"] = map[string]any{
			"port":    s.bus.Port(),
			"clients": s.bus.NumClients(),
		}
	}
	jsonResponse(w, out)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
