package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mberos/quorum/internal/swarm"
)

// QueryRun is the persisted record of one swarm query run.
type QueryRun struct {
	ID          string          `json:"id"`
	Question    string          `json:"question"`
	Context     string          `json:"context,omitempty"`
	Complexity  string          `json:"complexity"`
	QueryType   string          `json:"query_type,omitempty"`
	Strategy    string          `json:"strategy,omitempty"`
	Status      string          `json:"status"`
	Confidence  string          `json:"confidence,omitempty"`
	Results     json.RawMessage `json:"results,omitempty"`
	Synthesis   json.RawMessage `json:"synthesis,omitempty"`
	DurationMS  int64           `json:"duration_ms"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

const runColumns = `id, question, context, complexity, query_type, strategy, status, confidence, results, synthesis, duration_ms, started_at, completed_at`

func scanQueryRun(s scanner) (*QueryRun, error) {
	r := &QueryRun{}
	var qctx, qtype, strategy, confidence, results, synthesis sql.NullString
	var durationMS sql.NullInt64
	err := s.Scan(&r.ID, &r.Question, &qctx, &r.Complexity, &qtype, &strategy,
		&r.Status, &confidence, &results, &synthesis, &durationMS, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	r.Context = qctx.String
	r.QueryType = qtype.String
	r.Strategy = strategy.String
	r.Confidence = confidence.String
	r.DurationMS = durationMS.Int64
	if results.Valid {
		r.Results = json.RawMessage(results.String)
	}
	if synthesis.Valid {
		r.Synthesis = json.RawMessage(synthesis.String)
	}
	return r, nil
}

func (s *Store) SaveQueryRun(r *QueryRun) error {
	_, err := s.db.Exec(`
		INSERT INTO query_runs (id, question, context, complexity, query_type, strategy, status, confidence, results, synthesis, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			confidence = excluded.confidence,
			results = excluded.results,
			synthesis = excluded.synthesis,
			duration_ms = excluded.duration_ms,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed', 'cancelled') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Question, r.Context, r.Complexity, r.QueryType, r.Strategy,
		r.Status, r.Confidence, nullableJSON(r.Results), nullableJSON(r.Synthesis), r.DurationMS)
	if err != nil {
		return fmt.Errorf("save query run: %w", err)
	}
	return nil
}

func (s *Store) GetQueryRun(id string) (*QueryRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM query_runs WHERE id = ?`, id)
	r, err := scanQueryRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query run: %w", err)
	}
	return r, nil
}

func (s *Store) ListQueryRuns(limit int) ([]QueryRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM query_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query runs: %w", err)
	}
	defer rows.Close()

	var runs []QueryRun
	for rows.Next() {
		r, err := scanQueryRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) DeleteQueryRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM query_runs WHERE id = ?`, id)
	return err
}

// RecordRun flattens a SwarmResult into a QueryRun row. Implements the
// orchestrator's RunRecorder.
func (s *Store) RecordRun(_ context.Context, res *swarm.SwarmResult) error {
	results, err := json.Marshal(res.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	var synthesis json.RawMessage
	if res.Synthesis != nil {
		synthesis, err = json.Marshal(res.Synthesis)
		if err != nil {
			return fmt.Errorf("marshal synthesis: %w", err)
		}
	}
	return s.SaveQueryRun(&QueryRun{
		ID:         res.Query.ID,
		Question:   res.Query.Question,
		Context:    res.Query.Context,
		Complexity: res.Query.Complexity.String(),
		Status:     string(res.Status),
		Confidence: res.Confidence.String(),
		Results:    results,
		Synthesis:  synthesis,
		DurationMS: res.Duration.Milliseconds(),
	})
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type scanner interface {
	Scan(dest ...any) error
}
