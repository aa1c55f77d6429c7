package store

import (
	"database/sql"
	"fmt"
	"time"
)

// StandingQuery is a recurring query run on a schedule. The schedule field
// holds either a bare cron expression or a schedule JSON document.
type StandingQuery struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Question   string     `json:"question"`
	Context    string     `json:"context,omitempty"`
	Complexity string     `json:"complexity"`
	Schedule   string     `json:"schedule"`
	Status     string     `json:"status"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const standingColumns = `id, name, question, context, complexity, schedule, status, next_run_at, last_run_at, last_run_id, last_error, created_at`

func scanStandingQuery(s scanner) (*StandingQuery, error) {
	sq := &StandingQuery{}
	var qctx, lastRunID, lastError sql.NullString
	err := s.Scan(&sq.ID, &sq.Name, &sq.Question, &qctx, &sq.Complexity, &sq.Schedule,
		&sq.Status, &sq.NextRunAt, &sq.LastRunAt, &lastRunID, &lastError, &sq.CreatedAt)
	if err != nil {
		return nil, err
	}
	sq.Context = qctx.String
	sq.LastRunID = lastRunID.String
	sq.LastError = lastError.String
	return sq, nil
}

func (s *Store) SaveStandingQuery(sq *StandingQuery) error {
	_, err := s.db.Exec(`
		INSERT INTO standing_queries (id, name, question, context, complexity, schedule, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			question = excluded.question,
			context = excluded.context,
			complexity = excluded.complexity,
			schedule = excluded.schedule,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		sq.ID, sq.Name, sq.Question, sq.Context, sq.Complexity, sq.Schedule, sq.Status, sq.NextRunAt)
	if err != nil {
		return fmt.Errorf("save standing query: %w", err)
	}
	return nil
}

func (s *Store) GetStandingQuery(id string) (*StandingQuery, error) {
	row := s.db.QueryRow(`SELECT `+standingColumns+` FROM standing_queries WHERE id = ?`, id)
	sq, err := scanStandingQuery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get standing query: %w", err)
	}
	return sq, nil
}

func (s *Store) ListStandingQueries() ([]StandingQuery, error) {
	rows, err := s.db.Query(`SELECT ` + standingColumns + ` FROM standing_queries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list standing queries: %w", err)
	}
	defer rows.Close()

	var queries []StandingQuery
	for rows.Next() {
		sq, err := scanStandingQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan standing query: %w", err)
		}
		queries = append(queries, *sq)
	}
	return queries, rows.Err()
}

// DueStandingQueries returns active standing queries whose next run time has
// passed.
func (s *Store) DueStandingQueries(now time.Time) ([]StandingQuery, error) {
	rows, err := s.db.Query(`
		SELECT `+standingColumns+`
		FROM standing_queries
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("due standing queries: %w", err)
	}
	defer rows.Close()

	var queries []StandingQuery
	for rows.Next() {
		sq, err := scanStandingQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan standing query: %w", err)
		}
		queries = append(queries, *sq)
	}
	return queries, rows.Err()
}

// MarkStandingQueryRun records the outcome of one scheduled run and advances
// the next run time.
func (s *Store) MarkStandingQueryRun(id, runID, lastError string, nextRun *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE standing_queries
		SET last_run_at = CURRENT_TIMESTAMP, last_run_id = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`, runID, lastError, nextRun, id)
	if err != nil {
		return fmt.Errorf("mark standing query run: %w", err)
	}
	return nil
}

func (s *Store) SetStandingQueryStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE standing_queries SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set standing query status: %w", err)
	}
	return nil
}

func (s *Store) DeleteStandingQuery(id string) error {
	_, err := s.db.Exec(`DELETE FROM standing_queries WHERE id = ?`, id)
	return err
}
