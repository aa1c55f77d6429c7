package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RoleDefinition mirrors the configured responder roles so operators can
// inspect and tune them at runtime.
type RoleDefinition struct {
	Role        string        `json:"role"`
	Description string        `json:"description,omitempty"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (s *Store) SaveRoleDefinition(rd *RoleDefinition) error {
	_, err := s.db.Exec(`
		INSERT INTO role_definitions (role, description, model, temperature, max_tokens, timeout_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET
			description = excluded.description,
			model = excluded.model,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			timeout_ms = excluded.timeout_ms,
			updated_at = CURRENT_TIMESTAMP`,
		rd.Role, rd.Description, rd.Model, rd.Temperature, rd.MaxTokens, rd.Timeout.Milliseconds())
	if err != nil {
		return fmt.Errorf("save role definition: %w", err)
	}
	return nil
}

func (s *Store) GetRoleDefinition(role string) (*RoleDefinition, error) {
	row := s.db.QueryRow(`
		SELECT role, description, model, temperature, max_tokens, timeout_ms, updated_at
		FROM role_definitions WHERE role = ?`, role)
	rd, err := scanRoleDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get role definition: %w", err)
	}
	return rd, nil
}

func (s *Store) ListRoleDefinitions() ([]RoleDefinition, error) {
	rows, err := s.db.Query(`
		SELECT role, description, model, temperature, max_tokens, timeout_ms, updated_at
		FROM role_definitions ORDER BY role`)
	if err != nil {
		return nil, fmt.Errorf("list role definitions: %w", err)
	}
	defer rows.Close()

	var defs []RoleDefinition
	for rows.Next() {
		rd, err := scanRoleDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role definition: %w", err)
		}
		defs = append(defs, *rd)
	}
	return defs, rows.Err()
}

func scanRoleDefinition(s scanner) (*RoleDefinition, error) {
	rd := &RoleDefinition{}
	var desc sql.NullString
	var timeoutMS int64
	err := s.Scan(&rd.Role, &desc, &rd.Model, &rd.Temperature, &rd.MaxTokens, &timeoutMS, &rd.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rd.Description = desc.String
	rd.Timeout = time.Duration(timeoutMS) * time.Millisecond
	return rd, nil
}
