package swarm

import (
	"fmt"
	"time"
)

// PlanningError marks a structurally invalid query. Fatal: the query ends
// Failed.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return "planning: " + e.Reason
}

// RoleUnavailableError means a role collaborator could not be constructed or
// initialized. Fatal only for Master; recovered as a degraded result for any
// other role.
type RoleUnavailableError struct {
	Role Role
	Err  error
}

func (e *RoleUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("role %s unavailable: %v", e.Role, e.Err)
	}
	return fmt.Sprintf("role %s unavailable", e.Role)
}

func (e *RoleUnavailableError) Unwrap() error { return e.Err }

// RoleTimeoutError marks a collaborator invocation that exceeded its
// per-role timeout.
type RoleTimeoutError struct {
	Role    Role
	Timeout time.Duration
}

func (e *RoleTimeoutError) Error() string {
	return fmt.Sprintf("role %s timed out after %s", e.Role, e.Timeout)
}

// RoleExecutionError wraps an error raised by a collaborator invocation.
type RoleExecutionError struct {
	Role Role
	Err  error
}

func (e *RoleExecutionError) Error() string {
	return fmt.Sprintf("role %s execution failed: %v", e.Role, e.Err)
}

func (e *RoleExecutionError) Unwrap() error { return e.Err }

// SynthesisError marks an internal invariant violation during synthesis.
// Fatal: the query ends Failed.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	return "synthesis: " + e.Reason
}
