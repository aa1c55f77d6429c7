// Package roles connects the swarm executor to role responders reachable
// over the NATS bus.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mberos/quorum/internal/natsbus"
	"github.com/mberos/quorum/internal/swarm"
)

// RoleRequest is the wire request sent to a role responder. Model and APIKey
// carry the provider settings resolved from the role registry so the
// responder does not need its own credential store.
type RoleRequest struct {
	QueryID    string            `json:"query_id"`
	Question   string            `json:"question"`
	Context    string            `json:"context,omitempty"`
	Complexity string            `json:"complexity"`
	Model      string            `json:"model,omitempty"`
	APIKey     string            `json:"api_key,omitempty"`
	Hints      map[string]string `json:"hints,omitempty"`
}

// RoleResponse is the wire reply from a role responder. A non-empty Error
// means the responder ran but could not answer.
type RoleResponse struct {
	Content         string               `json:"content"`
	Confidence      string               `json:"confidence"`
	Sources         []swarm.SourceRecord `json:"sources,omitempty"`
	Reasoning       string               `json:"reasoning,omitempty"`
	QuestionsRaised []string             `json:"questions_raised,omitempty"`
	Metadata        map[string]string    `json:"metadata,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// BusCollaborator is a swarm.Collaborator backed by request/reply over NATS.
// The responder process itself lives outside this gateway.
type BusCollaborator struct {
	client  *natsbus.Client
	role    swarm.Role
	timeout time.Duration
	model   string
	apiKey  string
}

func NewBusCollaborator(client *natsbus.Client, role swarm.Role, timeout time.Duration) *BusCollaborator {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &BusCollaborator{client: client, role: role, timeout: timeout}
}

// SetProvider sets the model and API key passed along with every request for
// this role.
func (b *BusCollaborator) SetProvider(model, apiKey string) {
	b.model = model
	b.apiKey = apiKey
}

func (b *BusCollaborator) ProcessQuery(ctx context.Context, q swarm.Query, hints map[string]string) (swarm.AgentResult, error) {
	data, err := json.Marshal(RoleRequest{
		QueryID:    q.ID,
		Question:   q.Question,
		Context:    q.Context,
		Complexity: q.Complexity.String(),
		Model:      b.model,
		APIKey:     b.apiKey,
		Hints:      hints,
	})
	if err != nil {
		return swarm.AgentResult{}, &swarm.RoleExecutionError{Role: b.role, Err: err}
	}

	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	start := time.Now()
	msg, err := b.client.Request(natsbus.TopicRoleInput(string(b.role)), data, timeout)
	if err != nil {
		return swarm.AgentResult{}, classifyBusError(b.role, timeout, err)
	}

	var resp RoleResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return swarm.AgentResult{}, &swarm.RoleExecutionError{Role: b.role, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Error != "" {
		return swarm.AgentResult{}, &swarm.RoleExecutionError{Role: b.role, Err: errors.New(resp.Error)}
	}

	return swarm.AgentResult{
		Role:            b.role,
		Content:         resp.Content,
		Confidence:      swarm.ParseConfidence(resp.Confidence),
		Sources:         resp.Sources,
		Reasoning:       resp.Reasoning,
		QuestionsRaised: resp.QuestionsRaised,
		Metadata:        resp.Metadata,
		Duration:        time.Since(start),
		Timestamp:       time.Now().UTC(),
	}, nil
}

func classifyBusError(role swarm.Role, timeout time.Duration, err error) error {
	switch {
	case errors.Is(err, nats.ErrTimeout):
		return &swarm.RoleTimeoutError{Role: role, Timeout: timeout}
	case errors.Is(err, nats.ErrNoResponders):
		return &swarm.RoleUnavailableError{Role: role, Err: err}
	default:
		return &swarm.RoleExecutionError{Role: role, Err: err}
	}
}
