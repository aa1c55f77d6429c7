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

// BatchRequest asks a shared execution backend to run a full task batch.
type BatchRequest struct {
	QueryID    string            `json:"query_id"`
	Question   string            `json:"question"`
	Context    string            `json:"context,omitempty"`
	Complexity string            `json:"complexity"`
	Tasks      []BatchTask       `json:"tasks"`
	Hints      map[string]string `json:"hints,omitempty"`
}

type BatchTask struct {
	Role     string            `json:"role"`
	Priority int               `json:"priority"`
	Hints    map[string]string `json:"hints,omitempty"`
}

// BatchResponse carries one RoleResponse per role, keyed by role name.
type BatchResponse struct {
	Results map[string]RoleResponse `json:"results"`
	Error   string                  `json:"error,omitempty"`
}

// BusSubstrate is a swarm.Substrate that hands the whole batch to a backend
// listening on the batch subject. Connectivity failures surface as
// swarm.ErrSubstrateUnavailable so the executor can fall back.
type BusSubstrate struct {
	client  *natsbus.Client
	timeout time.Duration
}

func NewBusSubstrate(client *natsbus.Client, timeout time.Duration) *BusSubstrate {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &BusSubstrate{client: client, timeout: timeout}
}

func (b *BusSubstrate) ExecuteBatch(ctx context.Context, q swarm.Query, tasks []swarm.Task) (map[swarm.Role]swarm.AgentResult, error) {
	req := BatchRequest{
		QueryID:    q.ID,
		Question:   q.Question,
		Context:    q.Context,
		Complexity: q.Complexity.String(),
		Tasks:      make([]BatchTask, 0, len(tasks)),
	}
	for _, t := range tasks {
		req.Tasks = append(req.Tasks, BatchTask{
			Role:     string(t.Role),
			Priority: t.Priority,
			Hints:    t.Hints,
		})
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	msg, err := b.client.Request(natsbus.TopicSwarmBatch, data, timeout)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil, fmt.Errorf("%w: %w", swarm.ErrSubstrateUnavailable, err)
		}
		return nil, fmt.Errorf("batch request: %w", err)
	}

	var resp BatchResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode batch response: %w", swarm.ErrSubstrateUnavailable, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", swarm.ErrSubstrateUnavailable, resp.Error)
	}

	now := time.Now().UTC()
	results := make(map[swarm.Role]swarm.AgentResult, len(resp.Results))
	for name, rr := range resp.Results {
		role := swarm.Role(name)
		results[role] = swarm.AgentResult{
			Role:            role,
			Content:         rr.Content,
			Confidence:      swarm.ParseConfidence(rr.Confidence),
			Sources:         rr.Sources,
			Reasoning:       rr.Reasoning,
			QuestionsRaised: rr.QuestionsRaised,
			Metadata:        rr.Metadata,
			Timestamp:       now,
		}
	}
	return results, nil
}
