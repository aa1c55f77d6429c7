package natsbus

import (
	"encoding/json"
	"time"
)

// QueryEvents publishes query lifecycle events on the bus. It satisfies the
// orchestrator's event sink and is safe to use with a nil client (events are
// silently dropped).
type QueryEvents struct {
	client *Client
}

func NewQueryEvents(client *Client) *QueryEvents {
	return &QueryEvents{client: client}
}

func (e *QueryEvents) Publish(queryID, eventType string, data map[string]any) {
	if e == nil || e.client == nil {
		return
	}

	event := map[string]any{
		"type":      eventType,
		"query_id":  queryID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = e.client.Publish(TopicQueryEvents(queryID), payload)
}
