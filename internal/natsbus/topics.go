package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// TopicRoleInput is the request subject a role responder listens on.
func TopicRoleInput(role string) string {
	return fmt.Sprintf("role.%s.input", role)
}

// TopicRoleOutput carries unsolicited output from a role responder.
func TopicRoleOutput(role string) string {
	return fmt.Sprintf("role.%s.output", role)
}

func TopicQueryEvents(queryID string) string {
	return fmt.Sprintf("events.query.%s", queryID)
}

const (
	TopicEventsAll           = "events.>"
	TopicEventsQuery         = "events.query.*"
	TopicEventsStandingQuery = "events.standing.executed"

	// TopicSwarmBatch is the request subject for whole-batch execution by a
	// shared backend.
	TopicSwarmBatch = "swarm.batch"
)
