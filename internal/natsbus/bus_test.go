package natsbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mberos/quorum/internal/config"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 1)
	if _, err := client.Subscribe(TopicRoleInput("search"), func(msg *nats.Msg) {
		received <- msg.Data
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := client.Publish(TopicRoleInput("search"), []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello" {
			t.Errorf("expected 'hello', got %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestRequestReply(t *testing.T) {
	bus := newTestBus(t)

	responder, err := NewClient(bus)
	if err != nil {
		t.Fatalf("connect responder: %v", err)
	}
	defer responder.Close()

	if _, err := responder.Subscribe(TopicRoleInput("master"), func(msg *nats.Msg) {
		_ = msg.Respond([]byte(`{"content":"verdict"}`))
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := responder.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	requester, err := NewClient(bus)
	if err != nil {
		t.Fatalf("connect requester: %v", err)
	}
	defer requester.Close()

	msg, err := requester.Request(TopicRoleInput("master"), []byte(`{}`), 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(msg.Data) != `{"content":"verdict"}` {
		t.Errorf("unexpected reply: %s", msg.Data)
	}
}

func TestQueryEventsPublish(t *testing.T) {
	bus := newTestBus(t)

	subscriber, err := NewClient(bus)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer subscriber.Close()

	received := make(chan []byte, 1)
	if _, err := subscriber.Subscribe(TopicEventsQuery, func(msg *nats.Msg) {
		received <- msg.Data
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := subscriber.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	publisher, err := NewClient(bus)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer publisher.Close()

	events := NewQueryEvents(publisher)
	events.Publish("q1", "executing", map[string]any{"tasks": 4})

	select {
	case data := <-received:
		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event["type"] != "executing" || event["query_id"] != "q1" {
			t.Errorf("unexpected event: %v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestQueryEventsNilClient(t *testing.T) {
	// Must not panic.
	NewQueryEvents(nil).Publish("q1", "planning", nil)

	var events *QueryEvents
	events.Publish("q1", "planning", nil)
}
