package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type stubPublisher struct {
	topics   []string
	payloads [][]byte
	attrs    []map[string]string
	err      error
}

func (s *stubPublisher) Publish(_ context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, data)
	s.attrs = append(s.attrs, attrs)
	return "msg-1", nil
}

func TestOrderEventPublishes(t *testing.T) {
	t.Parallel()

	pub := &stubPublisher{}
	dispatcher := NewDispatcher(pub, "order-events", nil)
	orderID := uuid.New()

	dispatcher.OrderEvent(context.Background(), orderID, "payment_captured")

	if len(pub.payloads) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.payloads))
	}
	if pub.topics[0] != "order-events" {
		t.Fatalf("unexpected topic %s", pub.topics[0])
	}
	var payload map[string]any
	if err := json.Unmarshal(pub.payloads[0], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["order_id"] != orderID.String() || payload["event"] != "payment_captured" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if pub.attrs[0]["event"] != "payment_captured" {
		t.Fatalf("unexpected attrs %+v", pub.attrs[0])
	}
}

func TestOrderEventSwallowsBrokerFailure(t *testing.T) {
	t.Parallel()

	pub := &stubPublisher{err: errors.New("broker down")}
	dispatcher := NewDispatcher(pub, "order-events", nil)

	// Must not panic or surface the error.
	dispatcher.OrderEvent(context.Background(), uuid.New(), "cancelled")
}
